package sub

import (
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeHysteria decodes hysteria:// (v1) links:
//
//	hysteria://host[:port]?auth=...&protocol=...&upmbps=...&downmbps=...&alpn=...&obfs=...&obfsParam=...&peer=...&insecure=...#remark
//
// Every parameter has a defined default, including auth="" for links that
// carry no credential at all.
func ExplodeHysteria(link string) (model.Proxy, bool) {
	rest, ok := cutScheme(link, "hysteria://")
	if !ok {
		return model.Proxy{}, false
	}

	body, name, ok := cutFragment(rest)
	if !ok {
		return model.Proxy{}, false
	}
	mainPart, query, _ := strings.Cut(body, "?")
	mainPart = strings.TrimSuffix(mainPart, "/")

	server, port, ok := splitHostPortDefault(mainPart, model.HysteriaDefaultPort)
	if !ok {
		return model.Proxy{}, false
	}

	params := parseFlatQuery(query)
	payload := model.Hysteria{
		Auth:      params["auth"],
		Protocol:  firstNonEmpty(params["protocol"], model.HysteriaDefaultProtocol),
		UpMbps:    parseUintDefault(params["upmbps"], model.HysteriaDefaultUpMbps),
		DownMbps:  parseUintDefault(params["downmbps"], model.HysteriaDefaultDownMbps),
		ALPN:      splitList(params["alpn"]),
		Obfs:      params["obfs"],
		ObfsParam: params["obfsParam"],
		SNI:       firstNonEmpty(params["peer"], server),
		Insecure:  looseBool(params["insecure"]),
	}

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	return model.Proxy{
		Group:   model.DefaultGroup(model.TypeHysteria),
		Name:    name,
		Server:  server,
		Port:    port,
		Payload: payload,
	}, true
}
