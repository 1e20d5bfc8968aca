package sub

import (
	"net/url"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeHysteria2 decodes hysteria2:// and hy2:// links:
//
//	hysteria2://password@host[:port]?sni=...&obfs=salamander&obfs-password=...#remark
//
// Unlike v1, the credential rides in the userinfo and may be absent.
func ExplodeHysteria2(link string) (model.Proxy, bool) {
	rest, ok := cutScheme(link, "hysteria2://", "hy2://")
	if !ok {
		return model.Proxy{}, false
	}

	body, name, ok := cutFragment(rest)
	if !ok {
		return model.Proxy{}, false
	}
	mainPart, query, _ := strings.Cut(body, "?")
	mainPart = strings.TrimSuffix(mainPart, "/")

	password := ""
	hostPart := mainPart
	if at := strings.LastIndex(mainPart, "@"); at >= 0 {
		pw, err := url.PathUnescape(mainPart[:at])
		if err != nil {
			pw = mainPart[:at]
		}
		password = pw
		hostPart = mainPart[at+1:]
	}

	server, port, ok := splitHostPortDefault(hostPart, model.DefaultTLSPort)
	if !ok {
		return model.Proxy{}, false
	}

	params := parseFlatQuery(query)
	payload := model.Hysteria2{
		Password:     password,
		SNI:          firstNonEmpty(params["sni"], params["peer"], server),
		Insecure:     looseBool(firstNonEmpty(params["insecure"], params["allowInsecure"], params["skip-cert-verify"])),
		Obfs:         params["obfs"],
		ObfsPassword: firstNonEmpty(params["obfs-password"], params["obfsParam"]),
		ALPN:         splitList(params["alpn"]),
		UpMbps:       parseUintDefault(firstNonEmpty(params["up"], params["upmbps"]), 0),
		DownMbps:     parseUintDefault(firstNonEmpty(params["down"], params["downmbps"]), 0),
		Ports:        firstNonEmpty(params["mport"], params["ports"]),
		Fingerprint:  params["fp"],
	}

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	return model.Proxy{
		Group:   model.DefaultGroup(model.TypeHysteria2),
		Name:    name,
		Server:  server,
		Port:    port,
		Payload: payload,
	}, true
}
