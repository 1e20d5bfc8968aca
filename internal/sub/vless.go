package sub

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeVless decodes vless:// links:
//
//	vless://uuid@host[:port]?security=reality&pbk=...&type=grpc&...#remark
func ExplodeVless(link string) (model.Proxy, bool) {
	rest, ok := cutScheme(link, "vless://")
	if !ok {
		return model.Proxy{}, false
	}

	body, name, ok := cutFragment(rest)
	if !ok {
		return model.Proxy{}, false
	}
	mainPart, query, _ := strings.Cut(body, "?")
	mainPart = strings.TrimSuffix(mainPart, "/")

	at := strings.LastIndex(mainPart, "@")
	if at <= 0 {
		return model.Proxy{}, false
	}
	id, err := url.PathUnescape(mainPart[:at])
	if err != nil {
		id = mainPart[:at]
	}
	if _, err := uuid.Parse(id); err != nil {
		return model.Proxy{}, false
	}

	server, port, ok := splitHostPortDefault(mainPart[at+1:], model.DefaultTLSPort)
	if !ok {
		return model.Proxy{}, false
	}

	params := parseFlatQuery(query)
	security := firstNonEmpty(params["security"], "none")
	payload := model.Vless{
		UUID:        id,
		Flow:        params["flow"],
		Encryption:  firstNonEmpty(params["encryption"], "none"),
		Security:    security,
		SNI:         firstNonEmpty(params["sni"], server),
		ALPN:        splitList(params["alpn"]),
		Fingerprint: params["fp"],
	}

	if security == "reality" {
		payload.PublicKey = params["pbk"]
		payload.ShortID = params["sid"]
		payload.SpiderX = params["spx"]
	}

	switch params["type"] {
	case "ws":
		payload.Network = "ws"
		payload.Host = params["host"]
		payload.Path = firstNonEmpty(params["path"], "/")
	case "grpc":
		payload.Network = "grpc"
		payload.ServiceName = firstNonEmpty(params["serviceName"], params["path"])
	case "h2", "http":
		payload.Network = "h2"
		payload.Host = params["host"]
		payload.Path = firstNonEmpty(params["path"], "/")
	}

	if v, present := boolParam(params, "allowInsecure", "skip-cert-verify"); present {
		payload.SkipCertVerify = &v
	}

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	return model.Proxy{
		Group:   model.DefaultGroup(model.TypeVless),
		Name:    name,
		Server:  server,
		Port:    port,
		Payload: payload,
	}, true
}
