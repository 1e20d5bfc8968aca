package sub

import (
	"net/url"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeTrojan decodes trojan:// and trojan-go:// links:
//
//	trojan://password@host[:port]?sni=...&type=ws&...#remark
func ExplodeTrojan(link string) (model.Proxy, bool) {
	rest, ok := cutScheme(link, "trojan://", "trojan-go://")
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
	password, err := url.PathUnescape(mainPart[:at])
	if err != nil {
		password = mainPart[:at]
	}

	server, port, ok := splitHostPortDefault(mainPart[at+1:], model.DefaultTLSPort)
	if !ok {
		return model.Proxy{}, false
	}

	params := parseFlatQuery(query)
	payload := model.Trojan{
		Password:    password,
		SNI:         firstNonEmpty(params["sni"], params["peer"], params["host"], server),
		ALPN:        splitList(params["alpn"]),
		Fingerprint: params["fp"],
	}

	switch params["type"] {
	case "ws":
		payload.Network = "ws"
		payload.Host = params["host"]
		payload.Path = firstNonEmpty(params["path"], "/")
	case "grpc":
		payload.Network = "grpc"
		payload.ServiceName = params["serviceName"]
	}

	if v, present := boolParam(params, "allowInsecure", "skip-cert-verify"); present {
		payload.SkipCertVerify = &v
	}

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	return model.Proxy{
		Group:   model.DefaultGroup(model.TypeTrojan),
		Name:    name,
		Server:  server,
		Port:    port,
		Payload: payload,
	}, true
}

// cutScheme strips the first matching scheme prefix.
func cutScheme(link string, schemes ...string) (string, bool) {
	for _, s := range schemes {
		if strings.HasPrefix(link, s) {
			return strings.TrimPrefix(link, s), true
		}
	}
	return "", false
}

// boolParam reads the first present alias and reports whether any was given
// at all, so callers can tell "absent" from "false".
func boolParam(params map[string]string, keys ...string) (value, present bool) {
	for _, k := range keys {
		if v, okP := params[k]; okP {
			return looseBool(v), true
		}
	}
	return false, false
}
