package sub

import (
	"net/url"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeAnyTLS decodes anytls:// links:
//
//	anytls://password@host[:port]?sni=...&insecure=1&idleSessionCheckInterval=30#remark
//
// The idle-session knobs stay absent unless the link names them; zero is a
// meaningful value for all three.
func ExplodeAnyTLS(link string) (model.Proxy, bool) {
	rest, ok := cutScheme(link, "anytls://")
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
	payload := model.AnyTLS{
		Password:          password,
		SNI:               firstNonEmpty(params["sni"], params["peer"], server),
		ALPN:              splitList(params["alpn"]),
		ClientFingerprint: params["fp"],
	}

	if v, present := boolParam(params, "insecure", "allowInsecure", "skip-cert-verify"); present {
		payload.SkipCertVerify = &v
	}
	if v, present := boolParam(params, "udp"); present {
		payload.UDP = &v
	}
	if v, present := boolParam(params, "tfo"); present {
		payload.TFO = &v
	}
	payload.IdleSessionCheckInterval = intParam(params, "idleSessionCheckInterval")
	payload.IdleSessionTimeout = intParam(params, "idleSessionTimeout")
	payload.MinIdleSession = intParam(params, "minIdleSession")

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	return model.Proxy{
		Group:   model.DefaultGroup(model.TypeAnyTLS),
		Name:    name,
		Server:  server,
		Port:    port,
		Payload: payload,
	}, true
}

// intParam returns nil when the key is absent or not a number.
func intParam(params map[string]string, key string) *int {
	v, present := params[key]
	if !present {
		return nil
	}
	n := parseUintDefault(v, -1)
	if n < 0 {
		return nil
	}
	return &n
}
