package sub

import (
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeSSR decodes an ssr:// link. The whole body is base64:
//
//	host:port:protocol:method:obfs:b64(password)/?params
//
// where obfsparam, protoparam, remarks and group parameter values are
// base64 themselves.
func ExplodeSSR(link string) (model.Proxy, bool) {
	if !strings.HasPrefix(link, "ssr://") {
		return model.Proxy{}, false
	}

	decoded, ok := decodeB64ToString(removeSpaceTabCRLF(strings.TrimPrefix(link, "ssr://")))
	if !ok {
		return model.Proxy{}, false
	}

	mainPart, paramsPart, _ := strings.Cut(decoded, "/?")

	// The host may contain ':' (IPv6), so fields are counted from the right.
	segs := strings.Split(mainPart, ":")
	if len(segs) < 6 {
		return model.Proxy{}, false
	}
	passwordB64 := segs[len(segs)-1]
	obfs := segs[len(segs)-2]
	method := segs[len(segs)-3]
	protocol := segs[len(segs)-4]
	portStr := segs[len(segs)-5]
	server := strings.Join(segs[:len(segs)-5], ":")
	if server == "" || method == "" {
		return model.Proxy{}, false
	}

	port, ok := parsePort(portStr)
	if !ok {
		return model.Proxy{}, false
	}
	password, ok := decodeB64ToString(passwordB64)
	if !ok {
		return model.Proxy{}, false
	}

	params := parseFlatQuery(paramsPart)
	obfsParam, _ := decodeB64ToString(params["obfsparam"])
	protoParam, _ := decodeB64ToString(params["protoparam"])
	name, _ := decodeB64ToString(params["remarks"])
	group, _ := decodeB64ToString(params["group"])

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	if group == "" {
		group = model.DefaultGroup(model.TypeShadowsocksR)
	}
	return model.Proxy{
		Group:  group,
		Name:   name,
		Server: server,
		Port:   port,
		Payload: model.ShadowsocksR{
			Cipher:        method,
			Password:      password,
			Protocol:      protocol,
			ProtocolParam: protoParam,
			Obfs:          obfs,
			ObfsParam:     obfsParam,
		},
	}, true
}
