package sub

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/crowvane/nodeconv/internal/model"
)

// ssCiphers are the SIP002 method names that mark the plaintext userinfo
// form. Anything else before the '@' is treated as base64.
var ssCiphers = map[string]struct{}{
	"aes-128-gcm": {}, "aes-192-gcm": {}, "aes-256-gcm": {},
	"aes-128-cfb": {}, "aes-192-cfb": {}, "aes-256-cfb": {},
	"aes-128-ctr": {}, "aes-192-ctr": {}, "aes-256-ctr": {},
	"chacha20-ietf-poly1305": {}, "xchacha20-ietf-poly1305": {},
	"chacha20-ietf": {}, "chacha20": {}, "xchacha20": {},
	"2022-blake3-aes-128-gcm": {}, "2022-blake3-aes-256-gcm": {},
	"2022-blake3-chacha20-poly1305": {},
	"rc4-md5":                       {}, "none": {},
}

// ExplodeSS decodes an ss:// link. Both SIP002 forms are accepted:
//
//	ss://<userinfo>@<host>:<port>[/][?plugin=...]#remark
//	ss://<b64(method:password@host:port)>#remark
//
// where userinfo is either b64(method:password) or the plaintext
// method:percent-encoded-password of the 2022 ciphers.
func ExplodeSS(link string) (model.Proxy, bool) {
	if !strings.HasPrefix(link, "ss://") {
		return model.Proxy{}, false
	}

	body, name, ok := cutFragment(link)
	if !ok {
		return model.Proxy{}, false
	}

	withoutQuery, query, _ := strings.Cut(body, "?")
	plugin, pluginOpts, ok := parseSSPlugin(query)
	if !ok {
		return model.Proxy{}, false
	}

	rest := strings.TrimPrefix(withoutQuery, "ss://")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return model.Proxy{}, false
	}

	var (
		server, method, password string
		port                     uint16
	)

	if at := strings.LastIndex(rest, "@"); at >= 0 {
		userinfo := rest[:at]
		hostPart := rest[at+1:]
		if userinfo == "" || hostPart == "" {
			return model.Proxy{}, false
		}
		server, port, ok = parseHostPort(hostPart)
		if !ok {
			return model.Proxy{}, false
		}
		method, password, ok = splitSSUserinfo(userinfo)
		if !ok {
			return model.Proxy{}, false
		}
	} else {
		// Whole-body base64 form.
		decoded, ok2 := decodeB64ToString(rest)
		if !ok2 {
			return model.Proxy{}, false
		}
		at := strings.LastIndex(decoded, "@")
		if at < 0 {
			return model.Proxy{}, false
		}
		method, password, ok = splitMethodPassword(decoded[:at])
		if !ok {
			return model.Proxy{}, false
		}
		server, port, ok = parseHostPort(decoded[at+1:])
		if !ok {
			return model.Proxy{}, false
		}
	}

	if name == "" {
		name = model.DefaultRemark(server, port)
	}
	return model.Proxy{
		Group:  model.DefaultGroup(model.TypeShadowsocks),
		Name:   name,
		Server: server,
		Port:   port,
		Payload: model.Shadowsocks{
			Cipher:     method,
			Password:   password,
			Plugin:     plugin,
			PluginOpts: pluginOpts,
		},
	}, true
}

func splitSSUserinfo(userinfo string) (method, password string, ok bool) {
	if colon := strings.IndexByte(userinfo, ':'); colon > 0 {
		if _, known := ssCiphers[userinfo[:colon]]; known {
			// Plaintext form: the password is percent-encoded, never base64.
			pw, err := url.PathUnescape(userinfo[colon+1:])
			if err != nil {
				pw = userinfo[colon+1:]
			}
			if pw == "" {
				return "", "", false
			}
			return userinfo[:colon], pw, true
		}
	}

	decoded, ok := decodeB64ToString(userinfo)
	if !ok {
		return "", "", false
	}
	return splitMethodPassword(decoded)
}

func splitMethodPassword(s string) (string, string, bool) {
	if !utf8.ValidString(s) {
		return "", "", false
	}
	colon := strings.IndexByte(s, ':')
	if colon <= 0 {
		return "", "", false
	}
	method := strings.TrimSpace(s[:colon])
	password := strings.TrimSpace(s[colon+1:])
	if method == "" || password == "" {
		return "", "", false
	}
	if strings.ContainsAny(method, "\r\n\x00") || strings.ContainsAny(password, "\r\n\x00") {
		return "", "", false
	}
	return method, password, true
}

// parseSSPlugin extracts the SIP002 plugin parameter. The plugin value packs
// its options behind semicolons: name;k1=v1;k2=v2. Other query parameters
// are ignored.
func parseSSPlugin(query string) (string, []model.KV, bool) {
	if query == "" {
		return "", nil, true
	}
	raw, present := parseFlatQuery(query)["plugin"]
	if !present || strings.TrimSpace(raw) == "" {
		return "", nil, true
	}

	segs := strings.Split(raw, ";")
	name := strings.TrimSpace(segs[0])
	if name == "" {
		return "", nil, false
	}
	opts := make([]model.KV, 0, len(segs)-1)
	for _, seg := range segs[1:] {
		if seg == "" {
			continue
		}
		// A key without '=' is a bare flag (tls, mux). Values keep their
		// spaces; the query was already percent-decoded.
		k, v, _ := strings.Cut(seg, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return "", nil, false
		}
		opts = append(opts, model.KV{Key: k, Value: v})
	}
	return name, opts, true
}
