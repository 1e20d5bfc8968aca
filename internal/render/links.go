package render

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// renderNodeList emits one canonical share link per node, newline separated,
// optionally wrapped in a single base64 blob the way subscription endpoints
// publish it. Families without a link dialect are skipped with a debug log.
func renderNodeList(in Input) (string, error) {
	lines := make([]string, 0, len(in.Proxies))
	for _, p := range in.Proxies {
		uri, ok := nodeURI(p)
		if !ok {
			skipDebug(in.Log, TargetNodeList, p)
			continue
		}
		lines = append(lines, uri)
	}
	out := strings.Join(lines, "\n")
	if out != "" {
		out += "\n"
	}
	if in.Base64 {
		out = base64.StdEncoding.EncodeToString([]byte(out))
	}
	return out, nil
}

// nodeURI renders one node as its canonical share link. The emitted form is
// the one the matching decoder parses back to the same record, modulo fields
// the dialect has no slot for.
func nodeURI(p model.Proxy) (string, bool) {
	switch pl := p.Payload.(type) {
	case model.Shadowsocks:
		return ssURI(p, pl), true
	case model.ShadowsocksR:
		return ssrURI(p, pl), true
	case model.VMess:
		return vmessURI(p, pl), true
	case model.Trojan:
		return trojanURI(p, pl), true
	case model.Vless:
		return vlessURI(p, pl), true
	case model.Hysteria:
		return hysteriaURI(p, pl), true
	case model.Hysteria2:
		return hysteria2URI(p, pl), true
	case model.AnyTLS:
		return anytlsURI(p, pl), true
	case model.Socks:
		return socksURI(p, pl), true
	default:
		return "", false
	}
}

func ssURI(p model.Proxy, pl model.Shadowsocks) string {
	var b strings.Builder
	b.WriteString("ss://")
	b.WriteString(b64url(pl.Cipher + ":" + pl.Password))
	b.WriteByte('@')
	b.WriteString(uriHost(p.Server))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(int(p.Port)))
	if pl.Plugin != "" {
		var pb strings.Builder
		pb.WriteString(pl.Plugin)
		for _, kv := range pl.PluginOpts {
			pb.WriteByte(';')
			pb.WriteString(kv.Key)
			pb.WriteByte('=')
			pb.WriteString(kv.Value)
		}
		b.WriteString("/?plugin=")
		b.WriteString(pctEncode(pb.String()))
	}
	b.WriteByte('#')
	b.WriteString(pctEncode(p.Name))
	return b.String()
}

func ssrURI(p model.Proxy, pl model.ShadowsocksR) string {
	var body strings.Builder
	body.WriteString(p.Server)
	body.WriteByte(':')
	body.WriteString(strconv.Itoa(int(p.Port)))
	body.WriteByte(':')
	body.WriteString(pl.Protocol)
	body.WriteByte(':')
	body.WriteString(pl.Cipher)
	body.WriteByte(':')
	body.WriteString(pl.Obfs)
	body.WriteByte(':')
	body.WriteString(b64url(pl.Password))

	body.WriteString("/?")
	params := make([]string, 0, 4)
	if pl.ObfsParam != "" {
		params = append(params, "obfsparam="+b64url(pl.ObfsParam))
	}
	if pl.ProtocolParam != "" {
		params = append(params, "protoparam="+b64url(pl.ProtocolParam))
	}
	params = append(params, "remarks="+b64url(p.Name))
	if p.Group != "" {
		params = append(params, "group="+b64url(p.Group))
	}
	body.WriteString(strings.Join(params, "&"))

	return "ssr://" + b64url(body.String())
}

// vmessShare is the base64-JSON body of a vmess:// link, v2 field layout.
// Numbers travel as strings; the decode side tolerates both.
type vmessShare struct {
	V             string `json:"v"`
	PS            string `json:"ps"`
	Add           string `json:"add"`
	Port          string `json:"port"`
	ID            string `json:"id"`
	Aid           string `json:"aid"`
	Scy           string `json:"scy,omitempty"`
	Net           string `json:"net"`
	Type          string `json:"type"`
	Host          string `json:"host,omitempty"`
	Path          string `json:"path,omitempty"`
	TLS           string `json:"tls,omitempty"`
	SNI           string `json:"sni,omitempty"`
	ALPN          string `json:"alpn,omitempty"`
	FP            string `json:"fp,omitempty"`
	AllowInsecure string `json:"allowInsecure,omitempty"`
}

func vmessURI(p model.Proxy, pl model.VMess) string {
	share := vmessShare{
		V:    "2",
		PS:   p.Name,
		Add:  p.Server,
		Port: strconv.Itoa(int(p.Port)),
		ID:   pl.UUID,
		Aid:  strconv.Itoa(pl.AlterID),
		Scy:  pl.Cipher,
		Net:  pl.Network,
		Type: "none",
		ALPN: strings.Join(pl.ALPN, ","),
		FP:   pl.Fingerprint,
	}
	switch pl.Network {
	case "", "tcp":
		share.Net = "tcp"
	case "http":
		// The legacy http transport is tcp with an http header type.
		share.Net = "tcp"
		share.Type = "http"
		share.Host = pl.Host
		share.Path = pl.Path
	case "ws", "h2":
		share.Host = pl.Host
		share.Path = pl.Path
	case "grpc":
		share.Path = pl.ServiceName
	}
	if pl.TLS {
		share.TLS = "tls"
		share.SNI = pl.SNI
	}
	if pl.SkipCertVerify != nil {
		share.AllowInsecure = boolDigit(*pl.SkipCertVerify)
	}
	raw, _ := json.Marshal(share)
	return "vmess://" + base64.StdEncoding.EncodeToString(raw)
}

func trojanURI(p model.Proxy, pl model.Trojan) string {
	q := newQuery()
	q.addIf("sni", pl.SNI)
	q.addIf("alpn", strings.Join(pl.ALPN, ","))
	q.addIf("fp", pl.Fingerprint)
	switch pl.Network {
	case "ws":
		q.add("type", "ws")
		q.addIf("host", pl.Host)
		q.addIf("path", pl.Path)
	case "grpc":
		q.add("type", "grpc")
		q.addIf("serviceName", pl.ServiceName)
	}
	if pl.SkipCertVerify != nil {
		q.add("allowInsecure", boolDigit(*pl.SkipCertVerify))
	}
	return "trojan://" + pctEncode(pl.Password) + "@" + hostPort(p) + q.String() + fragment(p.Name)
}

func vlessURI(p model.Proxy, pl model.Vless) string {
	q := newQuery()
	q.add("encryption", orNone(pl.Encryption))
	q.add("security", orNone(pl.Security))
	q.addIf("flow", pl.Flow)
	q.addIf("sni", pl.SNI)
	q.addIf("alpn", strings.Join(pl.ALPN, ","))
	q.addIf("fp", pl.Fingerprint)
	if pl.Security == "reality" {
		q.addIf("pbk", pl.PublicKey)
		q.addIf("sid", pl.ShortID)
		q.addIf("spx", pl.SpiderX)
	}
	switch pl.Network {
	case "ws":
		q.add("type", "ws")
		q.addIf("host", pl.Host)
		q.addIf("path", pl.Path)
	case "grpc":
		q.add("type", "grpc")
		q.addIf("serviceName", pl.ServiceName)
	case "h2", "http":
		q.add("type", "h2")
		q.addIf("host", pl.Host)
		q.addIf("path", pl.Path)
	}
	if pl.SkipCertVerify != nil {
		q.add("allowInsecure", boolDigit(*pl.SkipCertVerify))
	}
	return "vless://" + pl.UUID + "@" + hostPort(p) + q.String() + fragment(p.Name)
}

func hysteriaURI(p model.Proxy, pl model.Hysteria) string {
	q := newQuery()
	q.addIf("auth", pl.Auth)
	q.add("protocol", pl.Protocol)
	q.add("upmbps", strconv.Itoa(pl.UpMbps))
	q.add("downmbps", strconv.Itoa(pl.DownMbps))
	q.addIf("alpn", strings.Join(pl.ALPN, ","))
	q.addIf("obfs", pl.Obfs)
	q.addIf("obfsParam", pl.ObfsParam)
	if pl.SNI != "" && pl.SNI != p.Server {
		q.add("peer", pl.SNI)
	}
	if pl.Insecure {
		q.add("insecure", "1")
	}
	return "hysteria://" + hostPort(p) + q.String() + fragment(p.Name)
}

func hysteria2URI(p model.Proxy, pl model.Hysteria2) string {
	q := newQuery()
	if pl.SNI != "" && pl.SNI != p.Server {
		q.add("sni", pl.SNI)
	}
	if pl.Insecure {
		q.add("insecure", "1")
	}
	q.addIf("obfs", pl.Obfs)
	q.addIf("obfs-password", pl.ObfsPassword)
	q.addIf("alpn", strings.Join(pl.ALPN, ","))
	if pl.UpMbps > 0 {
		q.add("upmbps", strconv.Itoa(pl.UpMbps))
	}
	if pl.DownMbps > 0 {
		q.add("downmbps", strconv.Itoa(pl.DownMbps))
	}
	q.addIf("mport", pl.Ports)
	q.addIf("fp", pl.Fingerprint)
	return "hysteria2://" + pctEncode(pl.Password) + "@" + hostPort(p) + q.String() + fragment(p.Name)
}

func anytlsURI(p model.Proxy, pl model.AnyTLS) string {
	q := newQuery()
	if pl.SNI != "" && pl.SNI != p.Server {
		q.add("sni", pl.SNI)
	}
	q.addIf("alpn", strings.Join(pl.ALPN, ","))
	q.addIf("fp", pl.ClientFingerprint)
	if pl.SkipCertVerify != nil {
		q.add("insecure", boolDigit(*pl.SkipCertVerify))
	}
	if pl.UDP != nil {
		q.add("udp", boolDigit(*pl.UDP))
	}
	if pl.TFO != nil {
		q.add("tfo", boolDigit(*pl.TFO))
	}
	if pl.IdleSessionCheckInterval != nil {
		q.add("idleSessionCheckInterval", strconv.Itoa(*pl.IdleSessionCheckInterval))
	}
	if pl.IdleSessionTimeout != nil {
		q.add("idleSessionTimeout", strconv.Itoa(*pl.IdleSessionTimeout))
	}
	if pl.MinIdleSession != nil {
		q.add("minIdleSession", strconv.Itoa(*pl.MinIdleSession))
	}
	return "anytls://" + pctEncode(pl.Password) + "@" + hostPort(p) + q.String() + fragment(p.Name)
}

func socksURI(p model.Proxy, pl model.Socks) string {
	auth := ""
	if pl.Username != "" || pl.Password != "" {
		auth = b64url(pl.Username+":"+pl.Password) + "@"
	}
	return "socks://" + auth + hostPort(p) + fragment(p.Name)
}

// queryBuilder assembles the ?k=v&... tail with percent-encoded values in a
// fixed emission order.
type queryBuilder struct {
	parts []string
}

func newQuery() *queryBuilder { return &queryBuilder{} }

func (q *queryBuilder) add(key, value string) {
	q.parts = append(q.parts, key+"="+pctEncode(value))
}

func (q *queryBuilder) addIf(key, value string) {
	if value != "" {
		q.add(key, value)
	}
}

func (q *queryBuilder) String() string {
	if len(q.parts) == 0 {
		return ""
	}
	return "?" + strings.Join(q.parts, "&")
}

func hostPort(p model.Proxy) string {
	return uriHost(p.Server) + ":" + strconv.Itoa(int(p.Port))
}

func fragment(name string) string {
	return "#" + pctEncode(name)
}

// uriHost brackets IPv6 literals so the port separator stays unambiguous.
func uriHost(host string) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}

// pctEncode is query escaping with %20 for spaces; '+' would survive a
// PathUnescape round trip as a literal plus.
func pctEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func b64url(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
