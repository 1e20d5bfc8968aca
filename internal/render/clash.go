package render

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/model"
	"github.com/crowvane/nodeconv/internal/template"
)

//go:embed templates/clash.tpl.yaml
var defaultClashTemplate string

// renderClash produces a complete Clash config: one flow-mapping line per
// proxy and group, spliced into the base template at its anchors. Blocks are
// pre-indented two spaces to sit under their top-level keys.
func renderClash(in Input) (string, error) {
	proxyLines := make([]string, 0, len(in.Proxies))
	names := make([]string, 0, len(in.Proxies))
	for _, p := range in.Proxies {
		if p.Payload == nil {
			continue
		}
		proxyLines = append(proxyLines, "  - "+clashProxyLine(p))
		names = append(names, p.Name)
	}

	groups := resolveGroups(in.Groups, names)
	groupLines := make([]string, 0, len(groups))
	for _, g := range groups {
		groupLines = append(groupLines, "  - "+clashGroupLine(g))
	}

	allowed := AllowedRuleTypes(TargetClash)
	ruleLines := make([]string, 0, len(in.Rules)+1)
	for _, r := range resolveRules(in.Rules) {
		if _, ok := allowed[ruleType(r)]; !ok {
			ruleDebug(in.Log, TargetClash, r)
			continue
		}
		ruleLines = append(ruleLines, "  - "+yamlDQ(r))
	}

	tpl := in.Template
	source := in.TemplateSource
	if tpl == "" {
		tpl = defaultClashTemplate
		source = "builtin:clash"
	}
	out, err := template.Expand(tpl, map[string]string{
		"proxies": strings.Join(proxyLines, "\n"),
		"groups":  strings.Join(groupLines, "\n"),
		"rules":   strings.Join(ruleLines, "\n"),
	}, source)
	if err != nil {
		return "", err
	}
	return out, nil
}

func clashGroupLine(g config.Group) string {
	m := newFlowMap()
	m.str("name", g.Name)
	m.token("type", g.Type)
	m.strList("proxies", g.Proxies)
	if g.URL != "" {
		m.str("url", g.URL)
	}
	if g.Interval > 0 {
		m.int("interval", g.Interval)
	}
	return m.String()
}

func clashProxyLine(p model.Proxy) string {
	m := newFlowMap()
	m.str("name", p.Name)
	m.token("type", string(p.Payload.Type()))
	m.str("server", p.Server)
	m.int("port", int(p.Port))

	switch pl := p.Payload.(type) {
	case model.Shadowsocks:
		m.str("cipher", pl.Cipher)
		m.str("password", pl.Password)
		clashSSPlugin(m, pl)
		m.boolPtr("udp", pl.UDP)
	case model.ShadowsocksR:
		m.str("cipher", pl.Cipher)
		m.str("password", pl.Password)
		m.str("protocol", pl.Protocol)
		if pl.ProtocolParam != "" {
			m.str("protocol-param", pl.ProtocolParam)
		}
		m.str("obfs", pl.Obfs)
		if pl.ObfsParam != "" {
			m.str("obfs-param", pl.ObfsParam)
		}
		m.boolPtr("udp", pl.UDP)
	case model.VMess:
		m.str("uuid", pl.UUID)
		m.int("alterId", pl.AlterID)
		m.str("cipher", pl.Cipher)
		if pl.TLS {
			m.bool("tls", true)
		}
		if pl.SNI != "" {
			m.str("servername", pl.SNI)
		}
		clashTransport(m, pl.Network, pl.Host, pl.Path, pl.ServiceName)
		m.strListOpt("alpn", pl.ALPN)
		if pl.Fingerprint != "" {
			m.str("client-fingerprint", pl.Fingerprint)
		}
		m.boolPtr("skip-cert-verify", pl.SkipCertVerify)
		m.boolPtr("udp", pl.UDP)
	case model.Trojan:
		m.str("password", pl.Password)
		if pl.SNI != "" {
			m.str("sni", pl.SNI)
		}
		clashTransport(m, pl.Network, pl.Host, pl.Path, pl.ServiceName)
		m.strListOpt("alpn", pl.ALPN)
		if pl.Fingerprint != "" {
			m.str("client-fingerprint", pl.Fingerprint)
		}
		m.boolPtr("skip-cert-verify", pl.SkipCertVerify)
		m.boolPtr("udp", pl.UDP)
	case model.Vless:
		m.str("uuid", pl.UUID)
		if pl.Flow != "" {
			m.str("flow", pl.Flow)
		}
		if pl.Security != "" && pl.Security != "none" {
			m.bool("tls", true)
		}
		if pl.SNI != "" {
			m.str("servername", pl.SNI)
		}
		if pl.Security == "reality" && pl.PublicKey != "" {
			r := newFlowMap()
			r.str("public-key", pl.PublicKey)
			if pl.ShortID != "" {
				r.str("short-id", pl.ShortID)
			}
			m.nested("reality-opts", r)
		}
		clashTransport(m, pl.Network, pl.Host, pl.Path, pl.ServiceName)
		m.strListOpt("alpn", pl.ALPN)
		if pl.Fingerprint != "" {
			m.str("client-fingerprint", pl.Fingerprint)
		}
		m.boolPtr("skip-cert-verify", pl.SkipCertVerify)
		m.boolPtr("udp", pl.UDP)
	case model.Hysteria:
		if pl.Auth != "" {
			m.str("auth-str", pl.Auth)
		}
		m.str("protocol", pl.Protocol)
		m.int("up", pl.UpMbps)
		m.int("down", pl.DownMbps)
		m.strListOpt("alpn", pl.ALPN)
		if pl.Obfs != "" {
			m.str("obfs", pl.Obfs)
		}
		if pl.SNI != "" {
			m.str("sni", pl.SNI)
		}
		if pl.Insecure {
			m.bool("skip-cert-verify", true)
		}
	case model.Hysteria2:
		m.str("password", pl.Password)
		if pl.Obfs != "" {
			m.str("obfs", pl.Obfs)
		}
		if pl.ObfsPassword != "" {
			m.str("obfs-password", pl.ObfsPassword)
		}
		if pl.SNI != "" {
			m.str("sni", pl.SNI)
		}
		if pl.Insecure {
			m.bool("skip-cert-verify", true)
		}
		m.strListOpt("alpn", pl.ALPN)
		if pl.UpMbps > 0 {
			m.int("up", pl.UpMbps)
		}
		if pl.DownMbps > 0 {
			m.int("down", pl.DownMbps)
		}
		if pl.Ports != "" {
			m.str("ports", pl.Ports)
		}
		if pl.Fingerprint != "" {
			m.str("client-fingerprint", pl.Fingerprint)
		}
	case model.Snell:
		m.str("psk", pl.PSK)
		if pl.Version > 0 {
			m.int("version", pl.Version)
		}
		if pl.ObfsMode != "" || pl.ObfsHost != "" {
			o := newFlowMap()
			if pl.ObfsMode != "" {
				o.str("mode", pl.ObfsMode)
			}
			if pl.ObfsHost != "" {
				o.str("host", pl.ObfsHost)
			}
			m.nested("obfs-opts", o)
		}
	case model.Socks:
		if pl.Username != "" {
			m.str("username", pl.Username)
		}
		if pl.Password != "" {
			m.str("password", pl.Password)
		}
		if pl.TLS {
			m.bool("tls", true)
		}
		m.boolPtr("skip-cert-verify", pl.SkipCertVerify)
		m.boolPtr("udp", pl.UDP)
	case model.HTTP:
		if pl.Username != "" {
			m.str("username", pl.Username)
		}
		if pl.Password != "" {
			m.str("password", pl.Password)
		}
		if pl.TLS {
			m.bool("tls", true)
		}
		m.boolPtr("skip-cert-verify", pl.SkipCertVerify)
	case model.WireGuard:
		m.str("private-key", pl.PrivateKey)
		if pl.PublicKey != "" {
			m.str("public-key", pl.PublicKey)
		}
		if pl.PresharedKey != "" {
			m.str("preshared-key", pl.PresharedKey)
		}
		if pl.IP != "" {
			m.str("ip", pl.IP)
		}
		if pl.IPv6 != "" {
			m.str("ipv6", pl.IPv6)
		}
		if pl.MTU > 0 {
			m.int("mtu", pl.MTU)
		}
		m.intListOpt("reserved", pl.Reserved)
		m.strListOpt("allowed-ips", pl.AllowedIPs)
		m.boolPtr("udp", pl.UDP)
	case model.AnyTLS:
		m.str("password", pl.Password)
		m.strListOpt("alpn", pl.ALPN)
		if pl.SNI != "" {
			m.str("sni", pl.SNI)
		}
		m.boolPtr("skip-cert-verify", pl.SkipCertVerify)
		if pl.Fingerprint != "" {
			m.str("fingerprint", pl.Fingerprint)
		}
		if pl.ClientFingerprint != "" {
			m.str("client-fingerprint", pl.ClientFingerprint)
		}
		m.boolPtr("udp", pl.UDP)
		m.intPtr("idle-session-check-interval", pl.IdleSessionCheckInterval)
		m.intPtr("idle-session-timeout", pl.IdleSessionTimeout)
		m.intPtr("min-idle-session", pl.MinIdleSession)
		m.boolPtr("tfo", pl.TFO)
	}
	return m.String()
}

// clashTransport emits the network field and its per-transport opts block.
// tcp is Clash's default and stays implicit.
func clashTransport(m *flowMap, network, host, path, service string) {
	switch network {
	case "", "tcp":
		return
	case "ws":
		m.token("network", "ws")
		w := newFlowMap()
		w.str("path", path)
		if host != "" {
			h := newFlowMap()
			h.str("Host", host)
			w.nested("headers", h)
		}
		m.nested("ws-opts", w)
	case "h2", "http":
		m.token("network", network)
		if host != "" || path != "" {
			h := newFlowMap()
			if host != "" {
				h.strList("host", []string{host})
			}
			if path != "" {
				h.str("path", path)
			}
			m.nested("h2-opts", h)
		}
	case "grpc":
		m.token("network", "grpc")
		if service != "" {
			g := newFlowMap()
			g.str("grpc-service-name", service)
			m.nested("grpc-opts", g)
		}
	default:
		m.str("network", network)
	}
}

// clashSSPlugin inverts the plugin naming the decode side applies: the link
// vocabulary's obfs-local is Clash's "obfs", everything else passes through
// with plugin-opts rebuilt from the flat option list.
func clashSSPlugin(m *flowMap, pl model.Shadowsocks) {
	if pl.Plugin == "" {
		return
	}
	opts := kvLookup(pl.PluginOpts)
	switch pl.Plugin {
	case "obfs-local", "simple-obfs":
		m.token("plugin", "obfs")
		o := newFlowMap()
		if v := opts["obfs"]; v != "" {
			o.str("mode", v)
		}
		if v := opts["obfs-host"]; v != "" {
			o.str("host", v)
		}
		if len(o.parts) > 0 {
			m.nested("plugin-opts", o)
		}
	default:
		m.str("plugin", pl.Plugin)
		o := newFlowMap()
		if v := opts["mode"]; v != "" {
			o.str("mode", v)
		}
		if _, ok := opts["tls"]; ok {
			o.bool("tls", true)
		}
		if v := opts["host"]; v != "" {
			o.str("host", v)
		}
		if v := opts["path"]; v != "" {
			o.str("path", v)
		}
		if _, ok := opts["mux"]; ok {
			o.bool("mux", true)
		}
		if len(o.parts) > 0 {
			m.nested("plugin-opts", o)
		}
	}
}

func kvLookup(kvs []model.KV) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if _, ok := m[kv.Key]; !ok {
			m[kv.Key] = kv.Value
		}
	}
	return m
}

// flowMap builds one single-line YAML flow mapping. String values always go
// through yamlDQ so numeric-looking passwords and names stay strings.
type flowMap struct {
	parts []string
}

func newFlowMap() *flowMap { return &flowMap{} }

func (m *flowMap) str(key, value string) {
	m.parts = append(m.parts, key+": "+yamlDQ(value))
}

// token emits a bare scalar for values from a closed internal vocabulary
// (type tags, network names) that never need quoting.
func (m *flowMap) token(key, value string) {
	m.parts = append(m.parts, key+": "+value)
}

func (m *flowMap) int(key string, v int) {
	m.parts = append(m.parts, key+": "+strconv.Itoa(v))
}

func (m *flowMap) bool(key string, v bool) {
	m.parts = append(m.parts, key+": "+strconv.FormatBool(v))
}

func (m *flowMap) boolPtr(key string, v *bool) {
	if v != nil {
		m.bool(key, *v)
	}
}

func (m *flowMap) intPtr(key string, v *int) {
	if v != nil {
		m.int(key, *v)
	}
}

func (m *flowMap) strList(key string, vs []string) {
	quoted := make([]string, len(vs))
	for i, v := range vs {
		quoted[i] = yamlDQ(v)
	}
	m.parts = append(m.parts, key+": ["+strings.Join(quoted, ", ")+"]")
}

func (m *flowMap) strListOpt(key string, vs []string) {
	if len(vs) > 0 {
		m.strList(key, vs)
	}
}

func (m *flowMap) intListOpt(key string, vs []int) {
	if len(vs) == 0 {
		return
	}
	nums := make([]string, len(vs))
	for i, v := range vs {
		nums[i] = strconv.Itoa(v)
	}
	m.parts = append(m.parts, key+": ["+strings.Join(nums, ", ")+"]")
}

func (m *flowMap) nested(key string, inner *flowMap) {
	m.parts = append(m.parts, key+": "+inner.String())
}

func (m *flowMap) String() string {
	return "{" + strings.Join(m.parts, ", ") + "}"
}

func yamlDQ(s string) string {
	// Minimal YAML double-quoted scalar escaping.
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}

func ruleDebug(log *logrus.Logger, target Target, rule string) {
	if log == nil {
		return
	}
	log.WithFields(logrus.Fields{
		"target": string(target),
		"rule":   rule,
	}).Debug("rule type not expressible in target, dropped")
}
