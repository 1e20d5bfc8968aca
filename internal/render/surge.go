package render

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/model"
	"github.com/crowvane/nodeconv/internal/template"
)

//go:embed templates/surge.tpl.conf
var defaultSurgeTemplate string

// renderSurge produces a complete Surge config. Nodes the dialect cannot
// express are skipped with a debug log; group lines then only reference the
// nodes that were actually emitted.
func renderSurge(in Input) (string, error) {
	proxyLines := make([]string, 0, len(in.Proxies))
	names := make([]string, 0, len(in.Proxies))
	rep := make(map[string]string, len(in.Proxies))

	for _, p := range in.Proxies {
		if p.Payload == nil || !Supports(TargetSurge, p.Payload.Type()) {
			skipDebug(in.Log, TargetSurge, p)
			continue
		}
		body, ok := surgeProxyBody(p)
		if !ok {
			skipDebug(in.Log, TargetSurge, p)
			continue
		}
		name, err := surgeProxyName(p.Name)
		if err != nil {
			return "", err
		}
		rep[p.Name] = name
		names = append(names, p.Name)
		proxyLines = append(proxyLines, name+" = "+body)
	}

	groups := resolveGroups(in.Groups, names)
	groupLines := make([]string, 0, len(groups))
	for _, g := range groups {
		line, err := surgeGroupLine(g, rep)
		if err != nil {
			return "", err
		}
		groupLines = append(groupLines, line)
	}

	allowed := AllowedRuleTypes(TargetSurge)
	ruleLines := make([]string, 0, len(in.Rules)+1)
	for _, r := range resolveRules(in.Rules) {
		if _, ok := allowed[ruleType(r)]; !ok {
			ruleDebug(in.Log, TargetSurge, r)
			continue
		}
		ruleLines = append(ruleLines, surgeRuleLine(r))
	}

	tpl := in.Template
	source := in.TemplateSource
	if tpl == "" {
		tpl = defaultSurgeTemplate
		source = "builtin:surge"
	}
	out, err := template.Expand(tpl, map[string]string{
		"proxies": strings.Join(proxyLines, "\n"),
		"groups":  strings.Join(groupLines, "\n"),
		"rules":   strings.Join(ruleLines, "\n"),
	}, source)
	if err != nil {
		return "", err
	}

	if in.ManagedURL != "" {
		header, err := template.ManagedConfigHeader(in.ManagedURL, in.ManagedInterval, in.ManagedStrict)
		if err != nil {
			return "", err
		}
		out = header + "\n\n" + out
	}
	return out, nil
}

// surgeProxyBody builds the right-hand side of a [Proxy] line. ok=false
// means this particular node uses a variant the dialect cannot express
// (an exotic ss plugin, a grpc transport, obfuscated hysteria2).
func surgeProxyBody(p model.Proxy) (string, bool) {
	host := p.Server
	port := strconv.Itoa(int(p.Port))

	switch pl := p.Payload.(type) {
	case model.Shadowsocks:
		parts := []string{"ss", host, port,
			"encrypt-method=" + pl.Cipher, "password=" + pl.Password}
		switch pl.Plugin {
		case "":
		case "obfs-local", "simple-obfs":
			opts := kvLookup(pl.PluginOpts)
			if opts["obfs"] == "" {
				return "", false
			}
			parts = append(parts, "obfs="+opts["obfs"])
			if h := opts["obfs-host"]; h != "" {
				parts = append(parts, "obfs-host="+h)
			}
		default:
			return "", false
		}
		if pl.UDP != nil && *pl.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return strings.Join(parts, ", "), true

	case model.VMess:
		if pl.Network != "" && pl.Network != "tcp" && pl.Network != "ws" {
			return "", false
		}
		parts := []string{"vmess", host, port, "username=" + pl.UUID}
		if pl.Network == "ws" {
			parts = append(parts, "ws=true", "ws-path="+pl.Path)
			if pl.Host != "" {
				parts = append(parts, "ws-headers=Host:"+pl.Host)
			}
		}
		if pl.TLS {
			parts = append(parts, "tls=true")
			if pl.SNI != "" {
				parts = append(parts, "sni="+pl.SNI)
			}
		}
		if pl.SkipCertVerify != nil && *pl.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if pl.AlterID == 0 {
			parts = append(parts, "vmess-aead=true")
		}
		if pl.UDP != nil && *pl.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return strings.Join(parts, ", "), true

	case model.Trojan:
		if pl.Network != "" && pl.Network != "tcp" && pl.Network != "ws" {
			return "", false
		}
		parts := []string{"trojan", host, port, "password=" + pl.Password}
		if pl.SNI != "" {
			parts = append(parts, "sni="+pl.SNI)
		}
		if pl.Network == "ws" {
			parts = append(parts, "ws=true", "ws-path="+pl.Path)
			if pl.Host != "" {
				parts = append(parts, "ws-headers=Host:"+pl.Host)
			}
		}
		if pl.SkipCertVerify != nil && *pl.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if pl.UDP != nil && *pl.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return strings.Join(parts, ", "), true

	case model.HTTP:
		typ := "http"
		if pl.TLS {
			typ = "https"
		}
		parts := []string{typ, host, port}
		if pl.Username != "" || pl.Password != "" {
			parts = append(parts, pl.Username, pl.Password)
		}
		if pl.TLS && pl.SkipCertVerify != nil && *pl.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		return strings.Join(parts, ", "), true

	case model.Socks:
		typ := "socks5"
		if pl.TLS {
			typ = "socks5-tls"
		}
		parts := []string{typ, host, port}
		if pl.Username != "" || pl.Password != "" {
			parts = append(parts, pl.Username, pl.Password)
		}
		if pl.TLS && pl.SkipCertVerify != nil && *pl.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if pl.UDP != nil && *pl.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return strings.Join(parts, ", "), true

	case model.Snell:
		parts := []string{"snell", host, port, "psk=" + pl.PSK}
		if pl.Version > 0 {
			parts = append(parts, "version="+strconv.Itoa(pl.Version))
		}
		if pl.ObfsMode != "" {
			parts = append(parts, "obfs="+pl.ObfsMode)
			if pl.ObfsHost != "" {
				parts = append(parts, "obfs-host="+pl.ObfsHost)
			}
		}
		return strings.Join(parts, ", "), true

	case model.Hysteria2:
		if pl.Obfs != "" {
			return "", false
		}
		parts := []string{"hysteria2", host, port, "password=" + pl.Password}
		if pl.SNI != "" {
			parts = append(parts, "sni="+pl.SNI)
		}
		if pl.Insecure {
			parts = append(parts, "skip-cert-verify=true")
		}
		if pl.DownMbps > 0 {
			parts = append(parts, "download-bandwidth="+strconv.Itoa(pl.DownMbps))
		}
		return strings.Join(parts, ", "), true
	}
	return "", false
}

func surgeGroupLine(g config.Group, rep map[string]string) (string, error) {
	if err := surgeGroupNameOK(g.Name); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(g.Name)
	b.WriteString(" = ")
	b.WriteString(g.Type)
	for _, m := range g.Proxies {
		b.WriteString(", ")
		b.WriteString(surgeMemberName(m, rep))
	}
	if g.Type != "select" {
		url := g.URL
		if url == "" {
			url = "http://www.gstatic.com/generate_204"
		}
		b.WriteString(", url=")
		b.WriteString(url)
		interval := g.Interval
		if interval <= 0 {
			interval = 300
		}
		b.WriteString(", interval=")
		b.WriteString(strconv.Itoa(interval))
	}
	return b.String(), nil
}

// surgeProxyName returns the representable form of a node name: quoted when
// it contains a comma, rejected when the line format cannot carry it at all.
func surgeProxyName(name string) (string, error) {
	if strings.ContainsAny(name, "\r\n\x00") {
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_NODE_NAME",
				Message: "节点名包含非法控制字符",
				Stage:   "render",
				Snippet: truncateSnippet(name, 64),
			},
		}
	}
	if strings.Contains(name, "\"") {
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_NODE_NAME",
				Message: "节点名包含双引号，无法输出到 Surge",
				Stage:   "render",
				Snippet: truncateSnippet(name, 64),
				Hint:    "use a rename rule to strip '\"'",
			},
		}
	}
	if strings.Contains(name, "=") {
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_NODE_NAME",
				Message: "节点名包含 '='，无法输出到 Surge",
				Stage:   "render",
				Snippet: truncateSnippet(name, 64),
				Hint:    "use a rename rule to strip '='",
			},
		}
	}
	if strings.Contains(name, ",") {
		return "\"" + name + "\"", nil
	}
	return name, nil
}

func surgeGroupNameOK(name string) error {
	if strings.ContainsAny(name, "\r\n\x00") || strings.Contains(name, ",") || strings.Contains(name, "=") {
		return &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_NODE_NAME",
				Message: "策略组名含有 Surge 不支持的字符（, 或 = 或控制字符）",
				Stage:   "render",
				Snippet: truncateSnippet(name, 64),
				Hint:    "rename the group in the configuration",
			},
		}
	}
	return nil
}

// surgeMemberName maps a group member to its representable form. Members
// that are not proxy names (DIRECT, REJECT, other groups) pass through.
func surgeMemberName(member string, rep map[string]string) string {
	if r, ok := rep[member]; ok {
		return r
	}
	return member
}
