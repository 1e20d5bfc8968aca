package clash

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/crowvane/nodeconv/internal/model"
)

// ToProxies flattens a decoded document into canonical records. Unknown
// entries and entries missing their required fields are dropped, never
// surfaced as errors.
func ToProxies(doc *Document) []model.Proxy {
	if doc == nil {
		return nil
	}
	out := make([]model.Proxy, 0, len(doc.Proxies))
	for _, e := range doc.Proxies {
		if p, ok := e.toProxy(); ok {
			out = append(out, p)
		}
	}
	return out
}

func (e Entry) toProxy() (model.Proxy, bool) {
	switch {
	case e.SS != nil:
		return e.SS.proxy()
	case e.SSR != nil:
		return e.SSR.proxy()
	case e.VMess != nil:
		return e.VMess.proxy()
	case e.Trojan != nil:
		return e.Trojan.proxy()
	case e.HTTP != nil:
		return e.HTTP.proxy()
	case e.Socks5 != nil:
		return e.Socks5.proxy()
	case e.Snell != nil:
		return e.Snell.proxy()
	case e.WireGuard != nil:
		return e.WireGuard.proxy()
	case e.Hysteria != nil:
		return e.Hysteria.proxy()
	case e.Hysteria2 != nil:
		return e.Hysteria2.proxy()
	case e.Vless != nil:
		return e.Vless.proxy()
	case e.AnyTLS != nil:
		return e.AnyTLS.proxy()
	default:
		return model.Proxy{}, false
	}
}

// identity validates the shared fields and builds the record skeleton.
func (b serverBase) identity(t model.ProxyType) (model.Proxy, bool) {
	if b.Server == "" || b.Port < 1 || b.Port > 65535 {
		return model.Proxy{}, false
	}
	name := b.Name
	if name == "" {
		name = model.DefaultRemark(b.Server, uint16(b.Port))
	}
	return model.Proxy{
		Group:  model.DefaultGroup(t),
		Name:   name,
		Server: b.Server,
		Port:   uint16(b.Port),
	}, true
}

func (v *SSEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeShadowsocks)
	if !ok || v.Cipher == "" || v.Password == "" {
		return model.Proxy{}, false
	}
	plugin, opts := ssPlugin(v.Plugin, v.PluginOpts)
	p.Payload = model.Shadowsocks{
		Cipher:     v.Cipher,
		Password:   v.Password,
		Plugin:     plugin,
		PluginOpts: opts,
		UDP:        v.UDP,
	}
	return p, true
}

// ssPlugin converts the structured plugin-opts block to the flat option list
// the share-link vocabulary uses. Clash calls simple-obfs "obfs"; the link
// form calls it obfs-local.
func ssPlugin(name string, po *SSPluginOpts) (string, []model.KV) {
	switch name {
	case "":
		return "", nil
	case "obfs":
		opts := []model.KV{}
		if po != nil {
			if po.Mode != "" {
				opts = append(opts, model.KV{Key: "obfs", Value: po.Mode})
			}
			if po.Host != "" {
				opts = append(opts, model.KV{Key: "obfs-host", Value: po.Host})
			}
		}
		return "obfs-local", opts
	default:
		opts := []model.KV{}
		if po != nil {
			if po.Mode != "" {
				opts = append(opts, model.KV{Key: "mode", Value: po.Mode})
			}
			if po.TLS {
				opts = append(opts, model.KV{Key: "tls", Value: ""})
			}
			if po.Host != "" {
				opts = append(opts, model.KV{Key: "host", Value: po.Host})
			}
			if po.Path != "" {
				opts = append(opts, model.KV{Key: "path", Value: po.Path})
			}
			if po.Mux {
				opts = append(opts, model.KV{Key: "mux", Value: ""})
			}
		}
		return name, opts
	}
}

func (v *SSREntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeShadowsocksR)
	if !ok || v.Cipher == "" || v.Password == "" || v.Protocol == "" || v.Obfs == "" {
		return model.Proxy{}, false
	}
	p.Payload = model.ShadowsocksR{
		Cipher:        v.Cipher,
		Password:      v.Password,
		Protocol:      v.Protocol,
		ProtocolParam: v.ProtocolParam,
		Obfs:          v.Obfs,
		ObfsParam:     v.ObfsParam,
		UDP:           v.UDP,
	}
	return p, true
}

func (v *VMessEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeVMess)
	if !ok {
		return model.Proxy{}, false
	}
	if _, err := uuid.Parse(v.UUID); err != nil {
		return model.Proxy{}, false
	}

	network := v.Network
	if network == "" {
		network = "tcp"
	}
	host, path, service := transportFields(network, v.WSOpts, v.H2Opts, v.GRPCOpts)

	sni := v.ServerName
	if sni == "" && v.TLS {
		sni = host
	}
	p.Payload = model.VMess{
		UUID:           v.UUID,
		AlterID:        v.AlterID,
		Cipher:         orDefault(v.Cipher, "auto"),
		Network:        network,
		Host:           host,
		Path:           path,
		ServiceName:    service,
		TLS:            v.TLS,
		SNI:            sni,
		ALPN:           v.ALPN,
		Fingerprint:    v.Fingerprint,
		SkipCertVerify: v.SkipCertVerify,
		UDP:            v.UDP,
	}
	return p, true
}

func (v *TrojanEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeTrojan)
	if !ok || v.Password == "" {
		return model.Proxy{}, false
	}
	network := v.Network
	host, path, service := transportFields(network, v.WSOpts, nil, v.GRPCOpts)
	p.Payload = model.Trojan{
		Password:       v.Password,
		Network:        network,
		Host:           host,
		Path:           path,
		ServiceName:    service,
		SNI:            v.SNI,
		ALPN:           v.ALPN,
		Fingerprint:    v.Fingerprint,
		SkipCertVerify: v.SkipCertVerify,
		UDP:            v.UDP,
	}
	return p, true
}

func (v *HTTPEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeHTTP)
	if !ok {
		return model.Proxy{}, false
	}
	p.Payload = model.HTTP{
		Username:       v.Username,
		Password:       v.Password,
		TLS:            v.TLS,
		SkipCertVerify: v.SkipCertVerify,
	}
	return p, true
}

func (v *Socks5Entry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeSocks)
	if !ok {
		return model.Proxy{}, false
	}
	p.Payload = model.Socks{
		Username:       v.Username,
		Password:       v.Password,
		TLS:            v.TLS,
		SkipCertVerify: v.SkipCertVerify,
		UDP:            v.UDP,
	}
	return p, true
}

func (v *SnellEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeSnell)
	if !ok || v.PSK == "" {
		return model.Proxy{}, false
	}
	payload := model.Snell{PSK: v.PSK, Version: v.Version}
	if v.ObfsOpts != nil {
		payload.ObfsMode = v.ObfsOpts.Mode
		payload.ObfsHost = v.ObfsOpts.Host
	}
	p.Payload = payload
	return p, true
}

func (v *WireGuardEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeWireGuard)
	if !ok || v.PrivateKey == "" {
		return model.Proxy{}, false
	}
	p.Payload = model.WireGuard{
		PrivateKey:   v.PrivateKey,
		PublicKey:    v.PublicKey,
		PresharedKey: v.PresharedKey,
		IP:           v.IP,
		IPv6:         v.IPv6,
		MTU:          v.MTU,
		Reserved:     v.Reserved,
		AllowedIPs:   v.AllowedIPs,
		UDP:          v.UDP,
	}
	return p, true
}

func (v *HysteriaEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeHysteria)
	if !ok {
		return model.Proxy{}, false
	}
	sni := v.SNI
	if sni == "" {
		sni = v.Server
	}
	insecure := false
	if v.SkipCertVerify != nil {
		insecure = *v.SkipCertVerify
	}
	p.Payload = model.Hysteria{
		Auth:     firstNonEmpty(v.AuthStr, v.AuthStrLegacy),
		Protocol: orDefault(v.Protocol, model.HysteriaDefaultProtocol),
		UpMbps:   mbpsOrDefault(string(v.Up), model.HysteriaDefaultUpMbps),
		DownMbps: mbpsOrDefault(string(v.Down), model.HysteriaDefaultDownMbps),
		ALPN:     v.ALPN,
		Obfs:     v.Obfs,
		SNI:      sni,
		Insecure: insecure,
	}
	return p, true
}

func (v *Hysteria2Entry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeHysteria2)
	if !ok {
		return model.Proxy{}, false
	}
	insecure := false
	if v.SkipCertVerify != nil {
		insecure = *v.SkipCertVerify
	}
	p.Payload = model.Hysteria2{
		Password:     v.Password,
		SNI:          v.SNI,
		Insecure:     insecure,
		Obfs:         v.Obfs,
		ObfsPassword: v.ObfsPassword,
		ALPN:         v.ALPN,
		UpMbps:       mbpsOrDefault(string(v.Up), 0),
		DownMbps:     mbpsOrDefault(string(v.Down), 0),
		Ports:        v.Ports,
		Fingerprint:  firstNonEmpty(v.ClientFP, v.Fingerprint),
	}
	return p, true
}

func (v *VlessEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeVless)
	if !ok {
		return model.Proxy{}, false
	}
	if _, err := uuid.Parse(v.UUID); err != nil {
		return model.Proxy{}, false
	}

	security := "none"
	if v.TLS {
		security = "tls"
	}
	payload := model.Vless{
		UUID:           v.UUID,
		Flow:           v.Flow,
		Encryption:     "none",
		Security:       security,
		SNI:            v.ServerName,
		ALPN:           v.ALPN,
		Fingerprint:    v.Fingerprint,
		SkipCertVerify: v.SkipCertVerify,
		UDP:            v.UDP,
	}
	if v.RealityOpts != nil && v.RealityOpts.PublicKey != "" {
		payload.Security = "reality"
		payload.PublicKey = v.RealityOpts.PublicKey
		payload.ShortID = v.RealityOpts.ShortID
	}
	network := v.Network
	if network == "" {
		network = "tcp"
	}
	payload.Network = network
	payload.Host, payload.Path, payload.ServiceName = transportFields(network, v.WSOpts, nil, v.GRPCOpts)
	p.Payload = payload
	return p, true
}

func (v *AnyTLSEntry) proxy() (model.Proxy, bool) {
	p, ok := v.identity(model.TypeAnyTLS)
	if !ok || v.Password == "" {
		return model.Proxy{}, false
	}
	p.Payload = model.AnyTLS{
		Password:                 v.Password,
		SNI:                      v.SNI,
		ALPN:                     v.ALPN,
		SkipCertVerify:           v.SkipCertVerify,
		Fingerprint:              v.Fingerprint,
		ClientFingerprint:        v.ClientFingerprint,
		UDP:                      v.UDP,
		IdleSessionCheckInterval: v.IdleSessionCheckInterval,
		IdleSessionTimeout:       v.IdleSessionTimeout,
		MinIdleSession:           v.MinIdleSession,
		TFO:                      v.TFO,
	}
	return p, true
}

// transportFields pulls host/path/service-name out of whichever opts block
// the network uses.
func transportFields(network string, ws *WSOpts, h2 *H2Opts, grpc *GRPCOpts) (host, path, service string) {
	switch network {
	case "ws":
		if ws != nil {
			path = ws.Path
			host = hostHeader(ws.Headers)
		}
		if path == "" {
			path = "/"
		}
	case "h2", "http":
		if h2 != nil {
			path = h2.Path
			if len(h2.Host) > 0 {
				host = h2.Host[0]
			}
		}
	case "grpc":
		if grpc != nil {
			service = grpc.ServiceName
		}
	}
	return host, path, service
}

func hostHeader(headers map[string]string) string {
	for _, key := range []string{"Host", "host", "HOST"} {
		if v, ok := headers[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// mbpsOrDefault reads the leading integer of a bandwidth value, tolerating a
// unit suffix ("100 Mbps").
func mbpsOrDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(s[:i])
	if i == 0 || err != nil {
		return def
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
