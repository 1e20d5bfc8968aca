package model

// ProxyType identifies the protocol family of a payload. The set is closed:
// decoders and renderers switch over it exhaustively, and anything outside it
// is represented by the clash package's catch-all entry, never by a Proxy.
type ProxyType string

const (
	TypeShadowsocks  ProxyType = "ss"
	TypeShadowsocksR ProxyType = "ssr"
	TypeVMess        ProxyType = "vmess"
	TypeTrojan       ProxyType = "trojan"
	TypeVless        ProxyType = "vless"
	TypeHysteria     ProxyType = "hysteria"
	TypeHysteria2    ProxyType = "hysteria2"
	TypeSnell        ProxyType = "snell"
	TypeSocks        ProxyType = "socks5"
	TypeHTTP         ProxyType = "http"
	TypeWireGuard    ProxyType = "wireguard"
	TypeAnyTLS       ProxyType = "anytls"
)

// Payload is the protocol-specific half of a Proxy. Implementations are the
// value objects below and nothing else; the unexported method seals the set.
type Payload interface {
	Type() ProxyType
	payload()
}

// Proxy is one normalized node: identity fields plus exactly one payload.
// A Proxy either came out of a successful decode fully populated or it does
// not exist; nothing hands out half-parsed records.
type Proxy struct {
	// Group is the owning subscription group. Decoders set the per-family
	// default label; callers may overwrite it wholesale.
	Group string

	// Name is the display remark. It comes from a link fragment or the
	// document's name field, may be non-unique, and is normalized later by
	// the manipulation pass.
	Name string

	Server string
	Port   uint16

	Payload Payload
}

type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Shadowsocks carries SIP002 fields. PluginOpts must preserve order (no map)
// to keep emitted plugin strings deterministic.
type Shadowsocks struct {
	Cipher     string `json:"cipher"`
	Password   string `json:"password"`
	Plugin     string `json:"plugin,omitempty"`
	PluginOpts []KV   `json:"plugin-opts,omitempty"`
	UDP        *bool  `json:"udp,omitempty"`
}

func (Shadowsocks) Type() ProxyType { return TypeShadowsocks }
func (Shadowsocks) payload()        {}

type ShadowsocksR struct {
	Cipher        string `json:"cipher"`
	Password      string `json:"password"`
	Protocol      string `json:"protocol"`
	ProtocolParam string `json:"protocol-param,omitempty"`
	Obfs          string `json:"obfs"`
	ObfsParam     string `json:"obfs-param,omitempty"`
	UDP           *bool  `json:"udp,omitempty"`
}

func (ShadowsocksR) Type() ProxyType { return TypeShadowsocksR }
func (ShadowsocksR) payload()        {}

type VMess struct {
	UUID    string `json:"uuid"`
	AlterID int    `json:"alter-id"`
	// Cipher is the client-side security setting, "auto" when the source
	// does not say.
	Cipher string `json:"cipher"`

	// Network is tcp/ws/h2/grpc; Host/Path/ServiceName only apply to the
	// transport that uses them.
	Network     string `json:"network,omitempty"`
	Host        string `json:"host,omitempty"`
	Path        string `json:"path,omitempty"`
	ServiceName string `json:"service-name,omitempty"`

	TLS            bool     `json:"tls,omitempty"`
	SNI            string   `json:"sni,omitempty"`
	ALPN           []string `json:"alpn,omitempty"`
	Fingerprint    string   `json:"client-fingerprint,omitempty"`
	SkipCertVerify *bool    `json:"skip-cert-verify,omitempty"`
	UDP            *bool    `json:"udp,omitempty"`
}

func (VMess) Type() ProxyType { return TypeVMess }
func (VMess) payload()        {}

type Trojan struct {
	Password string `json:"password"`

	Network     string `json:"network,omitempty"`
	Host        string `json:"host,omitempty"`
	Path        string `json:"path,omitempty"`
	ServiceName string `json:"service-name,omitempty"`

	SNI            string   `json:"sni,omitempty"`
	ALPN           []string `json:"alpn,omitempty"`
	Fingerprint    string   `json:"client-fingerprint,omitempty"`
	SkipCertVerify *bool    `json:"skip-cert-verify,omitempty"`
	UDP            *bool    `json:"udp,omitempty"`
}

func (Trojan) Type() ProxyType { return TypeTrojan }
func (Trojan) payload()        {}

type Vless struct {
	UUID       string `json:"uuid"`
	Flow       string `json:"flow,omitempty"`
	Encryption string `json:"encryption,omitempty"`

	// Security is none/tls/reality; PublicKey/ShortID/SpiderX only apply to
	// reality.
	Security  string `json:"security,omitempty"`
	PublicKey string `json:"public-key,omitempty"`
	ShortID   string `json:"short-id,omitempty"`
	SpiderX   string `json:"spider-x,omitempty"`

	Network     string `json:"network,omitempty"`
	Host        string `json:"host,omitempty"`
	Path        string `json:"path,omitempty"`
	ServiceName string `json:"service-name,omitempty"`

	SNI            string   `json:"sni,omitempty"`
	ALPN           []string `json:"alpn,omitempty"`
	Fingerprint    string   `json:"client-fingerprint,omitempty"`
	SkipCertVerify *bool    `json:"skip-cert-verify,omitempty"`
	UDP            *bool    `json:"udp,omitempty"`
}

func (Vless) Type() ProxyType { return TypeVless }
func (Vless) payload()        {}

// Hysteria fields are always populated by decoders (the dialect defines a
// default for every one of them), so none are pointers.
type Hysteria struct {
	Auth      string   `json:"auth"`
	Protocol  string   `json:"protocol"`
	UpMbps    int      `json:"up-mbps"`
	DownMbps  int      `json:"down-mbps"`
	ALPN      []string `json:"alpn,omitempty"`
	Obfs      string   `json:"obfs,omitempty"`
	ObfsParam string   `json:"obfs-param,omitempty"`
	SNI       string   `json:"sni,omitempty"`
	Insecure  bool     `json:"insecure"`
}

func (Hysteria) Type() ProxyType { return TypeHysteria }
func (Hysteria) payload()        {}

type Hysteria2 struct {
	Password     string   `json:"password"`
	SNI          string   `json:"sni,omitempty"`
	Insecure     bool     `json:"insecure"`
	Obfs         string   `json:"obfs,omitempty"`
	ObfsPassword string   `json:"obfs-password,omitempty"`
	ALPN         []string `json:"alpn,omitempty"`
	UpMbps       int      `json:"up-mbps,omitempty"`
	DownMbps     int      `json:"down-mbps,omitempty"`
	// Ports is the multi-port range string ("443,8443" or "500-1000"),
	// passed through verbatim.
	Ports       string `json:"ports,omitempty"`
	Fingerprint string `json:"client-fingerprint,omitempty"`
}

func (Hysteria2) Type() ProxyType { return TypeHysteria2 }
func (Hysteria2) payload()        {}

type Snell struct {
	PSK      string `json:"psk"`
	Version  int    `json:"version,omitempty"`
	ObfsMode string `json:"obfs-mode,omitempty"`
	ObfsHost string `json:"obfs-host,omitempty"`
}

func (Snell) Type() ProxyType { return TypeSnell }
func (Snell) payload()        {}

type Socks struct {
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	TLS            bool   `json:"tls,omitempty"`
	SkipCertVerify *bool  `json:"skip-cert-verify,omitempty"`
	UDP            *bool  `json:"udp,omitempty"`
}

func (Socks) Type() ProxyType { return TypeSocks }
func (Socks) payload()        {}

type HTTP struct {
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	TLS            bool   `json:"tls,omitempty"`
	SkipCertVerify *bool  `json:"skip-cert-verify,omitempty"`
}

func (HTTP) Type() ProxyType { return TypeHTTP }
func (HTTP) payload()        {}

type WireGuard struct {
	PrivateKey   string   `json:"private-key"`
	PublicKey    string   `json:"public-key,omitempty"`
	PresharedKey string   `json:"preshared-key,omitempty"`
	IP           string   `json:"ip,omitempty"`
	IPv6         string   `json:"ipv6,omitempty"`
	MTU          int      `json:"mtu,omitempty"`
	Reserved     []int    `json:"reserved,omitempty"`
	AllowedIPs   []string `json:"allowed-ips,omitempty"`
	UDP          *bool    `json:"udp,omitempty"`
}

func (WireGuard) Type() ProxyType { return TypeWireGuard }
func (WireGuard) payload()        {}

type AnyTLS struct {
	Password          string   `json:"password"`
	SNI               string   `json:"sni,omitempty"`
	ALPN              []string `json:"alpn,omitempty"`
	SkipCertVerify    *bool    `json:"skip-cert-verify,omitempty"`
	Fingerprint       string   `json:"fingerprint,omitempty"`
	ClientFingerprint string   `json:"client-fingerprint,omitempty"`
	UDP               *bool    `json:"udp,omitempty"`

	// Idle session knobs are in seconds. Absent means "client default",
	// which is why these are pointers and zero is a real value.
	IdleSessionCheckInterval *int  `json:"idle-session-check-interval,omitempty"`
	IdleSessionTimeout       *int  `json:"idle-session-timeout,omitempty"`
	MinIdleSession           *int  `json:"min-idle-session,omitempty"`
	TFO                      *bool `json:"tfo,omitempty"`
}

func (AnyTLS) Type() ProxyType { return TypeAnyTLS }
func (AnyTLS) payload()        {}
