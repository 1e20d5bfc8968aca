package clash

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the slice of a Clash config this package reads: the proxies
// list. Every other top-level key is ignored.
type Document struct {
	Proxies []Entry `yaml:"proxies"`
}

// Entry is one proxies[] element: a union over the twelve recognized shapes
// keyed by the "type" field, plus an explicit catch-all. Exactly one pointer
// is non-nil after decoding.
type Entry struct {
	SS        *SSEntry
	SSR       *SSREntry
	VMess     *VMessEntry
	Trojan    *TrojanEntry
	HTTP      *HTTPEntry
	Socks5    *Socks5Entry
	Snell     *SnellEntry
	WireGuard *WireGuardEntry
	Hysteria  *HysteriaEntry
	Hysteria2 *Hysteria2Entry
	Vless     *VlessEntry
	AnyTLS    *AnyTLSEntry

	// Unknown holds entries whose tag matches no known shape, or whose body
	// refused to decode as its declared shape. One such entry never fails
	// the surrounding list; callers skip these.
	Unknown *UnknownEntry
}

type UnknownEntry struct {
	// Tag is the raw discriminator value, "" when the entry had none.
	Tag string
}

func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		*e = Entry{Unknown: &UnknownEntry{}}
		return nil
	}

	bad := Entry{Unknown: &UnknownEntry{Tag: head.Type}}
	switch head.Type {
	case "ss":
		var v SSEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{SS: &v}
		}
	case "ssr":
		var v SSREntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{SSR: &v}
		}
	case "vmess":
		var v VMessEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{VMess: &v}
		}
	case "trojan":
		var v TrojanEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{Trojan: &v}
		}
	case "http":
		var v HTTPEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{HTTP: &v}
		}
	case "socks5":
		var v Socks5Entry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{Socks5: &v}
		}
	case "snell":
		var v SnellEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{Snell: &v}
		}
	case "wireguard":
		var v WireGuardEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{WireGuard: &v}
		}
	case "hysteria":
		var v HysteriaEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{Hysteria: &v}
		}
	case "hysteria2":
		var v Hysteria2Entry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{Hysteria2: &v}
		}
	case "vless":
		var v VlessEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{Vless: &v}
		}
	case "anytls":
		var v AnyTLSEntry
		if node.Decode(&v) != nil {
			*e = bad
		} else {
			*e = Entry{AnyTLS: &v}
		}
	default:
		*e = bad
	}
	return nil
}

// serverBase carries the identity fields every entry shape shares.
type serverBase struct {
	Name   string  `yaml:"name"`
	Server string  `yaml:"server"`
	Port   flexInt `yaml:"port"`
}

// flexInt tolerates both a YAML integer and a quoted digit string;
// subscription generators disagree on which to emit.
type flexInt int

func (f *flexInt) UnmarshalYAML(node *yaml.Node) error {
	var n int
	if err := node.Decode(&n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexString tolerates a bare number where a string is expected, as in
// bandwidth fields like "up: 100" vs "up: 100 Mbps".
type flexString string

func (f *flexString) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n int
	if err := node.Decode(&n); err != nil {
		return err
	}
	*f = flexString(strconv.Itoa(n))
	return nil
}

type WSOpts struct {
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
}

type H2Opts struct {
	Host []string `yaml:"host"`
	Path string   `yaml:"path"`
}

type GRPCOpts struct {
	ServiceName string `yaml:"grpc-service-name"`
}

type SSEntry struct {
	serverBase `yaml:",inline"`
	Cipher     string        `yaml:"cipher"`
	Password   string        `yaml:"password"`
	Plugin     string        `yaml:"plugin"`
	PluginOpts *SSPluginOpts `yaml:"plugin-opts"`
	UDP        *bool         `yaml:"udp"`
}

type SSPluginOpts struct {
	Mode string `yaml:"mode"`
	Host string `yaml:"host"`
	TLS  bool   `yaml:"tls"`
	Path string `yaml:"path"`
	Mux  bool   `yaml:"mux"`
}

type SSREntry struct {
	serverBase    `yaml:",inline"`
	Cipher        string `yaml:"cipher"`
	Password      string `yaml:"password"`
	Protocol      string `yaml:"protocol"`
	ProtocolParam string `yaml:"protocol-param"`
	Obfs          string `yaml:"obfs"`
	ObfsParam     string `yaml:"obfs-param"`
	UDP           *bool  `yaml:"udp"`
}

type VMessEntry struct {
	serverBase     `yaml:",inline"`
	UUID           string    `yaml:"uuid"`
	AlterID        int       `yaml:"alterId"`
	Cipher         string    `yaml:"cipher"`
	TLS            bool      `yaml:"tls"`
	SkipCertVerify *bool     `yaml:"skip-cert-verify"`
	ServerName     string    `yaml:"servername"`
	Network        string    `yaml:"network"`
	ALPN           []string  `yaml:"alpn"`
	Fingerprint    string    `yaml:"client-fingerprint"`
	UDP            *bool     `yaml:"udp"`
	WSOpts         *WSOpts   `yaml:"ws-opts"`
	H2Opts         *H2Opts   `yaml:"h2-opts"`
	GRPCOpts       *GRPCOpts `yaml:"grpc-opts"`
}

type TrojanEntry struct {
	serverBase     `yaml:",inline"`
	Password       string    `yaml:"password"`
	SNI            string    `yaml:"sni"`
	ALPN           []string  `yaml:"alpn"`
	Network        string    `yaml:"network"`
	SkipCertVerify *bool     `yaml:"skip-cert-verify"`
	Fingerprint    string    `yaml:"client-fingerprint"`
	UDP            *bool     `yaml:"udp"`
	WSOpts         *WSOpts   `yaml:"ws-opts"`
	GRPCOpts       *GRPCOpts `yaml:"grpc-opts"`
}

type HTTPEntry struct {
	serverBase     `yaml:",inline"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TLS            bool   `yaml:"tls"`
	SkipCertVerify *bool  `yaml:"skip-cert-verify"`
}

type Socks5Entry struct {
	serverBase     `yaml:",inline"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TLS            bool   `yaml:"tls"`
	SkipCertVerify *bool  `yaml:"skip-cert-verify"`
	UDP            *bool  `yaml:"udp"`
}

type SnellEntry struct {
	serverBase `yaml:",inline"`
	PSK        string     `yaml:"psk"`
	Version    int        `yaml:"version"`
	ObfsOpts   *SnellObfs `yaml:"obfs-opts"`
}

type SnellObfs struct {
	Mode string `yaml:"mode"`
	Host string `yaml:"host"`
}

type WireGuardEntry struct {
	serverBase   `yaml:",inline"`
	PrivateKey   string   `yaml:"private-key"`
	PublicKey    string   `yaml:"public-key"`
	PresharedKey string   `yaml:"preshared-key"`
	IP           string   `yaml:"ip"`
	IPv6         string   `yaml:"ipv6"`
	MTU          int      `yaml:"mtu"`
	Reserved     []int    `yaml:"reserved"`
	AllowedIPs   []string `yaml:"allowed-ips"`
	UDP          *bool    `yaml:"udp"`
}

type HysteriaEntry struct {
	serverBase     `yaml:",inline"`
	AuthStr        string     `yaml:"auth-str"`
	AuthStrLegacy  string     `yaml:"auth_str"`
	Protocol       string     `yaml:"protocol"`
	Up             flexString `yaml:"up"`
	Down           flexString `yaml:"down"`
	ALPN           []string   `yaml:"alpn"`
	Obfs           string     `yaml:"obfs"`
	SNI            string     `yaml:"sni"`
	SkipCertVerify *bool      `yaml:"skip-cert-verify"`
}

type Hysteria2Entry struct {
	serverBase     `yaml:",inline"`
	Password       string     `yaml:"password"`
	Obfs           string     `yaml:"obfs"`
	ObfsPassword   string     `yaml:"obfs-password"`
	SNI            string     `yaml:"sni"`
	SkipCertVerify *bool      `yaml:"skip-cert-verify"`
	ALPN           []string   `yaml:"alpn"`
	Up             flexString `yaml:"up"`
	Down           flexString `yaml:"down"`
	Ports          string     `yaml:"ports"`
	Fingerprint    string     `yaml:"fingerprint"`
	ClientFP       string     `yaml:"client-fingerprint"`
	UDP            *bool      `yaml:"udp"`
}

type VlessEntry struct {
	serverBase     `yaml:",inline"`
	UUID           string       `yaml:"uuid"`
	Flow           string       `yaml:"flow"`
	TLS            bool         `yaml:"tls"`
	ServerName     string       `yaml:"servername"`
	Network        string       `yaml:"network"`
	ALPN           []string     `yaml:"alpn"`
	RealityOpts    *RealityOpts `yaml:"reality-opts"`
	Fingerprint    string       `yaml:"client-fingerprint"`
	SkipCertVerify *bool        `yaml:"skip-cert-verify"`
	UDP            *bool        `yaml:"udp"`
	WSOpts         *WSOpts      `yaml:"ws-opts"`
	GRPCOpts       *GRPCOpts    `yaml:"grpc-opts"`
}

type RealityOpts struct {
	PublicKey string `yaml:"public-key"`
	ShortID   string `yaml:"short-id"`
}

type AnyTLSEntry struct {
	serverBase               `yaml:",inline"`
	Password                 string   `yaml:"password"`
	ALPN                     []string `yaml:"alpn"`
	SNI                      string   `yaml:"sni"`
	SkipCertVerify           *bool    `yaml:"skip-cert-verify"`
	Fingerprint              string   `yaml:"fingerprint"`
	ClientFingerprint        string   `yaml:"client-fingerprint"`
	UDP                      *bool    `yaml:"udp"`
	IdleSessionCheckInterval *int     `yaml:"idle-session-check-interval"`
	IdleSessionTimeout       *int     `yaml:"idle-session-timeout"`
	MinIdleSession           *int     `yaml:"min-idle-session"`
	TFO                      *bool    `yaml:"tfo"`
}

// Decode parses a whole document. It reports false when the input is not
// YAML or has no proxies list; individual bad entries degrade to Unknown
// instead of failing the call.
func Decode(content string) (*Document, bool) {
	content = strings.TrimPrefix(content, "\uFEFF")
	var doc Document
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, false
	}
	if len(doc.Proxies) == 0 {
		return nil, false
	}
	return &doc, true
}
