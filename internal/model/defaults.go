package model

import "fmt"

// Hysteria link defaults. Every absent parameter has a defined value; the
// decoder applies all of them so a Hysteria payload is never partially set.
const (
	HysteriaDefaultPort     uint16 = 443
	HysteriaDefaultProtocol        = "udp"
	HysteriaDefaultUpMbps          = 10
	HysteriaDefaultDownMbps        = 50
)

// DefaultTLSPort is the port assumed by TLS-shaped link dialects
// (trojan, vless, hysteria2, anytls) when the link omits one.
const DefaultTLSPort uint16 = 443

// DefaultGroup returns the subscription group label a decoder assigns when
// the source carries no group of its own.
func DefaultGroup(t ProxyType) string {
	switch t {
	case TypeShadowsocks:
		return "SSProvider"
	case TypeShadowsocksR:
		return "SSRProvider"
	case TypeVMess:
		return "V2RayProvider"
	case TypeTrojan:
		return "TrojanProvider"
	case TypeVless:
		return "VlessProvider"
	case TypeHysteria:
		return "HysteriaProvider"
	case TypeHysteria2:
		return "Hysteria2Provider"
	case TypeSnell:
		return "SnellProvider"
	case TypeSocks:
		return "SocksProvider"
	case TypeHTTP:
		return "HTTPProvider"
	case TypeWireGuard:
		return "WireGuardProvider"
	case TypeAnyTLS:
		return "AnyTLSProvider"
	default:
		return "Provider"
	}
}

// DefaultRemark synthesizes the display name used when a source provides
// none.
func DefaultRemark(host string, port uint16) string {
	return fmt.Sprintf("%s (%d)", host, port)
}
