package render

import "github.com/crowvane/nodeconv/internal/model"

// surgeProxyTypes is the payload allow-list for Surge [Proxy] lines. Nodes
// outside it are skipped with a debug log, never an error: one exotic node
// must not sink the whole conversion.
var surgeProxyTypes = map[model.ProxyType]struct{}{
	model.TypeShadowsocks: {},
	model.TypeVMess:       {},
	model.TypeTrojan:      {},
	model.TypeHTTP:        {},
	model.TypeSocks:       {},
	model.TypeSnell:       {},
	model.TypeHysteria2:   {},
}

// linkProxyTypes is the payload allow-list for nodelist output: the families
// that have a share-link dialect at all.
var linkProxyTypes = map[model.ProxyType]struct{}{
	model.TypeShadowsocks:  {},
	model.TypeShadowsocksR: {},
	model.TypeVMess:        {},
	model.TypeTrojan:       {},
	model.TypeVless:        {},
	model.TypeHysteria:     {},
	model.TypeHysteria2:    {},
	model.TypeAnyTLS:       {},
	model.TypeSocks:        {},
}

// AllowedRuleTypes returns the rule TYPE allow-list for the target, nil for
// targets without a rule section. Lines outside the list are dropped at
// render time instead of producing a config the client cannot import.
func AllowedRuleTypes(target Target) map[string]struct{} {
	switch target {
	case TargetClash:
		return map[string]struct{}{
			"DOMAIN":         {},
			"DOMAIN-SUFFIX":  {},
			"DOMAIN-KEYWORD": {},
			"IP-CIDR":        {},
			"IP-CIDR6":       {},
			"GEOIP":          {},
			"PROCESS-NAME":   {},
			"RULE-SET":       {},
			"MATCH":          {},
		}
	case TargetSurge:
		return map[string]struct{}{
			"DOMAIN":         {},
			"DOMAIN-SUFFIX":  {},
			"DOMAIN-KEYWORD": {},
			"IP-CIDR":        {},
			"IP-CIDR6":       {},
			"GEOIP":          {},
			"PROCESS-NAME":   {},
			"URL-REGEX":      {},
			"RULE-SET":       {},
			"MATCH":          {},
		}
	default:
		return nil
	}
}

// Supports reports whether the target can express the payload family.
func Supports(target Target, t model.ProxyType) bool {
	switch target {
	case TargetClash:
		return true
	case TargetSurge:
		_, ok := surgeProxyTypes[t]
		return ok
	case TargetNodeList:
		_, ok := linkProxyTypes[t]
		return ok
	default:
		return false
	}
}
