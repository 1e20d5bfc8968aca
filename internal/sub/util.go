package sub

import (
	"encoding/base64"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// decodeB64ToBytes tries the standard alphabet (with padding) first, then
// URL-safe, then the raw (unpadded) variants. Subscription sources disagree
// on all of these.
func decodeB64ToBytes(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// decodeB64ToString additionally requires the decoded bytes to be UTF-8.
func decodeB64ToString(s string) (string, bool) {
	b, err := decodeB64ToBytes(s)
	if err != nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

// looseBool accepts the boolean spellings link dialects actually use:
// "1" or a case-insensitive "true". Everything else is false.
func looseBool(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}

// splitList splits a comma-separated field, trims each element, drops
// empties and duplicates. Order of first appearance is kept so output is
// deterministic, but membership is what callers compare.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// parseUintDefault parses a decimal unsigned value, tolerating a unit suffix
// ("100 Mbps"); absent or unparseable input yields the default.
func parseUintDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return def
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseHostPort is the strict form: both host and port must be present and
// the port must be in range.
func parseHostPort(s string) (string, uint16, bool) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, false
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, false
	}
	port, ok := parsePort(portStr)
	if !ok {
		return "", 0, false
	}
	return host, port, true
}

// splitHostPortDefault tolerates a missing port (the dialect default is used)
// and bracketed IPv6 literals.
func splitHostPortDefault(s string, def uint16) (string, uint16, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, false
	}

	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 || end == 1 {
			return "", 0, false
		}
		host := s[1:end]
		rest := s[end+1:]
		if rest == "" {
			return host, def, true
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, false
		}
		port, ok := parsePort(rest[1:])
		if !ok {
			return "", 0, false
		}
		return host, port, true
	}

	switch strings.Count(s, ":") {
	case 0:
		return s, def, true
	case 1:
		host, portStr, _ := strings.Cut(s, ":")
		if host == "" {
			return "", 0, false
		}
		port, ok := parsePort(portStr)
		if !ok {
			return "", 0, false
		}
		return host, port, true
	default:
		// Unbracketed IPv6 literal; no port can be carried.
		return s, def, true
	}
}

func parsePort(s string) (uint16, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return 0, false
	}
	return uint16(n), true
}

// cutFragment splits off the #remark part and percent-decodes it. A remark
// that fails to decode is kept raw; one carrying control characters rejects
// the link (they would corrupt any rendered output).
func cutFragment(s string) (body, remark string, ok bool) {
	body, frag, has := strings.Cut(s, "#")
	if !has {
		return body, "", true
	}
	decoded, err := url.PathUnescape(frag)
	if err != nil {
		decoded = frag
	}
	decoded = strings.TrimSpace(decoded)
	if strings.ContainsAny(decoded, "\r\n\x00") {
		return "", "", false
	}
	return body, decoded, true
}

// parseFlatQuery parses a raw query into a flat first-wins map. It splits on
// '&' only: net/url.ParseQuery would reject the literal semicolons SIP002
// plugin values carry. Values are percent-decoded, kept raw when decoding
// fails.
func parseFlatQuery(query string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		kRaw, vRaw, _ := strings.Cut(part, "=")
		k, err := url.PathUnescape(kRaw)
		if err != nil {
			k = kRaw
		}
		if k == "" {
			continue
		}
		if _, dup := out[k]; dup {
			continue
		}
		v, err := url.PathUnescape(vRaw)
		if err != nil {
			v = vRaw
		}
		out[k] = v
	}
	return out
}

// firstNonEmpty returns the first non-empty value, used for the alias
// parameters dialects accumulate over time (sni/peer/host and friends).
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
