package model

import "strings"

// ConfType classifies an input document's family. It is a dispatch hint
// only: a wrong hint changes which decoder family is tried first, never
// which proxies a well-formed document yields.
type ConfType int

const (
	ConfUnknown ConfType = iota
	ConfLink             // a single share link
	ConfSub              // base64-wrapped subscription body
	ConfClash            // Clash-style YAML document
)

func (t ConfType) String() string {
	switch t {
	case ConfLink:
		return "link"
	case ConfSub:
		return "sub"
	case ConfClash:
		return "clash"
	default:
		return "unknown"
	}
}

// SniffConfType makes a cheap syntactic guess at a document's family.
// It never decodes the body; callers that care about correctness must rely
// on the decoders themselves.
func SniffConfType(content string) ConfType {
	s := strings.TrimSpace(content)
	if s == "" {
		return ConfUnknown
	}

	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "proxies:") {
			return ConfClash
		}
	}

	if strings.Contains(firstLine(s), "://") {
		return ConfLink
	}

	if isBase64Body(s) {
		return ConfSub
	}
	return ConfUnknown
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// isBase64Body reports whether every non-whitespace byte belongs to the
// base64 alphabet (std or url variant, padded or not).
func isBase64Body(s string) bool {
	seen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\r' || c == '\n' || c == ' ' || c == '\t':
			continue
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '-' || c == '_' || c == '=':
		default:
			return false
		}
		seen = true
	}
	return seen
}
