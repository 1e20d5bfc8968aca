package sub

import (
	"strings"

	"github.com/crowvane/nodeconv/internal/clash"
	"github.com/crowvane/nodeconv/internal/model"
)

// decoders in dispatch priority order, most specific scheme first. Every
// decoder rejects foreign input untouched, which is what makes the
// sequential walk safe.
var decoders = []func(string) (model.Proxy, bool){
	ExplodeVMess,
	ExplodeSS,
	ExplodeSSR,
	ExplodeSocks,
	ExplodeHTTP,
	ExplodeTrojan,
	ExplodeVless,
	ExplodeHysteria2,
	ExplodeHysteria,
	ExplodeAnyTLS,
}

// Explode tries every link decoder in order; the first success wins.
// Dispatch interprets no fields itself, and a link no decoder recognizes
// yields nothing rather than an invented record.
func Explode(link string) (model.Proxy, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return model.Proxy{}, false
	}
	for _, explode := range decoders {
		if p, ok := explode(link); ok {
			return p, true
		}
	}
	return model.Proxy{}, false
}

// ExplodeSub parses a subscription body: either a raw line list of share
// links or the same list wrapped in base64. Lines that decode to nothing
// are skipped, never fatal.
func ExplodeSub(body string) []model.Proxy {
	s := strings.TrimSpace(stripUTF8BOM(body))
	if s == "" {
		return nil
	}

	// A body without any scheme marker is assumed to be base64-wrapped.
	if !strings.Contains(s, "://") {
		decoded, ok := decodeB64ToString(removeSpaceTabCRLF(s))
		if !ok {
			return nil
		}
		s = strings.TrimSpace(stripUTF8BOM(decoded))
	}

	var out []model.Proxy
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := Explode(line); ok {
			out = append(out, p)
		}
	}
	return out
}

// ExplodeConfContent turns a whole input document into proxies. The hint
// only decides which family is tried first; a wrong hint costs a wasted
// attempt, not a different result.
func ExplodeConfContent(content string, hint model.ConfType) []model.Proxy {
	if hint == model.ConfUnknown {
		hint = model.SniffConfType(content)
	}

	if hint == model.ConfClash {
		if out := explodeClash(content); len(out) > 0 {
			return out
		}
		return ExplodeSub(content)
	}
	if out := ExplodeSub(content); len(out) > 0 {
		return out
	}
	return explodeClash(content)
}

func explodeClash(content string) []model.Proxy {
	doc, ok := clash.Decode(content)
	if !ok {
		return nil
	}
	return clash.ToProxies(doc)
}
