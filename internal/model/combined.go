package model

import (
	"encoding/json"
	"fmt"
)

// Tag values for the CombinedProxy wire shape.
const (
	CombinedTagVless       = "Vless"
	CombinedTagShadowsocks = "Shadowsocks"
	CombinedTagAnyTLS      = "AnyTls"
)

// CombinedProxy is a self-describing value over the payload variants that
// travel alone on the wire. Exactly one variant is populated and the wire
// tag always names it; Marshal and Unmarshal both enforce the agreement, so
// a tag/payload mismatch can not pass through silently.
type CombinedProxy struct {
	Vless       *Vless
	Shadowsocks *Shadowsocks
	AnyTLS      *AnyTLS
}

func NewCombinedVless(v Vless) CombinedProxy             { return CombinedProxy{Vless: &v} }
func NewCombinedShadowsocks(s Shadowsocks) CombinedProxy { return CombinedProxy{Shadowsocks: &s} }
func NewCombinedAnyTLS(a AnyTLS) CombinedProxy           { return CombinedProxy{AnyTLS: &a} }

// Tag returns the wire tag of the populated variant, or "" when the value
// violates the exactly-one invariant.
func (c CombinedProxy) Tag() string {
	switch {
	case c.Vless != nil && c.Shadowsocks == nil && c.AnyTLS == nil:
		return CombinedTagVless
	case c.Shadowsocks != nil && c.Vless == nil && c.AnyTLS == nil:
		return CombinedTagShadowsocks
	case c.AnyTLS != nil && c.Vless == nil && c.Shadowsocks == nil:
		return CombinedTagAnyTLS
	default:
		return ""
	}
}

// Payload returns the populated variant as a Payload, or nil when the
// exactly-one invariant is violated.
func (c CombinedProxy) Payload() Payload {
	switch c.Tag() {
	case CombinedTagVless:
		return *c.Vless
	case CombinedTagShadowsocks:
		return *c.Shadowsocks
	case CombinedTagAnyTLS:
		return *c.AnyTLS
	default:
		return nil
	}
}

type combinedWire struct {
	Type        string       `json:"type"`
	Vless       *Vless       `json:"vless,omitempty"`
	Shadowsocks *Shadowsocks `json:"shadowsocks,omitempty"`
	AnyTLS      *AnyTLS      `json:"anytls,omitempty"`
}

func (c CombinedProxy) MarshalJSON() ([]byte, error) {
	tag := c.Tag()
	if tag == "" {
		return nil, fmt.Errorf("combined proxy: exactly one variant must be set")
	}
	return json.Marshal(combinedWire{
		Type:        tag,
		Vless:       c.Vless,
		Shadowsocks: c.Shadowsocks,
		AnyTLS:      c.AnyTLS,
	})
}

func (c *CombinedProxy) UnmarshalJSON(data []byte) error {
	var w combinedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	got := CombinedProxy{Vless: w.Vless, Shadowsocks: w.Shadowsocks, AnyTLS: w.AnyTLS}
	switch {
	case w.Type == "":
		return fmt.Errorf("combined proxy: missing type tag")
	case got.Tag() == "":
		return fmt.Errorf("combined proxy: exactly one payload must be present")
	case got.Tag() != w.Type:
		return fmt.Errorf("combined proxy: tag %q does not match payload %q", w.Type, got.Tag())
	}

	*c = got
	return nil
}
