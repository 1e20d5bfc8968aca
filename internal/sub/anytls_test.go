package sub

import (
	"testing"

	"github.com/crowvane/nodeconv/internal/model"
)

func TestExplodeAnyTLS_Basic(t *testing.T) {
	p, ok := ExplodeAnyTLS("anytls://secret@example.com:8443?sni=tls.example.com&insecure=1&udp=true&fp=chrome#node")
	if !ok {
		t.Fatalf("decode failed")
	}
	at := p.Payload.(model.AnyTLS)
	if at.Password != "secret" {
		t.Fatalf("password=%q, want=%q", at.Password, "secret")
	}
	if at.SNI != "tls.example.com" {
		t.Fatalf("sni=%q, want=%q", at.SNI, "tls.example.com")
	}
	if at.SkipCertVerify == nil || !*at.SkipCertVerify {
		t.Fatalf("skip-cert-verify=%v, want true", at.SkipCertVerify)
	}
	if at.UDP == nil || !*at.UDP {
		t.Fatalf("udp=%v, want true", at.UDP)
	}
	if at.ClientFingerprint != "chrome" {
		t.Fatalf("fp=%q, want=%q", at.ClientFingerprint, "chrome")
	}
}

func TestExplodeAnyTLS_IdleKnobs(t *testing.T) {
	p, ok := ExplodeAnyTLS("anytls://pw@example.com?idleSessionCheckInterval=30&idleSessionTimeout=0&minIdleSession=3")
	if !ok {
		t.Fatalf("decode failed")
	}
	at := p.Payload.(model.AnyTLS)
	if at.IdleSessionCheckInterval == nil || *at.IdleSessionCheckInterval != 30 {
		t.Fatalf("check-interval=%v, want 30", at.IdleSessionCheckInterval)
	}
	// Zero is an explicit value, distinct from absent.
	if at.IdleSessionTimeout == nil || *at.IdleSessionTimeout != 0 {
		t.Fatalf("timeout=%v, want explicit 0", at.IdleSessionTimeout)
	}
	if at.MinIdleSession == nil || *at.MinIdleSession != 3 {
		t.Fatalf("min-idle=%v, want 3", at.MinIdleSession)
	}
}

func TestExplodeAnyTLS_AbsentKnobsStayNil(t *testing.T) {
	p, ok := ExplodeAnyTLS("anytls://pw@example.com")
	if !ok {
		t.Fatalf("decode failed")
	}
	at := p.Payload.(model.AnyTLS)
	if at.IdleSessionCheckInterval != nil || at.IdleSessionTimeout != nil || at.MinIdleSession != nil {
		t.Fatalf("idle knobs set without parameters: %+v", at)
	}
	if at.SkipCertVerify != nil || at.UDP != nil || at.TFO != nil {
		t.Fatalf("bool knobs set without parameters: %+v", at)
	}
}

func TestExplodeAnyTLS_RequiresPassword(t *testing.T) {
	p, ok := ExplodeAnyTLS("anytls://example.com:8443")
	if ok {
		t.Fatalf("accepted a link without a credential")
	}
	if p != (model.Proxy{}) {
		t.Fatalf("non-zero proxy on reject")
	}
}
