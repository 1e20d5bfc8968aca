package sub

import (
	"testing"

	"github.com/crowvane/nodeconv/internal/model"
)

func TestExplodeHysteria2_Full(t *testing.T) {
	p, ok := ExplodeHysteria2("hysteria2://letmein@example.com:8443?sni=real.example.org&insecure=1&obfs=salamander&obfs-password=seed&up=100&down=200&mport=20000-30000&fp=chrome#h2")
	if !ok {
		t.Fatalf("decode failed")
	}
	if p.Port != 8443 {
		t.Fatalf("port=%d, want=8443", p.Port)
	}
	hy := p.Payload.(model.Hysteria2)
	if hy.Password != "letmein" {
		t.Fatalf("password=%q, want=%q", hy.Password, "letmein")
	}
	if hy.SNI != "real.example.org" || !hy.Insecure {
		t.Fatalf("sni/insecure=%q/%v", hy.SNI, hy.Insecure)
	}
	if hy.Obfs != "salamander" || hy.ObfsPassword != "seed" {
		t.Fatalf("obfs=%q/%q", hy.Obfs, hy.ObfsPassword)
	}
	if hy.UpMbps != 100 || hy.DownMbps != 200 {
		t.Fatalf("up/down=%d/%d, want 100/200", hy.UpMbps, hy.DownMbps)
	}
	if hy.Ports != "20000-30000" {
		t.Fatalf("ports=%q, want=%q", hy.Ports, "20000-30000")
	}
	if hy.Fingerprint != "chrome" {
		t.Fatalf("fp=%q, want=%q", hy.Fingerprint, "chrome")
	}
}

func TestExplodeHysteria2_Hy2AliasAndNoAuth(t *testing.T) {
	// The credential is optional in v2; the host part alone is a valid link.
	p, ok := ExplodeHysteria2("hy2://example.com")
	if !ok {
		t.Fatalf("decode failed")
	}
	if p.Port != 443 {
		t.Fatalf("port=%d, want=443", p.Port)
	}
	hy := p.Payload.(model.Hysteria2)
	if hy.Password != "" {
		t.Fatalf("password=%q, want empty", hy.Password)
	}
	if hy.UpMbps != 0 || hy.DownMbps != 0 {
		t.Fatalf("up/down=%d/%d, want 0/0 (no v1 bandwidth defaults)", hy.UpMbps, hy.DownMbps)
	}
}

func TestExplodeHysteria2_BandwidthUnitSuffix(t *testing.T) {
	p, ok := ExplodeHysteria2("hysteria2://pw@example.com?up=100%20Mbps&down=50%20Mbps")
	if !ok {
		t.Fatalf("decode failed")
	}
	hy := p.Payload.(model.Hysteria2)
	if hy.UpMbps != 100 || hy.DownMbps != 50 {
		t.Fatalf("up/down=%d/%d, want 100/50", hy.UpMbps, hy.DownMbps)
	}
}

func TestExplodeHysteria2_Rejects(t *testing.T) {
	links := []string{
		"hysteria2://",
		"hysteria2://pw@",
		"hysteria2://pw@example.com:notaport",
	}
	for _, link := range links {
		p, ok := ExplodeHysteria2(link)
		if ok {
			t.Fatalf("accepted %q", link)
		}
		if p != (model.Proxy{}) {
			t.Fatalf("non-zero proxy on reject of %q", link)
		}
	}
}
