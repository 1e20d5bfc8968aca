package sub

import (
	"encoding/base64"
	"testing"

	"github.com/crowvane/nodeconv/internal/model"
)

func TestExplodeSS_UserinfoBase64(t *testing.T) {
	p, ok := ExplodeSS("ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201")
	if !ok {
		t.Fatalf("decode failed")
	}
	if p.Payload.Type() != model.TypeShadowsocks {
		t.Fatalf("type=%q, want=%q", p.Payload.Type(), model.TypeShadowsocks)
	}
	if p.Name != "Node 1" {
		t.Fatalf("name=%q, want=%q", p.Name, "Node 1")
	}
	if p.Server != "example.com" || p.Port != 8388 {
		t.Fatalf("server/port=%q/%d, want example.com/8388", p.Server, p.Port)
	}
	ss := p.Payload.(model.Shadowsocks)
	if ss.Cipher != "aes-128-gcm" || ss.Password != "pass" {
		t.Fatalf("cipher/password=%q/%q, want aes-128-gcm/pass", ss.Cipher, ss.Password)
	}
	if p.Group != "SSProvider" {
		t.Fatalf("group=%q, want=%q", p.Group, "SSProvider")
	}
}

func TestExplodeSS_PlaintextUserinfo(t *testing.T) {
	p, ok := ExplodeSS("ss://2022-blake3-aes-256-gcm:YctPZ6U7xPPcU%2Bgp3u%2B0tx@example.com:8388#sip002")
	if !ok {
		t.Fatalf("decode failed")
	}
	ss := p.Payload.(model.Shadowsocks)
	if ss.Cipher != "2022-blake3-aes-256-gcm" {
		t.Fatalf("cipher=%q, want=%q", ss.Cipher, "2022-blake3-aes-256-gcm")
	}
	if ss.Password != "YctPZ6U7xPPcU+gp3u+0tx" {
		t.Fatalf("password=%q, want=%q", ss.Password, "YctPZ6U7xPPcU+gp3u+0tx")
	}
}

func TestExplodeSS_WholeBodyBase64(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("aes-128-gcm:pass@ex.com:443"))
	p, ok := ExplodeSS("ss://" + b64 + "#old")
	if !ok {
		t.Fatalf("decode failed")
	}
	ss := p.Payload.(model.Shadowsocks)
	if ss.Cipher != "aes-128-gcm" || ss.Password != "pass" {
		t.Fatalf("cipher/password=%q/%q, want aes-128-gcm/pass", ss.Cipher, ss.Password)
	}
	if p.Server != "ex.com" || p.Port != 443 {
		t.Fatalf("server/port=%q/%d, want ex.com/443", p.Server, p.Port)
	}
}

func TestExplodeSS_Plugin(t *testing.T) {
	p, ok := ExplodeSS("ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=obfs-local%3Bobfs%3Dtls%3Bobfs-host%3Dexample.com#obfs")
	if !ok {
		t.Fatalf("decode failed")
	}
	ss := p.Payload.(model.Shadowsocks)
	if ss.Plugin != "obfs-local" {
		t.Fatalf("plugin=%q, want=%q", ss.Plugin, "obfs-local")
	}
	if len(ss.PluginOpts) != 2 {
		t.Fatalf("opts len=%d, want=2", len(ss.PluginOpts))
	}
	if ss.PluginOpts[0] != (model.KV{Key: "obfs", Value: "tls"}) {
		t.Fatalf("opt0=%+v, want obfs=tls", ss.PluginOpts[0])
	}
	if ss.PluginOpts[1] != (model.KV{Key: "obfs-host", Value: "example.com"}) {
		t.Fatalf("opt1=%+v, want obfs-host=example.com", ss.PluginOpts[1])
	}
}

func TestExplodeSS_PluginBareFlag(t *testing.T) {
	p, ok := ExplodeSS("ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=v2ray-plugin%3Btls%3Bhost%3Dcdn.example.com#ws")
	if !ok {
		t.Fatalf("decode failed")
	}
	ss := p.Payload.(model.Shadowsocks)
	if ss.Plugin != "v2ray-plugin" {
		t.Fatalf("plugin=%q, want=%q", ss.Plugin, "v2ray-plugin")
	}
	if len(ss.PluginOpts) != 2 || ss.PluginOpts[0] != (model.KV{Key: "tls"}) {
		t.Fatalf("opts=%+v, want bare tls then host", ss.PluginOpts)
	}
}

func TestExplodeSS_DefaultRemark(t *testing.T) {
	p, ok := ExplodeSS("ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388")
	if !ok {
		t.Fatalf("decode failed")
	}
	if p.Name != "example.com (8388)" {
		t.Fatalf("name=%q, want=%q", p.Name, "example.com (8388)")
	}
}

func TestExplodeSS_IPv6(t *testing.T) {
	p, ok := ExplodeSS("ss://YWVzLTEyOC1nY206cGFzcw==@[::1]:8388#v6")
	if !ok {
		t.Fatalf("decode failed")
	}
	if p.Server != "::1" || p.Port != 8388 {
		t.Fatalf("server/port=%q/%d, want ::1/8388", p.Server, p.Port)
	}
}

func TestExplodeSS_Rejects(t *testing.T) {
	links := []string{
		"",
		"ss://",
		"trojan://pw@example.com:443",
		"ss://not-base64!!@example.com:8388",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:99999",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com",
		"ss://YWVzLTEyOC1nY206cGFzcw==@:8388",
	}
	for _, link := range links {
		p, ok := ExplodeSS(link)
		if ok {
			t.Fatalf("accepted %q", link)
		}
		if p != (model.Proxy{}) {
			t.Fatalf("non-zero proxy on reject of %q: %+v", link, p)
		}
	}
}
