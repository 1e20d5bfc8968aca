package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/model"
)

func TestRenderSurge_SSLine(t *testing.T) {
	out, err := Render(TargetSurge, Input{Proxies: clashFixture()[:1]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "ss-node = ss, ss.example.com, 8388, encrypt-method=aes-256-gcm, password=123456, obfs=http, obfs-host=bing.com, udp-relay=true"
	if !strings.Contains(out, want) {
		t.Fatalf("ss line missing, want %q in:\n%s", want, out)
	}
}

func TestRenderSurge_VMessWSLine(t *testing.T) {
	out, err := Render(TargetSurge, Input{Proxies: []model.Proxy{{
		Group: "g", Name: "vm", Server: "vm.example.com", Port: 443,
		Payload: model.VMess{
			UUID: "b831381d-6324-4d53-ad4f-8cda48b30811", AlterID: 0, Cipher: "auto",
			Network: "ws", Host: "cdn.example.com", Path: "/ws",
			TLS: true, SNI: "cdn.example.com",
		},
	}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "vm = vmess, vm.example.com, 443, username=b831381d-6324-4d53-ad4f-8cda48b30811, " +
		"ws=true, ws-path=/ws, ws-headers=Host:cdn.example.com, tls=true, sni=cdn.example.com, vmess-aead=true"
	if !strings.Contains(out, want) {
		t.Fatalf("vmess line missing, want %q in:\n%s", want, out)
	}
}

func TestRenderSurge_CommaNameQuotedAndReferenced(t *testing.T) {
	out, err := Render(TargetSurge, Input{Proxies: []model.Proxy{{
		Group: "g", Name: "a,b", Server: "example.com", Port: 8388,
		Payload: model.Shadowsocks{Cipher: "aes-128-gcm", Password: "pass"},
	}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"a,b" = ss, example.com, 8388`) {
		t.Fatalf("proxy name should be quoted, got:\n%s", out)
	}
	if !strings.Contains(out, `PROXY = select, "a,b"`) {
		t.Fatalf("group member should reference the quoted name, got:\n%s", out)
	}
}

func TestRenderSurge_SkipsInexpressibleNodes(t *testing.T) {
	proxies := []model.Proxy{
		{
			Group: "g", Name: "keep", Server: "ss.example.com", Port: 8388,
			Payload: model.Shadowsocks{Cipher: "aes-128-gcm", Password: "pw"},
		},
		{
			Group: "g", Name: "vless-skip", Server: "vl.example.com", Port: 443,
			Payload: model.Vless{UUID: "0c85788f-5ee8-4402-a063-4cbb4afe1a0e", Encryption: "none", Security: "tls"},
		},
		{
			Group: "g", Name: "grpc-skip", Server: "tr.example.com", Port: 443,
			Payload: model.Trojan{Password: "pw", Network: "grpc", ServiceName: "svc"},
		},
		{
			Group: "g", Name: "obfs-skip", Server: "hy2.example.com", Port: 443,
			Payload: model.Hysteria2{Password: "pw", Obfs: "salamander", ObfsPassword: "x"},
		},
	}
	out, err := Render(TargetSurge, Input{Proxies: proxies})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"vless-skip", "grpc-skip", "obfs-skip"} {
		if strings.Contains(out, name) {
			t.Fatalf("node %q should be skipped entirely, got:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "PROXY = select, keep\n") {
		t.Fatalf("group should reference only emitted nodes, got:\n%s", out)
	}
}

func TestRenderSurge_GroupLineAndFinalRule(t *testing.T) {
	out, err := Render(TargetSurge, Input{
		Proxies: clashFixture()[:1],
		Groups: []config.Group{
			{Name: "Auto", Type: "url-test", URL: "http://www.gstatic.com/generate_204", Interval: 300},
		},
		Rules: []string{"DOMAIN-SUFFIX,example.com,Auto", "MATCH,Auto"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Auto = url-test, ss-node, url=http://www.gstatic.com/generate_204, interval=300") {
		t.Fatalf("url-test group line missing:\n%s", out)
	}
	if !strings.Contains(out, "FINAL,Auto") || strings.Contains(out, "MATCH,Auto") {
		t.Fatalf("catch-all should be rewritten to FINAL:\n%s", out)
	}
}

func TestRenderSurge_ManagedPreamble(t *testing.T) {
	out, err := Render(TargetSurge, Input{
		Proxies:         clashFixture()[:1],
		ManagedURL:      "http://127.0.0.1:25500/sub?target=surge&url=http%3A%2F%2Fu",
		ManagedInterval: 43200,
		ManagedStrict:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFirst := "#!MANAGED-CONFIG http://127.0.0.1:25500/sub?target=surge&url=http%3A%2F%2Fu interval=43200 strict=true"
	first, _, _ := strings.Cut(out, "\n")
	if first != wantFirst {
		t.Fatalf("first line=%q, want=%q", first, wantFirst)
	}
}

func TestRenderSurge_NameWithEqualsRejected(t *testing.T) {
	_, err := Render(TargetSurge, Input{Proxies: []model.Proxy{{
		Group: "g", Name: "bad=name", Server: "example.com", Port: 8388,
		Payload: model.Shadowsocks{Cipher: "aes-128-gcm", Password: "pw"},
	}}})
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %T: %v", err, err)
	}
	if re.AppError.Code != "UNSUPPORTED_NODE_NAME" {
		t.Fatalf("code=%q, want=%q", re.AppError.Code, "UNSUPPORTED_NODE_NAME")
	}
}

func TestRenderSurge_GroupNameInvalid(t *testing.T) {
	_, err := Render(TargetSurge, Input{
		Proxies: clashFixture()[:1],
		Groups:  []config.Group{{Name: "A,B", Type: "select"}},
	})
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %T: %v", err, err)
	}
	if re.AppError.Code != "UNSUPPORTED_NODE_NAME" {
		t.Fatalf("code=%q, want=%q", re.AppError.Code, "UNSUPPORTED_NODE_NAME")
	}
}
