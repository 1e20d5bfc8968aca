package sub

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/crowvane/nodeconv/internal/model"
)

func vmessLink(t *testing.T) string {
	t.Helper()
	raw := `{"v":"2","ps":"vm","add":"vm.example.com","port":443,"id":"b831381d-6324-4d53-ad4f-8cda48b30811","aid":0,"net":"ws","host":"cdn.example.com","path":"/ws","tls":"tls"}`
	return "vmess://" + base64.StdEncoding.EncodeToString([]byte(raw))
}

func ssrLink(t *testing.T) string {
	t.Helper()
	body := "ex.com:8388:origin:aes-128-cfb:plain:" +
		base64.RawURLEncoding.EncodeToString([]byte("pass"))
	return "ssr://" + base64.RawURLEncoding.EncodeToString([]byte(body))
}

func TestExplode_Dispatch(t *testing.T) {
	cases := []struct {
		link string
		want model.ProxyType
	}{
		{vmessLink(t), model.TypeVMess},
		{"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#s", model.TypeShadowsocks},
		{ssrLink(t), model.TypeShadowsocksR},
		{"socks5://user:pw@example.com:1080#sk", model.TypeSocks},
		{"https://t.me/socks?server=proxy.example.com&port=1080", model.TypeSocks},
		{"https://t.me/http?server=proxy.example.com&port=8080&user=u&pass=p", model.TypeHTTP},
		{"trojan://pw@example.com:443?sni=sni.example.com#t", model.TypeTrojan},
		{"trojan-go://pw@example.com#tg", model.TypeTrojan},
		{"vless://b831381d-6324-4d53-ad4f-8cda48b30811@example.com:443?security=tls#v", model.TypeVless},
		{"hysteria2://letmein@example.com?insecure=1#h2", model.TypeHysteria2},
		{"hy2://letmein@example.com:8443", model.TypeHysteria2},
		{"hysteria://example.com:4443?auth=x#h1", model.TypeHysteria},
		{"anytls://pw@example.com:8443#a", model.TypeAnyTLS},
	}
	for _, tc := range cases {
		p, ok := Explode(tc.link)
		if !ok {
			t.Fatalf("Explode(%q) failed", tc.link)
		}
		if p.Payload.Type() != tc.want {
			t.Fatalf("Explode(%q) type=%q, want=%q", tc.link, p.Payload.Type(), tc.want)
		}
		if p.Server == "" || p.Port == 0 || p.Name == "" || p.Group == "" {
			t.Fatalf("Explode(%q) incomplete record: %+v", tc.link, p)
		}
	}
}

func TestExplode_UnrecognizedInput(t *testing.T) {
	links := []string{
		"",
		"   ",
		"foo://bar",
		"example.com:443",
		// Bare web URLs locate subscriptions; they are not proxy links.
		"https://example.com/sub.txt",
		"http://example.com/clash.yaml",
	}
	for _, link := range links {
		p, ok := Explode(link)
		if ok {
			t.Fatalf("accepted %q as %v", link, p.Payload.Type())
		}
		if p != (model.Proxy{}) {
			t.Fatalf("non-zero proxy on reject of %q", link)
		}
	}
}

func TestExplodeSub_RawList(t *testing.T) {
	raw := strings.Join([]string{
		"# comment",
		"  ",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201",
		"vmess://garbage-that-decodes-to-nothing",
		"trojan://pw@example.com:443#Node%202",
		"",
	}, "\n")

	proxies := ExplodeSub(raw)
	if len(proxies) != 2 {
		t.Fatalf("len=%d, want=2", len(proxies))
	}
	if proxies[0].Name != "Node 1" {
		t.Fatalf("name=%q, want=%q", proxies[0].Name, "Node 1")
	}
	if proxies[1].Payload.Type() != model.TypeTrojan {
		t.Fatalf("type=%q, want=%q", proxies[1].Payload.Type(), model.TypeTrojan)
	}
}

func TestExplodeSub_Base64Wrapped(t *testing.T) {
	raw := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201\ntrojan://pw@example.com:443#n2\n"
	b64 := base64.StdEncoding.EncodeToString([]byte(raw))

	proxies := ExplodeSub(b64)
	if len(proxies) != 2 {
		t.Fatalf("len=%d, want=2", len(proxies))
	}
	if proxies[0].Name != "Node 1" {
		t.Fatalf("name=%q, want=%q", proxies[0].Name, "Node 1")
	}
}

func TestExplodeSub_OrderPreserved(t *testing.T) {
	raw := strings.Join([]string{
		"trojan://pw@example.com:443#first",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#second",
		"hysteria://example.com#third",
	}, "\n")

	proxies := ExplodeSub(raw)
	if len(proxies) != 3 {
		t.Fatalf("len=%d, want=3", len(proxies))
	}
	for i, want := range []string{"first", "second", "third"} {
		if proxies[i].Name != want {
			t.Fatalf("proxies[%d].Name=%q, want=%q", i, proxies[i].Name, want)
		}
	}
}

func TestExplodeSub_Garbage(t *testing.T) {
	if got := ExplodeSub("!!! not base64, not links !!!"); got != nil {
		t.Fatalf("got=%v, want nil", got)
	}
	if got := ExplodeSub(""); got != nil {
		t.Fatalf("got=%v, want nil", got)
	}
}

const clashDoc = `
proxies:
  - name: clash-ss
    type: ss
    server: example.com
    port: 8388
    cipher: aes-128-gcm
    password: pass
  - name: clash-trojan
    type: trojan
    server: example.org
    port: 443
    password: pw
    sni: sni.example.org
`

func TestExplodeConfContent_Clash(t *testing.T) {
	proxies := ExplodeConfContent(clashDoc, model.ConfClash)
	if len(proxies) != 2 {
		t.Fatalf("len=%d, want=2", len(proxies))
	}
	if proxies[0].Name != "clash-ss" || proxies[0].Payload.Type() != model.TypeShadowsocks {
		t.Fatalf("first=%+v, want clash-ss/ss", proxies[0])
	}
	if proxies[1].Payload.Type() != model.TypeTrojan {
		t.Fatalf("second type=%q, want trojan", proxies[1].Payload.Type())
	}
}

func TestExplodeConfContent_WrongHintStillDecodes(t *testing.T) {
	// A link list under a Clash hint costs one wasted attempt, nothing else.
	links := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#n\n"
	proxies := ExplodeConfContent(links, model.ConfClash)
	if len(proxies) != 1 {
		t.Fatalf("len=%d, want=1", len(proxies))
	}

	// And a Clash document under a Sub hint.
	proxies = ExplodeConfContent(clashDoc, model.ConfSub)
	if len(proxies) != 2 {
		t.Fatalf("len=%d, want=2", len(proxies))
	}
}

func TestExplodeConfContent_Sniffed(t *testing.T) {
	proxies := ExplodeConfContent(clashDoc, model.ConfUnknown)
	if len(proxies) != 2 {
		t.Fatalf("len=%d, want=2", len(proxies))
	}
}
