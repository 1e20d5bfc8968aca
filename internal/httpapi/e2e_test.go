package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/fetch"
	"github.com/crowvane/nodeconv/internal/model"
)

// Three nodes in canonical link form: converting them to a nodelist must
// reproduce these exact lines.
const e2eSubLinks = "ss://YWVzLTEyOC1nY206cGFzc3dvcmQ@hk.example.com:8388#HK%20Node\n" +
	"ss://Y2hhY2hhMjAtaWV0Zi1wb2x5MTMwNTpwYXNzMTIz@sg.example.com:8388#SG%20Node\n" +
	"trojan://p%40ss@tr.example.com:443?sni=tr.example.com&allowInsecure=1#TR%20Node\n"

const e2eExternalConfig = `rules:
  - "DOMAIN-SUFFIX,example.com,PROXY"
  - "GEOIP,CN,DIRECT"
  - "MATCH,PROXY"
groups:
  - name: "PROXY"
    type: "select"
  - name: "AUTO"
    type: "url-test"
    url: "http://www.gstatic.com/generate_204"
`

func newTestOptions() Options {
	cfg := config.Default()
	return Options{
		Config:  &cfg,
		Fetcher: fetch.NewClient(0, nil), // no cache: tests control every hit
	}
}

// newConvertUpstream serves a base64-wrapped subscription and an external
// config, plus the failure bodies the error tests need.
func newConvertUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sub/nodes.b64", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(e2eSubLinks))))
	})
	mux.HandleFunc("/sub/empty.txt", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/config/groups.yaml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(e2eExternalConfig))
	})
	return httptest.NewServer(mux)
}

func doGET(t *testing.T, h http.Handler, path string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET %s status=%d body=%s", path, rr.Code, rr.Body.String())
	}
	if got, want := rr.Header().Get("Content-Type"), "text/plain; charset=utf-8"; got != want {
		t.Fatalf("GET %s Content-Type=%q, want=%q", path, got, want)
	}
	return rr.Body.String()
}

func doPOSTJSON(t *testing.T, h http.Handler, payload any) convertResponse {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /api/convert status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got, want := rr.Header().Get("Content-Type"), "application/json; charset=utf-8"; got != want {
		t.Fatalf("POST /api/convert Content-Type=%q, want=%q", got, want)
	}
	var resp convertResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	return resp
}

func doGETErr(t *testing.T, h http.Handler, path string) (int, model.AppError) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("GET %s: unmarshal error body: %v\nstatus=%d body=%q", path, err, rr.Code, rr.Body.String())
	}
	return rr.Code, resp.Error
}

func TestSub_ClashWithExternalConfig(t *testing.T) {
	up := newConvertUpstream(t)
	defer up.Close()

	subURL := up.URL + "/sub/nodes.b64"
	cfgURL := up.URL + "/config/groups.yaml"
	mux := NewMux(newTestOptions())

	want := "" +
		"mixed-port: 7890\n" +
		"allow-lan: false\n" +
		"mode: rule\n" +
		"log-level: info\n" +
		"external-controller: 127.0.0.1:9090\n" +
		"\n" +
		"proxies:\n" +
		"  - {name: \"HK Node\", type: ss, server: \"hk.example.com\", port: 8388, cipher: \"aes-128-gcm\", password: \"password\"}\n" +
		"  - {name: \"SG Node\", type: ss, server: \"sg.example.com\", port: 8388, cipher: \"chacha20-ietf-poly1305\", password: \"pass123\"}\n" +
		"  - {name: \"TR Node\", type: trojan, server: \"tr.example.com\", port: 443, password: \"p@ss\", sni: \"tr.example.com\", skip-cert-verify: true}\n" +
		"\n" +
		"proxy-groups:\n" +
		"  - {name: \"PROXY\", type: select, proxies: [\"HK Node\", \"SG Node\", \"TR Node\"]}\n" +
		"  - {name: \"AUTO\", type: url-test, proxies: [\"HK Node\", \"SG Node\", \"TR Node\"], url: \"http://www.gstatic.com/generate_204\", interval: 300}\n" +
		"\n" +
		"rules:\n" +
		"  - \"DOMAIN-SUFFIX,example.com,PROXY\"\n" +
		"  - \"GEOIP,CN,DIRECT\"\n" +
		"  - \"MATCH,PROXY\"\n"

	got := doGET(t, mux, "/sub?target=clash&url="+url.QueryEscape(subURL)+"&config="+url.QueryEscape(cfgURL))
	if got != want {
		i := firstDiff(got, want)
		t.Fatalf("clash output mismatch (len got=%d want=%d firstDiff=%d)\n--- got ---\n%s\n--- want ---\n%s", len(got), len(want), i, got, want)
	}

	resp := doPOSTJSON(t, mux, map[string]any{
		"target":  "clash",
		"urls":    []string{subURL},
		"options": map[string]any{"config": cfgURL},
	})
	if resp.Content != got {
		t.Fatalf("clash GET/POST mismatch\n--- GET ---\n%s\n--- POST ---\n%s", got, resp.Content)
	}
	if resp.Count != 3 {
		t.Fatalf("count=%d, want=3", resp.Count)
	}
	if resp.Target != "clash" {
		t.Fatalf("target=%q, want=%q", resp.Target, "clash")
	}
}

func TestSub_NodeList(t *testing.T) {
	up := newConvertUpstream(t)
	defer up.Close()

	subURL := up.URL + "/sub/nodes.b64"
	mux := NewMux(newTestOptions())

	raw := doGET(t, mux, "/sub?target=nodelist&url="+url.QueryEscape(subURL))
	if raw != e2eSubLinks {
		t.Fatalf("nodelist mismatch\n--- got ---\n%q\n--- want ---\n%q", raw, e2eSubLinks)
	}

	wrapped := doGET(t, mux, "/sub?target=nodelist&b64=true&url="+url.QueryEscape(subURL))
	if strings.Contains(wrapped, "://") {
		t.Fatalf("b64 output should not contain raw links, got %q", wrapped)
	}
	decoded, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		t.Fatalf("decode b64 output: %v", err)
	}
	if string(decoded) != raw {
		t.Fatalf("b64 round trip mismatch\n--- decoded ---\n%q\n--- raw ---\n%q", decoded, raw)
	}
}

func TestSub_SurgeManagedConfig(t *testing.T) {
	up := newConvertUpstream(t)
	defer up.Close()

	subURL := up.URL + "/sub/nodes.b64"
	mux := NewMux(newTestOptions())

	path := "/sub?target=surge&url=" + url.QueryEscape(subURL) + "&interval=43200&strict=true"
	want := "" +
		"#!MANAGED-CONFIG http://example.com" + path + " interval=43200 strict=true\n" +
		"\n" +
		"[General]\n" +
		"loglevel = notify\n" +
		"dns-server = system\n" +
		"skip-proxy = 127.0.0.1, 192.168.0.0/16, 10.0.0.0/8, 172.16.0.0/12, localhost, *.local\n" +
		"\n" +
		"[Proxy]\n" +
		"DIRECT = direct\n" +
		"HK Node = ss, hk.example.com, 8388, encrypt-method=aes-128-gcm, password=password\n" +
		"SG Node = ss, sg.example.com, 8388, encrypt-method=chacha20-ietf-poly1305, password=pass123\n" +
		"TR Node = trojan, tr.example.com, 443, password=p@ss, sni=tr.example.com, skip-cert-verify=true\n" +
		"\n" +
		"[Proxy Group]\n" +
		"PROXY = select, HK Node, SG Node, TR Node\n" +
		"\n" +
		"[Rule]\n" +
		"FINAL,DIRECT\n"

	got := doGET(t, mux, path)
	if got != want {
		i := firstDiff(got, want)
		t.Fatalf("surge output mismatch (firstDiff=%d)\n--- got ---\n%s\n--- want ---\n%s", i, got, want)
	}

	// POST has no stable request URL, so no preamble even for surge.
	resp := doPOSTJSON(t, mux, map[string]any{
		"target":  "surge",
		"urls":    []string{subURL},
		"options": map[string]any{"interval": 43200, "strict": true},
	})
	if strings.Contains(resp.Content, "#!MANAGED-CONFIG") {
		t.Fatalf("POST surge output should not carry a managed-config preamble, got:\n%s", resp.Content)
	}
}

func TestSub_InlineShareLink(t *testing.T) {
	// No upstream at all: the node arrives inline in the url parameter.
	mux := NewMux(newTestOptions())

	link := "ss://YWVzLTEyOC1nY206cGFzc3dvcmQ@hk.example.com:8388#HK%20Node"
	want := "" +
		"mixed-port: 7890\n" +
		"allow-lan: false\n" +
		"mode: rule\n" +
		"log-level: info\n" +
		"external-controller: 127.0.0.1:9090\n" +
		"\n" +
		"proxies:\n" +
		"  - {name: \"HK Node\", type: ss, server: \"hk.example.com\", port: 8388, cipher: \"aes-128-gcm\", password: \"password\"}\n" +
		"\n" +
		"proxy-groups:\n" +
		"  - {name: \"PROXY\", type: select, proxies: [\"HK Node\"]}\n" +
		"\n" +
		"rules:\n" +
		"  - \"MATCH,DIRECT\"\n"

	got := doGET(t, mux, "/sub?target=clash&url="+url.QueryEscape(link))
	if got != want {
		i := firstDiff(got, want)
		t.Fatalf("inline link output mismatch (firstDiff=%d)\n--- got ---\n%s\n--- want ---\n%s", i, got, want)
	}
}

func TestSub_ManipulationParams(t *testing.T) {
	up := newConvertUpstream(t)
	defer up.Close()

	subURL := up.URL + "/sub/nodes.b64"
	mux := NewMux(newTestOptions())

	// Drop TR, rewrite Node => N0de, tag HK with a flag, then sort.
	path := "/sub?target=nodelist&url=" + url.QueryEscape(subURL) +
		"&exclude=TR" +
		"&rename=" + url.QueryEscape("Node@N0de") +
		"&emoji=" + url.QueryEscape("HK,🇭🇰") +
		"&sort=true"
	want := "" +
		"ss://Y2hhY2hhMjAtaWV0Zi1wb2x5MTMwNTpwYXNzMTIz@sg.example.com:8388#SG%20N0de\n" +
		"ss://YWVzLTEyOC1nY206cGFzc3dvcmQ@hk.example.com:8388#%F0%9F%87%AD%F0%9F%87%B0%20HK%20N0de\n"

	got := doGET(t, mux, path)
	if got != want {
		t.Fatalf("manipulated nodelist mismatch\n--- got ---\n%q\n--- want ---\n%q", got, want)
	}
}

func TestSub_GroupOverrideInSSRLinks(t *testing.T) {
	body := "ssr.example.com:443:origin:aes-256-cfb:plain:" +
		base64.RawURLEncoding.EncodeToString([]byte("pass")) +
		"/?remarks=" + base64.RawURLEncoding.EncodeToString([]byte("SSR Node"))
	link := "ssr://" + base64.RawURLEncoding.EncodeToString([]byte(body))

	mux := NewMux(newTestOptions())
	got := doGET(t, mux, "/sub?target=nodelist&url="+url.QueryEscape(link)+"&group=TeamX")

	wantBody := "ssr.example.com:443:origin:aes-256-cfb:plain:" +
		base64.RawURLEncoding.EncodeToString([]byte("pass")) +
		"/?remarks=" + base64.RawURLEncoding.EncodeToString([]byte("SSR Node")) +
		"&group=" + base64.RawURLEncoding.EncodeToString([]byte("TeamX"))
	want := "ssr://" + base64.RawURLEncoding.EncodeToString([]byte(wantBody)) + "\n"
	if got != want {
		t.Fatalf("ssr group override mismatch\n--- got ---\n%q\n--- want ---\n%q", got, want)
	}
}

func TestSub_Errors(t *testing.T) {
	up := newConvertUpstream(t)
	defer up.Close()

	subURL := url.QueryEscape(up.URL + "/sub/nodes.b64")
	mux := NewMux(newTestOptions())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
		wantStage  string
	}{
		{
			name:       "unknown query param",
			path:       "/sub?target=clash&url=" + subURL + "&debug=1",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "missing target",
			path:       "/sub?url=" + subURL,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "repeated target",
			path:       "/sub?target=clash&target=surge&url=" + subURL,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "unsupported target",
			path:       "/sub?target=quanx&url=" + subURL,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_TARGET",
			wantStage:  "render",
		},
		{
			name:       "missing url",
			path:       "/sub?target=clash",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "bad sort value",
			path:       "/sub?target=clash&url=" + subURL + "&sort=maybe",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "negative interval",
			path:       "/sub?target=surge&url=" + subURL + "&interval=-5",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "config not http",
			path:       "/sub?target=clash&url=" + subURL + "&config=ftp%3A%2F%2Fx",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "filename with path separator",
			path:       "/sub?target=clash&url=" + subURL + "&filename=a%2Fb",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantStage:  "validate_request",
		},
		{
			name:       "unrecognized inline link",
			path:       "/sub?target=clash&url=notalink",
			wantStatus: http.StatusBadRequest,
			wantCode:   "SUB_PARSE_ERROR",
			wantStage:  "parse_sub",
		},
		{
			name:       "upstream 404",
			path:       "/sub?target=clash&url=" + url.QueryEscape(up.URL+"/missing"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "FETCH_FAILED",
			wantStage:  "fetch_sub",
		},
		{
			name:       "empty subscription",
			path:       "/sub?target=clash&url=" + url.QueryEscape(up.URL+"/sub/empty.txt"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_NODES",
			wantStage:  "convert",
		},
		{
			name:       "everything filtered out",
			path:       "/sub?target=clash&url=" + subURL + "&exclude=Node",
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_NODES",
			wantStage:  "convert",
		},
		{
			name:       "bad rename rule",
			path:       "/sub?target=clash&url=" + subURL + "&rename=" + url.QueryEscape("[broken@x"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "RENAME_PARSE_ERROR",
			wantStage:  "parse_options",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, appErr := doGETErr(t, mux, tc.path)
			if status != tc.wantStatus {
				t.Fatalf("status=%d, want=%d (err=%+v)", status, tc.wantStatus, appErr)
			}
			if appErr.Code != tc.wantCode {
				t.Fatalf("code=%q, want=%q (err=%+v)", appErr.Code, tc.wantCode, appErr)
			}
			if appErr.Stage != tc.wantStage {
				t.Fatalf("stage=%q, want=%q (err=%+v)", appErr.Stage, tc.wantStage, appErr)
			}
		})
	}
}

func TestConvertPOST_Errors(t *testing.T) {
	mux := NewMux(newTestOptions())

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "unknown field",
			body:     `{"target":"clash","urls":["ss://x@h:1#n"],"mode":"config"}`,
			wantCode: "INVALID_ARGUMENT",
		},
		{
			name:     "trailing document",
			body:     `{"target":"clash","urls":["ss://x@h:1#n"]}{}`,
			wantCode: "INVALID_ARGUMENT",
		},
		{
			name:     "no input source",
			body:     `{"target":"clash"}`,
			wantCode: "INVALID_ARGUMENT",
		},
		{
			name:     "empty url entry",
			body:     `{"target":"clash","urls":[""]}`,
			wantCode: "INVALID_ARGUMENT",
		},
		{
			name:     "unsupported target",
			body:     `{"target":"v2ray","urls":["ss://x@h:1#n"]}`,
			wantCode: "UNSUPPORTED_TARGET",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			var resp model.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal error body: %v\nbody=%q", err, rr.Body.String())
			}
			if resp.Error.Code != tc.wantCode {
				t.Fatalf("code=%q, want=%q (err=%+v)", resp.Error.Code, tc.wantCode, resp.Error)
			}
		})
	}
}

func TestConvertPOST_PastedContent(t *testing.T) {
	mux := NewMux(newTestOptions())

	resp := doPOSTJSON(t, mux, map[string]any{
		"target":  "nodelist",
		"content": e2eSubLinks,
	})
	if resp.Count != 3 {
		t.Fatalf("count=%d, want=3", resp.Count)
	}
	if resp.Content != e2eSubLinks {
		t.Fatalf("pasted content round trip mismatch\n--- got ---\n%q\n--- want ---\n%q", resp.Content, e2eSubLinks)
	}
}

func firstDiff(a, b string) int {
	na, nb := len(a), len(b)
	n := na
	if nb < n {
		n = nb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if na != nb {
		return n
	}
	return -1
}
