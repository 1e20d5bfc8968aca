package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crowvane/nodeconv/internal/model"
)

func TestWriteError_JSONShapeAndHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusBadRequest, model.AppError{
		Code:    "SUB_PARSE_ERROR",
		Message: "无法识别的分享链接",
		Stage:   "parse_sub",
		URL:     "https://example.com/sub.txt",
		Line:    7,
		Snippet: "ssss://bm90LWEtbGluaw",
		Hint:    "supported schemes: ss, ssr, vmess, trojan, vless, hysteria, hysteria2, anytls, socks, http",
	})

	if got, want := rr.Code, http.StatusBadRequest; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}

	if got, want := rr.Header().Get("Content-Type"), "application/json; charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}

	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	if resp.Error.Code != "SUB_PARSE_ERROR" {
		t.Fatalf("code = %q, want %q", resp.Error.Code, "SUB_PARSE_ERROR")
	}
	if resp.Error.Stage != "parse_sub" {
		t.Fatalf("stage = %q, want %q", resp.Error.Stage, "parse_sub")
	}
	if resp.Error.Line != 7 {
		t.Fatalf("line = %d, want %d", resp.Error.Line, 7)
	}
}

func TestWriteError_OmitsEmptyFields(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusBadRequest, model.AppError{
		Code:    "INVALID_ARGUMENT",
		Message: "缺少 target 参数",
		Stage:   "validate_request",
	})

	var raw map[string]map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	inner := raw["error"]
	for _, key := range []string{"url", "line", "snippet", "hint"} {
		if _, ok := inner[key]; ok {
			t.Errorf("field %q present in %q, want omitted", key, rr.Body.String())
		}
	}
}

func TestWriteText_Headers(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteText(rr, http.StatusOK, "hello\n")

	if got, want := rr.Header().Get("Content-Type"), "text/plain; charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}
	if got, want := rr.Body.String(), "hello\n"; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}
