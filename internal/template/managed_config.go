package template

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

const managedConfigPrefix = "#!MANAGED-CONFIG"

// ManagedConfigHeader builds the Surge managed-config preamble line:
//
//	#!MANAGED-CONFIG <url> interval=86400 strict=false
//
// Surge re-fetches the profile from that URL on the given interval, so the
// URL must be an absolute http/https address. interval <= 0 falls back to
// one day.
func ManagedConfigHeader(rawURL string, interval int, strict bool) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u == nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &TemplateError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "managed-config URL 必须是绝对 http/https 地址",
				Stage:   "validate_template",
				URL:     rawURL,
			},
			Cause: err,
		}
	}
	if interval <= 0 {
		interval = 86400
	}
	return fmt.Sprintf("%s %s interval=%d strict=%t", managedConfigPrefix, u.String(), interval, strict), nil
}
