package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/crowvane/nodeconv/internal/render"
)

// setAttachmentHeaders marks the response as a download. The filename was
// validated at request-parse time, so this cannot fail.
func setAttachmentHeaders(w http.ResponseWriter, req convertRequest) {
	filename := outputFileName(req)
	if filename == "" {
		return
	}
	// Add both filename and filename* for better UTF-8 compatibility.
	w.Header().Set("Content-Disposition", contentDispositionAttachment(filename))
}

func outputFileName(req convertRequest) string {
	base := strings.TrimSpace(req.FileName)
	if base == "" {
		base = string(req.Target)
	}
	if base == "" {
		return ""
	}

	name := base
	if !hasExt(name) {
		if ext := targetExt(req.Target); ext != "" {
			name += ext
		}
	}
	return name
}

func validateFileName(name string) error {
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, "\r\n\x00") {
		return requestError("INVALID_ARGUMENT", "filename 含有非法控制字符", "")
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return requestError("INVALID_ARGUMENT", "filename 不允许包含路径分隔符", "")
	}
	if len(name) > 200 {
		return requestError("INVALID_ARGUMENT", "filename 过长", "max=200 bytes")
	}
	return nil
}

func hasExt(name string) bool {
	i := strings.LastIndexByte(name, '.')
	return i > 0 && i < len(name)-1
}

func targetExt(target render.Target) string {
	switch target {
	case render.TargetClash:
		return ".yaml"
	case render.TargetSurge:
		return ".conf"
	case render.TargetNodeList:
		return ".txt"
	default:
		return ""
	}
}

func contentDispositionAttachment(filename string) string {
	// RFC 6266 + RFC 5987.
	escaped := strings.ReplaceAll(filename, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")

	star := strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", escaped, star)
}
