package template

import (
	"fmt"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// Expand substitutes {anchor} markers in tpl from vars. Literal braces are
// written {{ and }}. An anchor absent from vars is an error so template
// typos surface instead of leaking markers into rendered output. source
// names the template origin for error reporting.
func Expand(tpl string, vars map[string]string, source string) (string, error) {
	var b strings.Builder
	b.Grow(len(tpl))
	for i := 0; i < len(tpl); {
		switch tpl[i] {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return "", syntaxErr(source, "锚点未闭合", tpl[i:])
			}
			name := tpl[i+1 : i+1+end]
			if name == "" || strings.ContainsAny(name, "{\r\n \t") {
				return "", syntaxErr(source, "锚点名不合法", tpl[i:])
			}
			v, ok := vars[name]
			if !ok {
				return "", &TemplateError{
					AppError: model.AppError{
						Code:    "TEMPLATE_ANCHOR_UNKNOWN",
						Message: fmt.Sprintf("未知锚点 {%s}", name),
						Stage:   "validate_template",
						URL:     source,
						Snippet: name,
					},
				}
			}
			b.WriteString(v)
			i += end + 2
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", syntaxErr(source, "存在未配对的 }", tpl[i:])
		default:
			b.WriteByte(tpl[i])
			i++
		}
	}
	return b.String(), nil
}

func syntaxErr(source, message, at string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_SYNTAX_ERROR",
			Message: message,
			Stage:   "validate_template",
			URL:     source,
			Snippet: truncateSnippet(at, 80),
		},
	}
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
