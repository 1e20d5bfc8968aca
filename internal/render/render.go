package render

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/model"
)

type Target string

const (
	TargetClash    Target = "clash"
	TargetSurge    Target = "surge"
	TargetNodeList Target = "nodelist"
)

// ParseTarget validates a caller-supplied target name.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetClash, TargetSurge, TargetNodeList:
		return Target(s), nil
	}
	return "", &RenderError{
		AppError: model.AppError{
			Code:    "UNSUPPORTED_TARGET",
			Message: fmt.Sprintf("不支持的 target：%s", s),
			Stage:   "render",
			Snippet: truncateSnippet(s, 64),
			Hint:    "use one of: clash/surge/nodelist",
		},
	}
}

// Input carries everything the renderers consume. Proxies are expected to
// have passed the manipulation stage already (filtered, renamed, names
// unique).
type Input struct {
	Proxies []model.Proxy

	// Groups render into the target's policy-group section. An empty list
	// produces a single select group holding every node.
	Groups []config.Group

	// Rules are verbatim rule lines in the generic (Clash) vocabulary.
	// Targets rewrite or drop lines their dialect cannot express. An empty
	// list produces a lone catch-all rule.
	Rules []string

	// Template overrides the embedded base template for targets that use
	// one. TemplateSource names its origin in error messages.
	Template       string
	TemplateSource string

	// ManagedURL, when non-empty, puts a #!MANAGED-CONFIG preamble on Surge
	// output.
	ManagedURL      string
	ManagedInterval int
	ManagedStrict   bool

	// Base64 wraps the nodelist output in a single base64 blob.
	Base64 bool

	// Log, when set, gets a debug line per node a target cannot express.
	Log *logrus.Logger
}

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Render produces the complete output document for the target.
func Render(target Target, in Input) (string, error) {
	switch target {
	case TargetClash:
		return renderClash(in)
	case TargetSurge:
		return renderSurge(in)
	case TargetNodeList:
		return renderNodeList(in)
	default:
		_, err := ParseTarget(string(target))
		return "", err
	}
}
