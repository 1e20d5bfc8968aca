package httpapi

import (
	"github.com/sirupsen/logrus"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/fetch"
	"github.com/crowvane/nodeconv/internal/render"
)

// Template is a caller-loaded override for one render target's base
// document. Source names its origin in template error messages.
type Template struct {
	Source string
	Text   string
}

// Options wires the HTTP surface to the rest of the service. Everything is
// optional; the zero value serves with built-in defaults and no logging.
type Options struct {
	// Config supplies timeouts, the default group, rules, groups and the
	// manipulation directives a request may override. nil means Default().
	Config *config.Config

	// Fetcher retrieves subscriptions and external configs. nil builds one
	// from Config.CacheTTL and Log.
	Fetcher *fetch.Client

	// Log receives the access log and per-node debug lines. nil disables
	// logging entirely.
	Log *logrus.Logger

	// Templates overrides the embedded base template per target.
	Templates map[render.Target]Template

	// Version is reported by GET /version.
	Version string
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		cfg := config.Default()
		o.Config = &cfg
	}
	if o.Fetcher == nil {
		o.Fetcher = fetch.NewClient(o.Config.CacheTTL, o.Log)
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	return o
}
