package manip

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/crowvane/nodeconv/internal/model"
)

// Options is the compiled manipulation pass. Zero value is a no-op apart
// from name de-duplication, which always runs.
type Options struct {
	// DefaultGroup overwrites every record's group when non-empty.
	DefaultGroup string

	// Includes keeps only names matching at least one pattern (empty list
	// keeps everything). Excludes drops matching names and wins over
	// Includes.
	Includes []*regexp.Regexp
	Excludes []*regexp.Regexp

	Renames []RenameRule
	Emojis  []EmojiRule

	SortByName bool

	// Log, when set, gets a debug line per dropped node.
	Log *logrus.Logger
}

// Apply runs the manipulation pass and returns a new slice; the input and
// its records are never mutated. Order: group default, filtering, renames,
// emoji, optional sort, then name de-duplication.
func Apply(opts Options, in []model.Proxy) []model.Proxy {
	out := make([]model.Proxy, 0, len(in))
	for _, p := range in {
		if opts.DefaultGroup != "" {
			p.Group = opts.DefaultGroup
		}
		if !opts.keep(p.Name) {
			if opts.Log != nil {
				opts.Log.WithFields(logrus.Fields{"name": p.Name, "server": p.Server}).
					Debug("node filtered out")
			}
			continue
		}

		name := p.Name
		for _, r := range opts.Renames {
			name = r.Match.ReplaceAllString(name, r.Replace)
		}
		name = strings.TrimSpace(name)
		for _, e := range opts.Emojis {
			if e.Match.MatchString(name) {
				if !strings.HasPrefix(name, e.Emoji) {
					name = e.Emoji + " " + name
				}
				break
			}
		}
		p.Name = name
		out = append(out, p)
	}

	if opts.SortByName {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}

	dedupeNames(out)
	return out
}

func (o Options) keep(name string) bool {
	for _, re := range o.Excludes {
		if re.MatchString(name) {
			return false
		}
	}
	if len(o.Includes) == 0 {
		return true
	}
	for _, re := range o.Includes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// dedupeNames makes names unique in place. The first occurrence keeps its
// name; later ones get " -N" suffixes counting from 2. A name emptied by
// renames falls back to the synthesized remark.
func dedupeNames(proxies []model.Proxy) {
	used := make(map[string]struct{}, len(proxies))
	for i := range proxies {
		base := proxies[i].Name
		if base == "" {
			base = model.DefaultRemark(proxies[i].Server, proxies[i].Port)
		}

		name := base
		if _, dup := used[name]; dup {
			for n := 2; ; n++ {
				try := fmt.Sprintf("%s -%d", base, n)
				if _, taken := used[try]; !taken {
					name = try
					break
				}
			}
		}
		proxies[i].Name = name
		used[name] = struct{}{}
	}
}
