package render

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/model"
)

// fallbackGroupName is the policy group synthesized when the configuration
// defines none, so that rendered configs always import cleanly.
const fallbackGroupName = "PROXY"

// resolveGroups fills in the two conveniences the group section offers: a
// missing section becomes one select group over every node, and a group with
// an empty proxies list expands to every node name.
func resolveGroups(groups []config.Group, names []string) []config.Group {
	if len(groups) == 0 {
		groups = []config.Group{{Name: fallbackGroupName, Type: "select"}}
	}
	out := make([]config.Group, len(groups))
	for i, g := range groups {
		if len(g.Proxies) == 0 {
			g.Proxies = names
		}
		out[i] = g
	}
	return out
}

// resolveRules returns the rule lines to render, falling back to a single
// catch-all so the output never ships an empty rule section.
func resolveRules(rules []string) []string {
	if len(rules) == 0 {
		return []string{"MATCH,DIRECT"}
	}
	return rules
}

// surgeRuleLine rewrites one generic rule line into Surge vocabulary.
// The catch-all keyword differs; everything else passes through.
func surgeRuleLine(rule string) string {
	if rest, ok := strings.CutPrefix(rule, "MATCH,"); ok {
		return "FINAL," + rest
	}
	return rule
}

// ruleType returns the leading type token of a rule line.
func ruleType(rule string) string {
	typ, _, _ := strings.Cut(rule, ",")
	return strings.TrimSpace(typ)
}

func skipDebug(log *logrus.Logger, target Target, p model.Proxy) {
	if log == nil {
		return
	}
	typ := ""
	if p.Payload != nil {
		typ = string(p.Payload.Type())
	}
	log.WithFields(logrus.Fields{
		"target": string(target),
		"type":   typ,
		"name":   p.Name,
	}).Debug("node type not expressible in target, skipped")
}

func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
