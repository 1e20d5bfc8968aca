package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crowvane/nodeconv/internal/manip"
	"github.com/crowvane/nodeconv/internal/model"
)

// Config is the service configuration after defaults and validation.
type Config struct {
	Listen         string
	MaxConns       int
	ConvertTimeout time.Duration
	FetchTimeout   time.Duration
	CacheTTL       time.Duration
	DefaultGroup   string

	ManagedConfig ManagedConfig

	// Templates maps a render target to a template file path. Targets
	// without an entry use the embedded default.
	Templates map[string]string

	// Rules are verbatim rule lines for clash/surge output.
	Rules []string

	Groups []Group

	// Manipulation directives, kept raw. They are compiled here once to
	// fail fast, and again per request after merging overrides.
	Rename         []string
	Emoji          []string
	IncludeRemarks []string
	ExcludeRemarks []string
}

type ManagedConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// Group is one rendered proxy group. An empty Proxies list expands to all
// node names at render time.
type Group struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // select | url-test | fallback | load-balance
	Proxies  []string `yaml:"proxies"`
	URL      string   `yaml:"url"`
	Interval int      `yaml:"interval"`
}

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

type rawConfig struct {
	Listen         string            `yaml:"listen"`
	MaxConns       int               `yaml:"max-conns"`
	ConvertTimeout string            `yaml:"convert-timeout"`
	FetchTimeout   string            `yaml:"fetch-timeout"`
	CacheTTL       string            `yaml:"cache-ttl"`
	DefaultGroup   string            `yaml:"default-group"`
	ManagedConfig  ManagedConfig     `yaml:"managed-config"`
	Templates      map[string]string `yaml:"templates"`
	Rules          []string          `yaml:"rules"`
	Groups         []Group           `yaml:"groups"`
	Rename         []string          `yaml:"rename"`
	Emoji          []string          `yaml:"emoji"`
	IncludeRemarks []string          `yaml:"include-remarks"`
	ExcludeRemarks []string          `yaml:"exclude-remarks"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:         ":25500",
		MaxConns:       256,
		ConvertTimeout: 20 * time.Second,
		FetchTimeout:   10 * time.Second,
		CacheTTL:       60 * time.Second,
		DefaultGroup:   "nodeconv",
		ManagedConfig:  ManagedConfig{Interval: 86400},
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "CONFIG_READ_ERROR",
				Message: "配置文件读取失败",
				Stage:   "parse_config",
				URL:     path,
			},
			Cause: err,
		}
	}
	return Parse(path, string(data))
}

// Parse parses and validates a configuration document. source names the
// origin (file path) for error reporting. Unknown fields and multi-document
// files are rejected.
func Parse(source, content string) (*Config, error) {
	var rc rawConfig
	if err := yamlDecodeStrict(content, &rc); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "CONFIG_PARSE_ERROR",
				Message: "配置 YAML 解析失败",
				Stage:   "parse_config",
				URL:     source,
				Snippet: truncateSnippet(content, 200),
			},
			Cause: err,
		}
	}

	cfg := Default()
	if v := strings.TrimSpace(rc.Listen); v != "" {
		cfg.Listen = v
	}
	if rc.MaxConns != 0 {
		if rc.MaxConns < 0 {
			return nil, validateErr(source, "max-conns 不能为负", fmt.Sprint(rc.MaxConns))
		}
		cfg.MaxConns = rc.MaxConns
	}

	var err error
	if cfg.ConvertTimeout, err = durationField(source, "convert-timeout", rc.ConvertTimeout, cfg.ConvertTimeout); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = durationField(source, "fetch-timeout", rc.FetchTimeout, cfg.FetchTimeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationField(source, "cache-ttl", rc.CacheTTL, cfg.CacheTTL); err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(rc.DefaultGroup); v != "" {
		cfg.DefaultGroup = v
	}

	cfg.ManagedConfig.Enabled = rc.ManagedConfig.Enabled
	if rc.ManagedConfig.Interval < 0 {
		return nil, validateErr(source, "managed-config.interval 不能为负", fmt.Sprint(rc.ManagedConfig.Interval))
	}
	if rc.ManagedConfig.Interval > 0 {
		cfg.ManagedConfig.Interval = rc.ManagedConfig.Interval
	}

	allowedTemplates := map[string]struct{}{
		"clash": {},
		"surge": {},
	}
	for k, v := range rc.Templates {
		if _, ok := allowedTemplates[k]; !ok {
			return nil, validateErr(source, fmt.Sprintf("template key 不支持：%s", k), k)
		}
		if strings.TrimSpace(v) == "" {
			return nil, validateErr(source, fmt.Sprintf("templates.%s 路径为空", k), "")
		}
	}
	cfg.Templates = rc.Templates

	cfg.Rules = cleanLines(rc.Rules)

	if cfg.Groups, err = validateGroups(source, rc.Groups); err != nil {
		return nil, err
	}

	if _, err := manip.ParseRenames(rc.Rename); err != nil {
		return nil, wrapOptionError(err, source)
	}
	if _, err := manip.ParseEmojis(rc.Emoji); err != nil {
		return nil, wrapOptionError(err, source)
	}
	if _, err := manip.CompileMatchers(rc.IncludeRemarks); err != nil {
		return nil, wrapOptionError(err, source)
	}
	if _, err := manip.CompileMatchers(rc.ExcludeRemarks); err != nil {
		return nil, wrapOptionError(err, source)
	}
	cfg.Rename = rc.Rename
	cfg.Emoji = rc.Emoji
	cfg.IncludeRemarks = rc.IncludeRemarks
	cfg.ExcludeRemarks = rc.ExcludeRemarks

	return &cfg, nil
}

// External is the subset of Config a remote file may supply. Remote files
// evolve and often carry fields this service does not know, so the decode
// is lenient about unknown keys.
type External struct {
	Rules          []string `yaml:"rules"`
	Groups         []Group  `yaml:"groups"`
	Rename         []string `yaml:"rename"`
	Emoji          []string `yaml:"emoji"`
	IncludeRemarks []string `yaml:"include-remarks"`
	ExcludeRemarks []string `yaml:"exclude-remarks"`
}

// ParseExternal parses a remote manipulation config fetched from sourceURL.
func ParseExternal(sourceURL, content string) (*External, error) {
	var ext External
	if err := yaml.Unmarshal([]byte(content), &ext); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "EXTERNAL_CONFIG_PARSE_ERROR",
				Message: "外部配置 YAML 解析失败",
				Stage:   "parse_config",
				URL:     sourceURL,
				Snippet: truncateSnippet(content, 200),
			},
			Cause: err,
		}
	}

	var err error
	ext.Rules = cleanLines(ext.Rules)
	if ext.Groups, err = validateGroups(sourceURL, ext.Groups); err != nil {
		return nil, err
	}
	if _, err := manip.ParseRenames(ext.Rename); err != nil {
		return nil, wrapOptionError(err, sourceURL)
	}
	if _, err := manip.ParseEmojis(ext.Emoji); err != nil {
		return nil, wrapOptionError(err, sourceURL)
	}
	if _, err := manip.CompileMatchers(ext.IncludeRemarks); err != nil {
		return nil, wrapOptionError(err, sourceURL)
	}
	if _, err := manip.CompileMatchers(ext.ExcludeRemarks); err != nil {
		return nil, wrapOptionError(err, sourceURL)
	}
	return &ext, nil
}

func validateGroups(source string, groups []Group) ([]Group, error) {
	out := make([]Group, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		g.Name = strings.TrimSpace(g.Name)
		g.Type = strings.TrimSpace(g.Type)
		if g.Name == "" {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "GROUP_PARSE_ERROR",
					Message: "策略组名不能为空",
					Stage:   "parse_config",
					URL:     source,
				},
			}
		}
		if strings.ContainsAny(g.Name, "\r\n\x00") {
			return nil, groupErr(source, g.Name, "策略组名包含控制字符")
		}
		if g.Name == "DIRECT" || g.Name == "REJECT" {
			return nil, groupErr(source, g.Name, "策略组名不能使用保留名 DIRECT/REJECT")
		}
		if _, dup := seen[g.Name]; dup {
			return nil, groupErr(source, g.Name, fmt.Sprintf("重复的策略组名：%s", g.Name))
		}
		seen[g.Name] = struct{}{}

		switch g.Type {
		case "select":
		case "url-test", "fallback", "load-balance":
			if g.URL == "" {
				return nil, groupErr(source, g.Name, fmt.Sprintf("%s 组必须提供 url", g.Type))
			}
			if err := validateHTTPURL(g.URL); err != nil {
				return nil, &ParseError{
					AppError: model.AppError{
						Code:    "GROUP_PARSE_ERROR",
						Message: fmt.Sprintf("%s 组 url 不合法", g.Type),
						Stage:   "parse_config",
						URL:     source,
						Snippet: g.URL,
					},
					Cause: err,
				}
			}
			if g.Interval < 0 {
				return nil, groupErr(source, g.Name, "interval 不能为负")
			}
			if g.Interval == 0 {
				g.Interval = 300
			}
		default:
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "GROUP_UNSUPPORTED_TYPE",
					Message: fmt.Sprintf("不支持的策略组类型：%s", g.Type),
					Stage:   "parse_config",
					URL:     source,
					Snippet: g.Name,
				},
			}
		}

		for i, m := range g.Proxies {
			m = strings.TrimSpace(m)
			if m == "" {
				return nil, groupErr(source, g.Name, "策略组成员不能为空")
			}
			if strings.ContainsAny(m, "\r\n\x00") {
				return nil, groupErr(source, g.Name, "策略组成员包含控制字符")
			}
			g.Proxies[i] = m
		}
		out = append(out, g)
	}
	return out, nil
}

func groupErr(source, groupName, message string) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    "GROUP_PARSE_ERROR",
			Message: message,
			Stage:   "parse_config",
			URL:     source,
			Snippet: groupName,
		},
	}
}

func validateErr(source, message, snippet string) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    "CONFIG_VALIDATE_ERROR",
			Message: message,
			Stage:   "parse_config",
			URL:     source,
			Snippet: truncateSnippet(snippet, 200),
		},
	}
}

func durationField(source, key, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, &ParseError{
			AppError: model.AppError{
				Code:    "CONFIG_VALIDATE_ERROR",
				Message: fmt.Sprintf("%s 必须是正的时长", key),
				Stage:   "parse_config",
				URL:     source,
				Snippet: raw,
				Hint:    `expected a Go duration, e.g. "20s"`,
			},
			Cause: err,
		}
	}
	return d, nil
}

func wrapOptionError(err error, source string) error {
	var pe *manip.ParseError
	if errors.As(err, &pe) {
		ae := pe.AppError
		ae.Stage = "parse_config"
		ae.URL = source
		return &ParseError{AppError: ae, Cause: pe.Cause}
	}
	return &ParseError{
		AppError: model.AppError{
			Code:    "CONFIG_VALIDATE_ERROR",
			Message: "manipulation 指令解析失败",
			Stage:   "parse_config",
			URL:     source,
		},
		Cause: err,
	}
}

func yamlDecodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		// Every field is optional, so an empty document means defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	// Reject multi-document YAML to keep behavior deterministic.
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u == nil || !u.IsAbs() {
		return errors.New("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http/https")
	}
	return nil
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
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
