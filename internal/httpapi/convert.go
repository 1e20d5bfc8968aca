package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/fetch"
	"github.com/crowvane/nodeconv/internal/manip"
	"github.com/crowvane/nodeconv/internal/model"
	"github.com/crowvane/nodeconv/internal/render"
	"github.com/crowvane/nodeconv/internal/sub"
)

type convertHandler struct {
	opt Options
}

type convertRequest struct {
	Target    render.Target
	URLs      []string // http(s) subscription URLs and inline share links
	Content   string   // raw pasted body (POST only)
	ConfigURL string
	Include   []string
	Exclude   []string
	Rename    []string
	Emoji     []string
	Group     string
	Sort      bool
	Base64    bool
	FileName  string
	Interval  int
	Strict    bool
	isFromGET bool // managed-config preambles only make sense for GET URLs
}

type convertRequestJSON struct {
	Target  string              `json:"target"`
	URLs    []string            `json:"urls"`
	Content string              `json:"content"`
	Options *convertOptionsJSON `json:"options"`
}

type convertOptionsJSON struct {
	Config   string   `json:"config"`
	Include  []string `json:"include"`
	Exclude  []string `json:"exclude"`
	Rename   []string `json:"rename"`
	Emoji    []string `json:"emoji"`
	Group    string   `json:"group"`
	Sort     bool     `json:"sort"`
	Base64   bool     `json:"b64"`
	FileName string   `json:"filename"`
	Interval int      `json:"interval"`
	Strict   bool     `json:"strict"`
}

type convertResponse struct {
	Content string `json:"content"`
	Count   int    `json:"count"`
	Target  string `json:"target"`
}

func (h convertHandler) handleSub(w http.ResponseWriter, r *http.Request) {
	req, err := parseConvertGET(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	out, _, err := h.runConvert(r, req)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	setAttachmentHeaders(w, req)
	WriteText(w, http.StatusOK, out)
}

func (h convertHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, err := parseConvertPOST(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	out, count, err := h.runConvert(r, req)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, convertResponse{
		Content: out,
		Count:   count,
		Target:  string(req.Target),
	})
}

// runConvert is the whole pipeline: gather nodes, apply the external config
// and per-request overrides, manipulate, render.
func (h convertHandler) runConvert(r *http.Request, req convertRequest) (string, int, error) {
	cfg := h.opt.Config
	ctx, cancel := context.WithTimeout(r.Context(), cfg.ConvertTimeout)
	defer cancel()

	// Bad patterns in the request fail here, before any upstream fetch.
	// The file config was validated at startup, so only request-supplied
	// lists can trip this.
	if _, err := h.manipOptions(req, nil); err != nil {
		return "", 0, err
	}

	proxies, err := h.gatherProxies(ctx, req)
	if err != nil {
		return "", 0, err
	}
	if len(proxies) == 0 {
		return "", 0, apiError(http.StatusBadRequest, model.AppError{
			Code:    "NO_NODES",
			Message: "订阅中没有任何可用节点",
			Stage:   "convert",
		}, nil)
	}

	var ext *config.External
	if req.ConfigURL != "" {
		body, err := h.opt.Fetcher.Fetch(ctx, fetch.KindExternalConfig, req.ConfigURL, fetch.Options{Timeout: cfg.FetchTimeout})
		if err != nil {
			return "", 0, err
		}
		if ext, err = config.ParseExternal(req.ConfigURL, body); err != nil {
			return "", 0, err
		}
	}

	opts, err := h.manipOptions(req, ext)
	if err != nil {
		return "", 0, err
	}
	proxies = manip.Apply(opts, proxies)
	if len(proxies) == 0 {
		return "", 0, apiError(http.StatusBadRequest, model.AppError{
			Code:    "NO_NODES",
			Message: "过滤后没有任何节点",
			Stage:   "convert",
			Hint:    "check include/exclude patterns",
		}, nil)
	}

	in := render.Input{
		Proxies: proxies,
		Groups:  cfg.Groups,
		Rules:   cfg.Rules,
		Base64:  req.Base64,
		Log:     h.opt.Log,
	}
	if ext != nil {
		if len(ext.Groups) > 0 {
			in.Groups = ext.Groups
		}
		if len(ext.Rules) > 0 {
			in.Rules = ext.Rules
		}
	}
	if tpl, ok := h.opt.Templates[req.Target]; ok {
		in.Template = tpl.Text
		in.TemplateSource = tpl.Source
	}

	// Surge managed-config needs a re-fetchable URL, which only a GET
	// request has.
	if req.isFromGET && req.Target == render.TargetSurge &&
		(cfg.ManagedConfig.Enabled || req.Interval > 0) {
		in.ManagedURL = deriveRequestURL(r)
		in.ManagedInterval = req.Interval
		if in.ManagedInterval == 0 {
			in.ManagedInterval = cfg.ManagedConfig.Interval
		}
		in.ManagedStrict = req.Strict
	}

	out, err := render.Render(req.Target, in)
	if err != nil {
		return "", 0, err
	}
	return out, len(proxies), nil
}

// gatherProxies explodes every input source in request order: remote bodies
// are fetched in parallel, inline share links and pasted content are decoded
// directly. Lines a tolerant decoder cannot recognize are skipped; an inline
// link that decodes to nothing is an error because the caller named it
// explicitly.
func (h convertHandler) gatherProxies(ctx context.Context, req convertRequest) ([]model.Proxy, error) {
	var remote []string
	for _, u := range req.URLs {
		if isHTTPURL(u) {
			remote = append(remote, u)
		}
	}
	bodies, err := h.opt.Fetcher.FetchAll(ctx, remote, fetch.Options{Timeout: h.opt.Config.FetchTimeout})
	if err != nil {
		return nil, err
	}

	var out []model.Proxy
	next := 0
	for _, u := range req.URLs {
		if isHTTPURL(u) {
			out = append(out, sub.ExplodeConfContent(bodies[next], model.ConfUnknown)...)
			next++
			continue
		}
		p, ok := sub.Explode(u)
		if !ok {
			return nil, apiError(http.StatusBadRequest, model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "无法识别的分享链接",
				Stage:   "parse_sub",
				Snippet: truncateSnippet(u, 200),
			}, nil)
		}
		out = append(out, p)
	}

	if req.Content != "" {
		out = append(out, sub.ExplodeConfContent(req.Content, model.ConfUnknown)...)
	}
	return out, nil
}

// manipOptions merges the three override layers. Request params win over the
// external config, which wins over the service config; each list is taken
// whole from the first layer that sets it.
func (h convertHandler) manipOptions(req convertRequest, ext *config.External) (manip.Options, error) {
	cfg := h.opt.Config

	var extInclude, extExclude, extRename, extEmoji []string
	if ext != nil {
		extInclude = ext.IncludeRemarks
		extExclude = ext.ExcludeRemarks
		extRename = ext.Rename
		extEmoji = ext.Emoji
	}

	includes, err := manip.CompileMatchers(pickList(req.Include, extInclude, cfg.IncludeRemarks))
	if err != nil {
		return manip.Options{}, err
	}
	excludes, err := manip.CompileMatchers(pickList(req.Exclude, extExclude, cfg.ExcludeRemarks))
	if err != nil {
		return manip.Options{}, err
	}
	renames, err := manip.ParseRenames(pickList(req.Rename, extRename, cfg.Rename))
	if err != nil {
		return manip.Options{}, err
	}
	emojis, err := manip.ParseEmojis(pickList(req.Emoji, extEmoji, cfg.Emoji))
	if err != nil {
		return manip.Options{}, err
	}

	group := req.Group
	if group == "" {
		group = cfg.DefaultGroup
	}

	return manip.Options{
		DefaultGroup: group,
		Includes:     includes,
		Excludes:     excludes,
		Renames:      renames,
		Emojis:       emojis,
		SortByName:   req.Sort,
		Log:          h.opt.Log,
	}, nil
}

func pickList(req, ext, cfg []string) []string {
	if len(req) > 0 {
		return req
	}
	if len(ext) > 0 {
		return ext
	}
	return cfg
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func deriveRequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = "127.0.0.1:25500"
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func parseConvertGET(r *http.Request) (convertRequest, error) {
	q := r.URL.Query()
	for key := range q {
		switch key {
		case "target", "url", "config", "include", "exclude", "rename", "emoji",
			"group", "sort", "b64", "filename", "interval", "strict":
		default:
			return convertRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("不支持的 query 参数：%s", key), "")
		}
	}

	targetStr, err := singleQuery(q, "target", true)
	if err != nil {
		return convertRequest{}, err
	}
	target, err := render.ParseTarget(strings.TrimSpace(targetStr))
	if err != nil {
		return convertRequest{}, err
	}

	rawURL, err := singleQuery(q, "url", true)
	if err != nil {
		return convertRequest{}, err
	}
	urls := splitPipes(rawURL)
	if len(urls) == 0 {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "url 不能为空", "expected: url=<subscription-url>")
	}

	configURL, err := singleQuery(q, "config", false)
	if err != nil {
		return convertRequest{}, err
	}
	configURL = strings.TrimSpace(configURL)
	if configURL != "" && !isHTTPURL(configURL) {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "config 必须是 http/https URL", "")
	}

	group, err := singleQuery(q, "group", false)
	if err != nil {
		return convertRequest{}, err
	}
	sortBy, err := boolQuery(q, "sort")
	if err != nil {
		return convertRequest{}, err
	}
	b64, err := boolQuery(q, "b64")
	if err != nil {
		return convertRequest{}, err
	}
	strict, err := boolQuery(q, "strict")
	if err != nil {
		return convertRequest{}, err
	}
	interval, err := intQuery(q, "interval")
	if err != nil {
		return convertRequest{}, err
	}

	filename, err := singleQuery(q, "filename", false)
	if err != nil {
		return convertRequest{}, err
	}
	filename = strings.TrimSpace(filename)
	if err := validateFileName(filename); err != nil {
		return convertRequest{}, err
	}

	return convertRequest{
		Target:    target,
		URLs:      urls,
		ConfigURL: configURL,
		Include:   listParam(q["include"]),
		Exclude:   listParam(q["exclude"]),
		Rename:    listParam(q["rename"]),
		Emoji:     listParam(q["emoji"]),
		Group:     strings.TrimSpace(group),
		Sort:      sortBy,
		Base64:    b64,
		FileName:  filename,
		Interval:  interval,
		Strict:    strict,
		isFromGET: true,
	}, nil
}

func parseConvertPOST(r *http.Request) (convertRequest, error) {
	var body convertRequestJSON
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "JSON body 不允许多段", "")
	} else if !errors.Is(err, io.EOF) {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}

	target, err := render.ParseTarget(strings.TrimSpace(body.Target))
	if err != nil {
		return convertRequest{}, err
	}

	urls := make([]string, 0, len(body.URLs))
	for _, u := range body.URLs {
		u = strings.TrimSpace(u)
		if u == "" {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "urls 不能含有空项", "")
		}
		urls = append(urls, u)
	}
	content := strings.TrimSpace(body.Content)
	if len(urls) == 0 && content == "" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "缺少 urls 或 content", "supply urls[] and/or content")
	}

	req := convertRequest{
		Target:  target,
		URLs:    urls,
		Content: content,
	}
	if o := body.Options; o != nil {
		req.ConfigURL = strings.TrimSpace(o.Config)
		if req.ConfigURL != "" && !isHTTPURL(req.ConfigURL) {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "options.config 必须是 http/https URL", "")
		}
		req.Include = listParam(o.Include)
		req.Exclude = listParam(o.Exclude)
		req.Rename = listParam(o.Rename)
		req.Emoji = listParam(o.Emoji)
		req.Group = strings.TrimSpace(o.Group)
		req.Sort = o.Sort
		req.Base64 = o.Base64
		req.FileName = strings.TrimSpace(o.FileName)
		if err := validateFileName(req.FileName); err != nil {
			return convertRequest{}, err
		}
		if o.Interval < 0 {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "interval 不能为负", "")
		}
		req.Interval = o.Interval
		req.Strict = o.Strict
	}
	return req, nil
}

func singleQuery(q url.Values, key string, required bool) (string, error) {
	values, ok := q[key]
	if !ok || len(values) == 0 {
		if required {
			return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("缺少 %s 参数", key), "")
		}
		return "", nil
	}
	if len(values) != 1 {
		return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数只能出现一次", key), "")
	}
	return values[0], nil
}

func boolQuery(q url.Values, key string) (bool, error) {
	v, err := singleQuery(q, key, false)
	if err != nil {
		return false, err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数必须是布尔值", key), v)
	}
	return b, nil
}

func intQuery(q url.Values, key string) (int, error) {
	v, err := singleQuery(q, key, false)
	if err != nil {
		return 0, err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数必须是非负整数", key), v)
	}
	return n, nil
}

// splitPipes splits the url= parameter. "|" cannot appear raw inside an
// http(s) URL or a share link, so it is a safe separator.
func splitPipes(s string) []string {
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func listParam(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
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
