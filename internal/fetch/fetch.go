package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/crowvane/nodeconv/internal/model"
)

// Kind tells the fetcher what the URL is supposed to hold. It selects the
// error stage and the default size cap.
type Kind int

const (
	KindSubscription Kind = iota
	KindExternalConfig
)

func (k Kind) stage() string {
	switch k {
	case KindSubscription:
		return "fetch_sub"
	case KindExternalConfig:
		return "fetch_config"
	default:
		// Unknown kind is a programmer error; still return something stable.
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	switch k {
	case KindSubscription:
		return 4 * 1024 * 1024
	case KindExternalConfig:
		return 1 * 1024 * 1024
	default:
		return 1 * 1024 * 1024
	}
}

type Options struct {
	Timeout      time.Duration // default 15s
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5
}

type FetchError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeconv_fetch_cache_hits_total",
		Help: "Fetch responses served from the in-memory cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeconv_fetch_cache_misses_total",
		Help: "Fetch requests that had to go upstream.",
	})
	upstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeconv_fetch_upstream_errors_total",
		Help: "Upstream fetches that ended in an error.",
	})
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Client fetches remote text resources with a short-lived response cache.
// Upstream subscription endpoints are often slow and rate-limited; the cache
// absorbs the request storm a shared converter URL produces.
type Client struct {
	cache *gocache.Cache
	log   *logrus.Logger
}

// NewClient builds a fetch client. ttl <= 0 disables the response cache.
func NewClient(ttl time.Duration, log *logrus.Logger) *Client {
	c := &Client{log: log}
	if ttl > 0 {
		c.cache = gocache.New(ttl, 5*time.Minute)
	}
	return c
}

// Fetch returns the body at rawURL, validated as UTF-8 text and capped per
// kind. Successful bodies are cached by kind and URL.
func (c *Client) Fetch(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	key := kind.stage() + "|" + rawURL
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			cacheHits.Inc()
			c.debug(kind, rawURL, "fetch cache hit")
			return v.(string), nil
		}
		cacheMisses.Inc()
		c.debug(kind, rawURL, "fetch cache miss")
	}

	body, err := fetchText(ctx, kind, rawURL, opt)
	if err != nil {
		upstreamErrors.Inc()
		return "", err
	}
	if c.cache != nil {
		c.cache.SetDefault(key, body)
	}
	return body, nil
}

// FetchAll fetches every URL as a subscription, preserving input order in
// the result. The first failure cancels the remaining fetches and is
// returned; its AppError names the URL.
func (c *Client) FetchAll(ctx context.Context, urls []string, opt Options) ([]string, error) {
	bodies := make([]string, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range urls {
		g.Go(func() error {
			body, err := c.Fetch(ctx, KindSubscription, u, opt)
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}

func (c *Client) debug(kind Kind, rawURL, msg string) {
	if c.log == nil {
		return
	}
	c.log.WithFields(logrus.Fields{"stage": kind.stage(), "url": rawURL}).Debug(msg)
}

func fetchText(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	stage := kind.stage()

	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRedirects := opt.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}
	maxBytes := opt.MaxBytes
	if maxBytes == 0 {
		maxBytes = kind.defaultMaxBytes()
	}
	if maxBytes <= 0 {
		return "", newError(http.StatusBadRequest, "INVALID_ARGUMENT", "响应大小上限必须大于 0", stage, rawURL, nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", newError(http.StatusBadRequest, "INVALID_ARGUMENT", "仅允许 http/https URL", stage, rawURL,
			errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// via already holds the previous requests of the chain, so the
			// Nth redirect sees len(via)==N.
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", newError(http.StatusBadRequest, "INVALID_ARGUMENT", "请求 URL 不合法", stage, rawURL, err)
	}
	// Some providers vary the body by client UA; send a stable one.
	req.Header.Set("User-Agent", "nodeconv/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", classifyTransportError(err, maxRedirects, stage, rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(http.StatusBadGateway, "FETCH_FAILED",
			fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), stage, rawURL, nil)
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", classifyTransportError(err, maxRedirects, stage, rawURL)
	}
	if int64(len(body)) > maxBytes {
		return "", newError(http.StatusUnprocessableEntity, "TOO_LARGE",
			fmt.Sprintf("远程资源过大（>%d bytes）", maxBytes), stage, rawURL, nil)
	}

	body = bytes.TrimPrefix(body, utf8BOM)
	if !utf8.Valid(body) {
		return "", newError(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8",
			"远程资源不是合法 UTF-8 文本", stage, rawURL, nil)
	}
	return string(body), nil
}

func newError(status int, code, message, stage, rawURL string, cause error) *FetchError {
	return &FetchError{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   stage,
			URL:     rawURL,
		},
		Cause: cause,
	}
}

func classifyTransportError(err error, maxRedirects int, stage, rawURL string) *FetchError {
	switch {
	case errors.Is(err, errTooManyRedirects):
		return newError(http.StatusBadGateway, "FETCH_FAILED",
			fmt.Sprintf("重定向次数超过上限（>%d）", maxRedirects), stage, rawURL, err)
	case errors.Is(err, errRedirectBadScheme):
		return newError(http.StatusBadRequest, "INVALID_ARGUMENT",
			"重定向目标仅允许 http/https", stage, rawURL, err)
	}

	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return newError(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程资源超时", stage, rawURL, err)
	}
	return newError(http.StatusBadGateway, "FETCH_FAILED", "拉取远程资源失败", stage, rawURL, err)
}
