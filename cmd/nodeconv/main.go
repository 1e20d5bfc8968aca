package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/crowvane/nodeconv/internal/config"
	"github.com/crowvane/nodeconv/internal/httpapi"
	"github.com/crowvane/nodeconv/internal/render"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	listen := flag.String("listen", "", "HTTP 监听地址（优先于配置文件）")
	configPath := flag.String("config", "", "YAML 配置文件路径")
	logLevel := flag.String("log-level", "info", "日志级别（debug|info|warn|error）")
	logFormat := flag.String("log-format", "text", "日志格式（text|json）")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "收到退出信号后的优雅退出等待时间")
	showVersion := flag.Bool("version", false, "打印版本并退出")
	healthcheck := flag.Bool("healthcheck", false, "探测运行中实例的 /healthz，成功则以 0 退出")
	flag.Parse()

	if *showVersion {
		fmt.Println("nodeconv " + version)
		return
	}

	log := logrus.New()
	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid -log-level %q: %v", *logLevel, err)
	}
	log.SetLevel(lvl)
	switch *logFormat {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.Fatalf("invalid -log-format %q (want text or json)", *logFormat)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = *loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	// Container HEALTHCHECK entrypoint: probe a running instance and exit.
	if *healthcheck {
		target, err := deriveHealthzURL(cfg.Listen)
		if err != nil {
			log.Fatalf("healthcheck: %v", err)
		}
		if err := runHealthcheck(target, 3*time.Second); err != nil {
			log.Fatalf("healthcheck: %v", err)
		}
		return
	}

	templates, err := loadTemplates(cfg.Templates)
	if err != nil {
		log.Fatalf("load templates: %v", err)
	}

	srv := &http.Server{
		Handler: httpapi.NewHandler(httpapi.Options{
			Config:    &cfg,
			Log:       log,
			Templates: templates,
			Version:   version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.Listen, err)
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	log.WithFields(logrus.Fields{
		"addr":    ln.Addr().String(),
		"version": version,
	}).Info("listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Errorf("graceful shutdown failed: %v", err)
			_ = srv.Close()
		}

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}
}

// loadTemplates reads the configured template files once at startup so a bad
// path fails the process instead of the first matching request.
func loadTemplates(paths map[string]string) (map[render.Target]httpapi.Template, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make(map[render.Target]httpapi.Template, len(paths))
	for key, path := range paths {
		target, err := render.ParseTarget(key)
		if err != nil {
			return nil, fmt.Errorf("template key %q: %w", key, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", key, err)
		}
		out[target] = httpapi.Template{Source: path, Text: string(data)}
	}
	return out, nil
}

// deriveHealthzURL turns a listen address into the probe URL. Wildcard and
// empty hosts map to loopback because the probe runs on the same machine.
func deriveHealthzURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("empty listen address")
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", err
		}
		u.Path = "/healthz"
		return u.String(), nil
	}
	if !strings.Contains(addr, ":") {
		// Bare port.
		addr = ":" + addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

func runHealthcheck(target string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
