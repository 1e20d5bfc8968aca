package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"

	"github.com/crowvane/nodeconv/internal/model"
)

// NewHandler returns the production handler: mux wrapped in gzip, panic
// recovery and request observability, outermost first.
func NewHandler(opt Options) http.Handler {
	opt = opt.withDefaults()
	var h http.Handler = NewMux(opt)
	h = gzhttp.GzipHandler(h)
	h = withRecovery(h, opt.Log)
	return withObservability(h, opt.Log)
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func withObservability(next http.Handler, log *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		httpInFlight.Dec()
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		// Unmatched routes share one label; arbitrary request paths must
		// not become metric label values.
		pattern := r.Pattern
		if pattern == "" {
			pattern = "(unmatched)"
		}

		dur := time.Since(start)
		httpRequestsTotal.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(pattern).Observe(dur.Seconds())

		// Never log the query string: subscription URLs carry credentials.
		if log != nil && r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
			log.WithFields(logrus.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"pattern": pattern,
				"status":  status,
				"bytes":   sw.bytes,
				"dur":     dur.Round(time.Millisecond).String(),
			}).Info("http request")
		}
	})
}

func withRecovery(next http.Handler, log *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if log != nil {
				log.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  rec,
				}).Error("handler panic")
			}
			writeAppError(w, http.StatusInternalServerError, model.AppError{
				Code:    "INTERNAL_ERROR",
				Message: "服务端内部错误",
				Stage:   "internal",
			})
		}()
		next.ServeHTTP(w, r)
	})
}
