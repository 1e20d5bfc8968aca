package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeconv_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"pattern", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodeconv_http_request_duration_seconds",
		Help:    "HTTP request duration by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pattern"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nodeconv_http_in_flight_requests",
		Help: "HTTP requests currently being served.",
	})

	appErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeconv_app_errors_total",
		Help: "Error responses by pipeline stage and error code.",
	}, []string{"stage", "code"})
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
