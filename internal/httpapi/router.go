package httpapi

import "net/http"

// NewMux builds the bare route table. Tests use it directly; production
// traffic goes through NewHandler, which adds the middleware stack.
func NewMux(opt Options) *http.ServeMux {
	opt = opt.withDefaults()
	h := convertHandler{opt: opt}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /version", h.handleVersion)
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("GET /sub", h.handleSub)
	mux.HandleFunc("POST /api/convert", h.handleConvert)
	return mux
}
