package httpapi

import "net/http"

const indexPage = `nodeconv - proxy subscription converter

GET  /sub?target=clash&url=<subscription>   convert, result as plain text
POST /api/convert                           convert, JSON in / JSON out
GET  /healthz                               liveness probe
GET  /version                               build version
GET  /metrics                               prometheus metrics

GET /sub parameters:
  target    clash | surge | nodelist (required)
  url       subscription URLs or share links, "|"-separated (required)
  config    external config URL
  include   keep only nodes matching this pattern (repeatable)
  exclude   drop nodes matching this pattern (repeatable)
  rename    rename rule "<match>@<replacement>" (repeatable)
  emoji     emoji rule "<match>,<emoji>" (repeatable)
  group     override the default group name
  sort      sort nodes by name (true/false)
  b64       base64-encode nodelist output (true/false)
  filename  download filename for Content-Disposition
  interval  managed-config update interval in seconds (surge)
  strict    managed-config strict flag (surge)
`

func handleIndex(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, indexPage)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

func (h convertHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"version": h.opt.Version})
}
