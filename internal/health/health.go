// Package health provides the HTTP operations surface for a running stream.
//
// Three endpoints are exposed:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 only when every registered
//     [Checker] passes.
//   - /statusz: a snapshot of the live session (uptime, emotion, mood,
//     buffered chat) for quick inspection while the stream runs.
//
// Prometheus metrics are served on /metrics via the default registry, which
// the OpenTelemetry exporter in internal/observe feeds.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is usable and an error describing the failure otherwise. It must respect
// context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Snapshot describes the live session for /statusz. All fields are optional;
// zero values are omitted from the JSON response.
type Snapshot struct {
	Uptime       string `json:"uptime,omitempty"`
	Emotion      string `json:"emotion,omitempty"`
	Mood         string `json:"mood,omitempty"`
	BufferedChat int    `json:"buffered_chat"`
	TwitchJoined bool   `json:"twitch_joined"`
}

// SnapshotFunc produces the current [Snapshot]. It is called on every
// /statusz request and must be safe for concurrent use.
type SnapshotFunc func() Snapshot

// result is the JSON body for /healthz and /readyz.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the operations endpoints. The checker list is fixed at
// construction time, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
	snapshot SnapshotFunc
	started  time.Time
}

// New creates a [Handler] evaluating the given checkers on each /readyz
// request, in order. snapshot may be nil, in which case /statusz reports
// only uptime.
func New(snapshot SnapshotFunc, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, snapshot: snapshot, started: time.Now()}
}

// Healthz is the liveness probe. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every checker with a [checkTimeout] deadline derived from the
// request context and returns 503 if any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Statusz reports the live session snapshot plus process uptime.
func (h *Handler) Statusz(w http.ResponseWriter, _ *http.Request) {
	var snap Snapshot
	if h.snapshot != nil {
		snap = h.snapshot()
	}
	snap.Uptime = time.Since(h.started).Round(time.Second).String()
	writeJSON(w, http.StatusOK, snap)
}

// Register adds the /healthz, /readyz, /statusz and /metrics routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /statusz", h.Statusz)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// writeJSON encodes v with the given status code, falling back to a
// plain-text 500 on encoding failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
