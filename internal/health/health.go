// Package health provides the liveness and readiness probes mounted next
// to the websocket endpoints.
//
//   - /healthz — liveness; always 200 while the process serves HTTP.
//   - /readyz  — readiness; 200 only when every registered [Checker]
//     passes (typically the active LLM backend and the STT endpoint).
//
// Responses are JSON with a top-level "status" ("ok" or "fail") and a
// "checks" map with one entry per checker.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. Adapters promise a verdict
// within two seconds, so a stuck backend flips /readyz quickly instead of
// hanging the probe.
const checkTimeout = 2 * time.Second

// Checker is a named readiness check. Check returns nil when the
// dependency is healthy.
type Checker struct {
	// Name appears as a key in the JSON response (e.g. "llm", "stt").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// AdapterChecker wraps the boolean healthcheck the provider contracts use
// into a [Checker].
func AdapterChecker(name string, healthy func(ctx context.Context) bool) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if !healthy(ctx) {
				return fmt.Errorf("%s adapter reported unhealthy", name)
			}
			return nil
		},
	}
}

// result is the JSON response body for both probes.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction; safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler that evaluates the given checkers on each /readyz
// request, in order.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every checker passes. Each check runs with
// a [checkTimeout] deadline derived from the request context.
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

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
