package handler

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker is anything readiness can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 5 * time.Second

type dependency struct {
	name     string
	checker  HealthChecker
	required bool
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps       []dependency
	remoteMode string
}

// NewHealthHandler builds the probes. store must answer for the instance to
// be ready; cache is optional and may be nil. The remote Data API is never
// pinged since every operation can fall back to store.
func NewHealthHandler(store, cache HealthChecker, remoteConfigured bool) *HealthHandler {
	h := &HealthHandler{
		deps:       []dependency{{name: "localstore", checker: store, required: true}},
		remoteMode: "local only",
	}
	h.deps = append(h.deps, dependency{name: "redis", checker: cache})
	if remoteConfigured {
		h.remoteMode = "configured"
	}
	return h
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz answers 200 while the process serves requests.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency in parallel and answers 503 when a required
// one is missing or failing.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make([]string, len(h.deps))
	var g errgroup.Group
	for i, d := range h.deps {
		if d.checker == nil {
			results[i] = "not configured"
			continue
		}
		g.Go(func() error {
			if err := d.checker.Ping(ctx); err != nil {
				results[i] = "error: " + err.Error()
			} else {
				results[i] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{Status: "ok", Checks: map[string]string{"remote": h.remoteMode}}
	code := http.StatusOK
	for i, d := range h.deps {
		resp.Checks[d.name] = results[i]
		if d.required && results[i] != "ok" {
			resp.Status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}
