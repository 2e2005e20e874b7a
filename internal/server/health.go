package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnreadable   = "unreadable"
	healthStatusCircuitOpen  = "circuit open"
)

// HealthChecker serves liveness and readiness endpoints next to /metrics.
// The stdio transport has no probe of its own, so these endpoints are how a
// supervisor learns whether the server can still reach Gmail.
type HealthChecker struct {
	ready   atomic.Bool
	sc      *ServerContext
	started time.Time
}

// NewHealthChecker creates a HealthChecker that starts out ready. sc may be
// nil, in which case only the ready flag is checked.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, started: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status         string            `json:"status"`
	Uptime         string            `json:"uptime"`
	Accounts       int               `json:"accounts"`
	ServiceHandles int               `json:"service_handles"`
	ReadOnly       bool              `json:"read_only"`
	Breakers       map[string]string `json:"breakers,omitempty"`
}

// checks runs the readiness checks. The gmail_api check fails while the
// breaker of any cached account is open.
func (h *HealthChecker) checks() (map[string]string, bool) {
	checks := map[string]string{
		"ready":       healthStatusOK,
		"shutdown":    healthStatusOK,
		"token_store": healthStatusOK,
		"gmail_api":   healthStatusOK,
	}
	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
	}
	if h.sc != nil {
		if h.sc.IsShutdown() {
			checks["shutdown"] = healthStatusShuttingDown
		}
		if _, err := h.sc.ListAccounts(); err != nil {
			checks["token_store"] = healthStatusUnreadable
		}
		if open := openBreakers(h.sc.BreakerStates()); len(open) > 0 {
			checks["gmail_api"] = healthStatusCircuitOpen
		}
	}

	for _, v := range checks {
		if v != healthStatusOK {
			return checks, false
		}
	}
	return checks, true
}

func openBreakers(states map[string]string) []string {
	var open []string
	for account, state := range states {
		if state == "open" {
			open = append(open, account)
		}
	}
	sort.Strings(open)
	return open
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// LivenessHandler serves /healthz. It answers ok for as long as the
// process can serve HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler serves /readyz with the result of every check.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.checks()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
	})
}

// DetailedHealthHandler serves /healthz/detailed: uptime, stored accounts,
// cached service handles and per-account breaker states.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.started).Truncate(time.Second).String(),
		}
		if h.sc != nil {
			if accounts, err := h.sc.ListAccounts(); err == nil {
				resp.Accounts = len(accounts)
			}
			resp.ServiceHandles = h.sc.HandleCount()
			resp.ReadOnly = h.sc.ReadOnly()
			resp.Breakers = h.sc.BreakerStates()
		}

		status := http.StatusOK
		switch {
		case !h.ready.Load():
			resp.Status, status = healthStatusNotReady, http.StatusServiceUnavailable
		case h.sc != nil && h.sc.IsShutdown():
			resp.Status, status = healthStatusShuttingDown, http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})
}

// RegisterHealthEndpoints mounts /healthz, /readyz and /healthz/detailed.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}
