package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Checker answers readiness queries for the HTTP control plane. Wired by
// cmd/agentmaild at startup; Ready reports false until the server has
// finished its startup probes and opened its store/archive/index.
type Checker struct {
	ready atomic.Bool
}

// NewChecker builds a Checker, initially not ready.
func NewChecker() *Checker { return &Checker{} }

// SetReady flips readiness. Called once startup probes pass.
func (c *Checker) SetReady(ready bool) { c.ready.Store(ready) }

// IsReady reports the current readiness flag, for tools that surface it
// alongside other health signals (health_check).
func (c *Checker) IsReady() bool { return c.ready.Load() }

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// LivenessHandler reports "alive" unconditionally once the process is
// serving HTTP at all — liveness never depends on store/archive state.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

// ReadinessHandler reports "ready" once startup probes have passed.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !c.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// HealthzHandler is the combined alias health-check endpoint.
func (c *Checker) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if !c.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

// OAuthMetadataHandler answers the well-known discovery path every MCP
// client probes; this server never implements OAuth itself.
func OAuthMetadataHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mcp_oauth": false})
}
