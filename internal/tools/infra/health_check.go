// Package infra implements the infrastructure tool cluster: health_check,
// ensure_project, and the two precommit-guard stubs.
package infra

import (
	"context"
	"encoding/json"

	"github.com/agentmail/agentmail/internal/archive"
	"github.com/agentmail/agentmail/internal/backpressure"
	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/health"
	"github.com/agentmail/agentmail/internal/mcp"
)

type healthCheckParams struct{}

// HealthCheck reports the composite backpressure level, the archive
// write-behind queue's depth, the fail-open contact-enforcement bypass
// count, and the control plane's readiness — the single low-cost call
// agents poll before deciding whether to back off.
type HealthCheck struct {
	monitor  *backpressure.Monitor
	arc      *archive.Archive
	contacts *domain.ContactService
	checker  *health.Checker
}

// NewHealthCheck builds a HealthCheck tool. arc and checker may be nil in
// a stdio-only deployment with no archive or HTTP control plane wired.
func NewHealthCheck(monitor *backpressure.Monitor, arc *archive.Archive, contacts *domain.ContactService, checker *health.Checker) *HealthCheck {
	return &HealthCheck{monitor: monitor, arc: arc, contacts: contacts, checker: checker}
}

func (t *HealthCheck) Name() string { return "health_check" }

func (t *HealthCheck) Description() string {
	return "Report the server's current backpressure level, archive write-behind queue depth, contact-enforcement fail-open bypass count, and readiness. Shed under sustained overload; safe to poll frequently."
}

func (t *HealthCheck) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *HealthCheck) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	level := backpressure.Green
	if t.monitor != nil {
		level = t.monitor.Cached()
	}
	result := map[string]any{
		"status": level.String(),
	}
	if t.arc != nil {
		stats := t.arc.Stats()
		result["archive"] = map[string]any{
			"queue_depth":    stats.Depth,
			"queue_capacity": stats.Capacity,
			"sync_fallbacks": stats.SyncFallbacks,
			"commit_errors":  stats.CommitErrors,
		}
		snap := t.arc.LatencySnapshot()
		latency := map[string]any{
			"observation_count":        snap.ObservationCount,
			"most_probable_run_length": snap.MostProbableRunLength,
		}
		if snap.LastChangePoint != nil {
			latency["change_point_detected"] = true
		}
		if snap.HasEmpiricalCoverage {
			latency["empirical_coverage"] = snap.EmpiricalCoverage
		}
		if snap.Interval != nil {
			latency["interval_lower"] = snap.Interval.Lower
			latency["interval_upper"] = snap.Interval.Upper
		}
		result["commit_latency"] = latency
	}
	if t.contacts != nil {
		result["contact_enforcement_bypass_total"] = t.contacts.BypassTotal()
	}
	if t.checker != nil {
		result["ready"] = t.checker.IsReady()
	}
	return mcp.JSONResult(result)
}
