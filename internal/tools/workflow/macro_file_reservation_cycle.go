package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type macroFileReservationCycleParams struct {
	ProjectID  int64    `json:"project_id"`
	AgentID    int64    `json:"agent_id"`
	Paths      []string `json:"paths"`
	Exclusive  bool     `json:"exclusive,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	TTLSeconds int      `json:"ttl_seconds,omitempty"`
}

// MacroFileReservationCycle reserves paths and returns the project's full
// current reservation set in the same call.
type MacroFileReservationCycle struct {
	macros *domain.Macros
}

// NewMacroFileReservationCycle builds the macro_file_reservation_cycle tool.
func NewMacroFileReservationCycle(m *domain.Macros) *MacroFileReservationCycle {
	return &MacroFileReservationCycle{macros: m}
}

func (t *MacroFileReservationCycle) Name() string { return "macro_file_reservation_cycle" }

func (t *MacroFileReservationCycle) Description() string {
	return "Reserve file paths and return the project's full current reservation set in one call, so the caller sees who else holds what without a second list call."
}

func (t *MacroFileReservationCycle) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "paths": {"type": "array", "items": {"type": "string"}},
    "exclusive": {"type": "boolean"},
    "reason": {"type": "string"},
    "ttl_seconds": {"type": "integer"}
  },
  "required": ["project_id", "agent_id", "paths"]
}`)
}

func (t *MacroFileReservationCycle) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p macroFileReservationCycleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	ttl := time.Duration(p.TTLSeconds) * time.Second
	result, err := t.macros.FileReservationCycle(ctx, p.ProjectID, p.AgentID, p.Paths, p.Exclusive, p.Reason, ttl)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}

	granted := make([]map[string]any, 0, len(result.Granted))
	for _, g := range result.Granted {
		granted = append(granted, map[string]any{
			"pattern": g.Pattern, "id": g.ID, "expires_ts": g.ExpiresTs, "renewed": g.Renewed,
		})
	}
	conflicts := make([]map[string]any, 0, len(result.Conflicts))
	for _, c := range result.Conflicts {
		conflicts = append(conflicts, map[string]any{
			"pattern": c.Pattern, "holder_name": c.HolderName, "holder_agent_id": c.HolderAgentID, "expires_ts": c.ExpiresTs,
		})
	}
	allActive := make([]map[string]any, 0, len(result.AllActive))
	for _, a := range result.AllActive {
		allActive = append(allActive, map[string]any{
			"id": a.ID, "agent_id": a.AgentID, "pattern": a.Pattern, "exclusive": a.Exclusive,
			"reason": a.Reason, "created_ts": a.CreatedTs, "expires_ts": a.ExpiresTs,
		})
	}
	return mcp.JSONResult(map[string]any{
		"granted":    granted,
		"conflicts":  conflicts,
		"all_active": allActive,
	})
}
