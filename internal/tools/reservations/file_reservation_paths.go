// Package reservations implements the file_reservations tool cluster:
// file_reservation_paths, release_file_reservations,
// renew_file_reservations, and list_file_reservations.
package reservations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
	"github.com/agentmail/agentmail/internal/store"
)

func activeReservationJSON(a store.ActiveReservation) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"agent_id":   a.AgentID,
		"pattern":    a.Pattern,
		"exclusive":  a.Exclusive,
		"reason":     a.Reason,
		"created_ts": a.CreatedTs,
		"expires_ts": a.ExpiresTs,
	}
}

type fileReservationPathsParams struct {
	ProjectID  int64    `json:"project_id"`
	AgentID    int64    `json:"agent_id"`
	Paths      []string `json:"paths"`
	Exclusive  bool     `json:"exclusive,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	TTLSeconds int      `json:"ttl_seconds,omitempty"`
}

// FileReservationPaths reserves one or more path patterns for exclusive or
// shared use within a project.
type FileReservationPaths struct {
	reservations *domain.ReservationService
}

// NewFileReservationPaths builds the file_reservation_paths tool.
func NewFileReservationPaths(r *domain.ReservationService) *FileReservationPaths {
	return &FileReservationPaths{reservations: r}
}

func (t *FileReservationPaths) Name() string { return "file_reservation_paths" }

func (t *FileReservationPaths) Description() string {
	return "Reserve one or more file path patterns, exclusively or shared, for a TTL. Each pattern succeeds, renews, or conflicts independently — check both granted and conflicts in the result."
}

func (t *FileReservationPaths) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "paths": {"type": "array", "items": {"type": "string"}, "description": "Glob path patterns"},
    "exclusive": {"type": "boolean", "description": "Default false (shared); a shared request still conflicts with another agent's exclusive reservation"},
    "reason": {"type": "string"},
    "ttl_seconds": {"type": "integer", "description": "0 means no expiry"}
  },
  "required": ["project_id", "agent_id", "paths"]
}`)
}

func (t *FileReservationPaths) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fileReservationPathsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	ttl := time.Duration(p.TTLSeconds) * time.Second
	result, err := t.reservations.ReservePaths(ctx, p.ProjectID, p.AgentID, p.Paths, p.Exclusive, p.Reason, ttl)
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
	return mcp.JSONResult(map[string]any{"granted": granted, "conflicts": conflicts})
}
