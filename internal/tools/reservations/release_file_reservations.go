package reservations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type releaseFileReservationsParams struct {
	ProjectID int64    `json:"project_id"`
	AgentID   int64    `json:"agent_id"`
	Paths     []string `json:"paths,omitempty"`
}

// ReleaseFileReservations releases an agent's reservations. An empty paths
// list releases every active reservation the agent holds in the project.
type ReleaseFileReservations struct {
	reservations *domain.ReservationService
}

// NewReleaseFileReservations builds the release_file_reservations tool.
func NewReleaseFileReservations(r *domain.ReservationService) *ReleaseFileReservations {
	return &ReleaseFileReservations{reservations: r}
}

func (t *ReleaseFileReservations) Name() string { return "release_file_reservations" }

func (t *ReleaseFileReservations) Description() string {
	return "Release an agent's file reservations. Omit paths to release every reservation the agent holds in the project."
}

func (t *ReleaseFileReservations) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "paths": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["project_id", "agent_id"]
}`)
}

func (t *ReleaseFileReservations) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p releaseFileReservationsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	n, err := t.reservations.ReleaseFileReservations(ctx, p.ProjectID, p.AgentID, p.Paths)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"released": n})
}
