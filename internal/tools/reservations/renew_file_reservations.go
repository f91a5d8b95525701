package reservations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type renewFileReservationsParams struct {
	ProjectID  int64    `json:"project_id"`
	AgentID    int64    `json:"agent_id"`
	Paths      []string `json:"paths,omitempty"`
	TTLSeconds int      `json:"ttl_seconds"`
}

// RenewFileReservations extends the expiry of an agent's matching
// reservations.
type RenewFileReservations struct {
	reservations *domain.ReservationService
}

// NewRenewFileReservations builds the renew_file_reservations tool.
func NewRenewFileReservations(r *domain.ReservationService) *RenewFileReservations {
	return &RenewFileReservations{reservations: r}
}

func (t *RenewFileReservations) Name() string { return "renew_file_reservations" }

func (t *RenewFileReservations) Description() string {
	return "Extend the expiry of an agent's file reservations. Omit paths to renew every reservation the agent holds in the project."
}

func (t *RenewFileReservations) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "paths": {"type": "array", "items": {"type": "string"}},
    "ttl_seconds": {"type": "integer"}
  },
  "required": ["project_id", "agent_id", "ttl_seconds"]
}`)
}

func (t *RenewFileReservations) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p renewFileReservationsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	ttl := time.Duration(p.TTLSeconds) * time.Second
	n, err := t.reservations.RenewFileReservations(ctx, p.ProjectID, p.AgentID, p.Paths, ttl)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"renewed": n})
}
