package reservations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type listFileReservationsParams struct {
	ProjectID int64 `json:"project_id"`
}

// ListFileReservations returns every active reservation in a project,
// across all agents.
type ListFileReservations struct {
	reservations *domain.ReservationService
}

// NewListFileReservations builds the list_file_reservations tool.
func NewListFileReservations(r *domain.ReservationService) *ListFileReservations {
	return &ListFileReservations{reservations: r}
}

func (t *ListFileReservations) Name() string { return "list_file_reservations" }

func (t *ListFileReservations) Description() string {
	return "List every active file reservation in a project, across all agents."
}

func (t *ListFileReservations) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"}
  },
  "required": ["project_id"]
}`)
}

func (t *ListFileReservations) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p listFileReservationsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	active, err := t.reservations.ListFileReservations(ctx, p.ProjectID)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	out := make([]map[string]any, 0, len(active))
	for _, a := range active {
		out = append(out, activeReservationJSON(a))
	}
	return mcp.JSONResult(map[string]any{"reservations": out})
}
