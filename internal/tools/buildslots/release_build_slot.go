package buildslots

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type releaseBuildSlotParams struct {
	ProjectID int64  `json:"project_id"`
	AgentID   int64  `json:"agent_id"`
	SlotName  string `json:"slot_name"`
}

// ReleaseBuildSlot releases an agent's hold on a build slot. NotFound if
// the agent isn't the current holder.
type ReleaseBuildSlot struct {
	slots *domain.BuildSlotService
}

// NewReleaseBuildSlot builds the release_build_slot tool.
func NewReleaseBuildSlot(s *domain.BuildSlotService) *ReleaseBuildSlot {
	return &ReleaseBuildSlot{slots: s}
}

func (t *ReleaseBuildSlot) Name() string { return "release_build_slot" }

func (t *ReleaseBuildSlot) Description() string {
	return "Release an agent's hold on a build slot. Fails with NOT_FOUND if the agent isn't the current holder."
}

func (t *ReleaseBuildSlot) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "slot_name": {"type": "string"}
  },
  "required": ["project_id", "agent_id", "slot_name"]
}`)
}

func (t *ReleaseBuildSlot) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p releaseBuildSlotParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if err := t.slots.ReleaseBuildSlot(ctx, p.ProjectID, p.AgentID, p.SlotName); err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true})
}
