package buildslots

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type renewBuildSlotParams struct {
	ProjectID  int64  `json:"project_id"`
	AgentID    int64  `json:"agent_id"`
	SlotName   string `json:"slot_name"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// RenewBuildSlot extends an agent's hold on a build slot. NotFound if the
// agent isn't the current holder.
type RenewBuildSlot struct {
	slots *domain.BuildSlotService
}

// NewRenewBuildSlot builds the renew_build_slot tool.
func NewRenewBuildSlot(s *domain.BuildSlotService) *RenewBuildSlot {
	return &RenewBuildSlot{slots: s}
}

func (t *RenewBuildSlot) Name() string { return "renew_build_slot" }

func (t *RenewBuildSlot) Description() string {
	return "Extend an agent's hold on a build slot by ttl_seconds from now. Fails with NOT_FOUND if the agent isn't the current holder."
}

func (t *RenewBuildSlot) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "slot_name": {"type": "string"},
    "ttl_seconds": {"type": "integer", "description": "Default 600 (10 minutes)"}
  },
  "required": ["project_id", "agent_id", "slot_name"]
}`)
}

func (t *RenewBuildSlot) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p renewBuildSlotParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	ttl := time.Duration(p.TTLSeconds) * time.Second
	if err := t.slots.RenewBuildSlot(ctx, p.ProjectID, p.AgentID, p.SlotName, ttl); err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true})
}
