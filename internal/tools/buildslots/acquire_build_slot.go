// Package buildslots implements the build_slots tool cluster:
// acquire_build_slot, renew_build_slot, and release_build_slot.
package buildslots

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type acquireBuildSlotParams struct {
	ProjectID  int64  `json:"project_id"`
	AgentID    int64  `json:"agent_id"`
	SlotName   string `json:"slot_name"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// AcquireBuildSlot grants a named mutual-exclusion slot to an agent, or
// reports ResourceBusy if another agent's hold hasn't expired.
type AcquireBuildSlot struct {
	slots *domain.BuildSlotService
}

// NewAcquireBuildSlot builds the acquire_build_slot tool.
func NewAcquireBuildSlot(s *domain.BuildSlotService) *AcquireBuildSlot {
	return &AcquireBuildSlot{slots: s}
}

func (t *AcquireBuildSlot) Name() string { return "acquire_build_slot" }

func (t *AcquireBuildSlot) Description() string {
	return "Acquire a named mutual-exclusion slot (e.g. a CI run or migration) for ttl_seconds. Fails with RESOURCE_BUSY if another agent currently holds it."
}

func (t *AcquireBuildSlot) InputSchema() json.RawMessage {
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

func (t *AcquireBuildSlot) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p acquireBuildSlotParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	ttl := time.Duration(p.TTLSeconds) * time.Second
	slot, err := t.slots.AcquireBuildSlot(ctx, p.ProjectID, p.AgentID, p.SlotName, ttl)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{
		"slot_name":       slot.SlotName,
		"holder_agent_id": slot.HolderAgentID,
		"acquired_ts":     slot.AcquiredTs,
		"expires_ts":      slot.ExpiresTs,
	})
}
