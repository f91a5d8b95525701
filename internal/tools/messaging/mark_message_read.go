package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type messageAgentParams struct {
	MessageID int64 `json:"message_id"`
	AgentID   int64 `json:"agent_id"`
}

// MarkMessageRead marks a message read for an agent. Idempotent.
type MarkMessageRead struct {
	messages *domain.MessagingService
}

// NewMarkMessageRead builds the mark_message_read tool.
func NewMarkMessageRead(m *domain.MessagingService) *MarkMessageRead {
	return &MarkMessageRead{messages: m}
}

func (t *MarkMessageRead) Name() string { return "mark_message_read" }

func (t *MarkMessageRead) Description() string {
	return "Mark a message read for an agent. Idempotent — marking an already-read message is a no-op."
}

func (t *MarkMessageRead) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "message_id": {"type": "integer"},
    "agent_id": {"type": "integer"}
  },
  "required": ["message_id", "agent_id"]
}`)
}

func (t *MarkMessageRead) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p messageAgentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if err := t.messages.MarkMessageRead(ctx, p.MessageID, p.AgentID); err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true})
}
