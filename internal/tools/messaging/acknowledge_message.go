package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

// AcknowledgeMessage acknowledges a message for an agent. Idempotent;
// requires an existing recipient row.
type AcknowledgeMessage struct {
	messages *domain.MessagingService
}

// NewAcknowledgeMessage builds the acknowledge_message tool.
func NewAcknowledgeMessage(m *domain.MessagingService) *AcknowledgeMessage {
	return &AcknowledgeMessage{messages: m}
}

func (t *AcknowledgeMessage) Name() string { return "acknowledge_message" }

func (t *AcknowledgeMessage) Description() string {
	return "Acknowledge a message (ack_required=true messages expect this) for an agent. Idempotent; fails if the agent isn't a recipient."
}

func (t *AcknowledgeMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "message_id": {"type": "integer"},
    "agent_id": {"type": "integer"}
  },
  "required": ["message_id", "agent_id"]
}`)
}

func (t *AcknowledgeMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p messageAgentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if err := t.messages.AcknowledgeMessage(ctx, p.MessageID, p.AgentID); err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true})
}
