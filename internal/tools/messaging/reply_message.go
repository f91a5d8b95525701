package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type replyMessageParams struct {
	ProjectID   int64    `json:"project_id"`
	SenderID    int64    `json:"sender_id"`
	InReplyTo   int64    `json:"in_reply_to"`
	ExtraTo     []string `json:"extra_to,omitempty"`
	ExtraCc     []string `json:"extra_cc,omitempty"`
	ExtraBcc    []string `json:"extra_bcc,omitempty"`
	Body        string   `json:"body"`
	Importance  string   `json:"importance,omitempty"`
	AckRequired bool     `json:"ack_required,omitempty"`
}

// ReplyMessage sends a follow-up in an existing thread, addressed back to
// the original sender plus any extra recipients.
type ReplyMessage struct {
	messages *domain.MessagingService
}

// NewReplyMessage builds the reply_message tool.
func NewReplyMessage(m *domain.MessagingService) *ReplyMessage {
	return &ReplyMessage{messages: m}
}

func (t *ReplyMessage) Name() string { return "reply_message" }

func (t *ReplyMessage) Description() string {
	return "Reply to an existing message, addressed back to its sender plus any extra recipients, within the same thread."
}

func (t *ReplyMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "sender_id": {"type": "integer"},
    "in_reply_to": {"type": "integer", "description": "id of the message being replied to"},
    "extra_to": {"type": "array", "items": {"type": "string"}},
    "extra_cc": {"type": "array", "items": {"type": "string"}},
    "extra_bcc": {"type": "array", "items": {"type": "string"}},
    "body": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "ack_required": {"type": "boolean"}
  },
  "required": ["project_id", "sender_id", "in_reply_to", "body"]
}`)
}

func (t *ReplyMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p replyMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	result, err := t.messages.ReplyMessage(ctx, p.ProjectID, p.SenderID, p.InReplyTo,
		p.ExtraTo, p.ExtraCc, p.ExtraBcc, p.Body, p.Importance, p.AckRequired)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(sendResultJSON(result))
}
