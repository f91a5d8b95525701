// Package messaging implements the messaging tool cluster: send_message,
// reply_message, fetch_inbox, mark_message_read, and acknowledge_message.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type sendMessageParams struct {
	ProjectID       int64    `json:"project_id"`
	SenderID        int64    `json:"sender_id"`
	To              []string `json:"to,omitempty"`
	Cc              []string `json:"cc,omitempty"`
	Bcc             []string `json:"bcc,omitempty"`
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	ThreadID        string   `json:"thread_id,omitempty"`
	Importance      string   `json:"importance,omitempty"`
	AckRequired     bool     `json:"ack_required,omitempty"`
	AttachmentsJSON string   `json:"attachments_json,omitempty"`
}

func deliveryOutcomesJSON(outcomes []domain.DeliveryOutcome) []map[string]any {
	out := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		entry := map[string]any{"agent": o.AgentName, "kind": o.Kind, "delivered": o.Delivered}
		if !o.Delivered {
			entry["reason"] = o.Reason
		}
		out = append(out, entry)
	}
	return out
}

func sendResultJSON(r *domain.SendResult) map[string]any {
	return map[string]any{
		"message_id": r.Message.ID,
		"thread_id":  r.ThreadID,
		"subject":    r.Message.Subject,
		"created_ts": r.Message.CreatedTs,
		"delivered":  deliveryOutcomesJSON(r.Delivered),
	}
}

// SendMessage sends a new message, optionally starting a new thread.
type SendMessage struct {
	messages *domain.MessagingService
}

// NewSendMessage builds the send_message tool.
func NewSendMessage(m *domain.MessagingService) *SendMessage {
	return &SendMessage{messages: m}
}

func (t *SendMessage) Name() string { return "send_message" }

func (t *SendMessage) Description() string {
	return "Send a message to one or more agents (to/cc/bcc by name). A recipient rejected by contact policy doesn't block delivery to the rest; check the delivered array."
}

func (t *SendMessage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "sender_id": {"type": "integer"},
    "to": {"type": "array", "items": {"type": "string"}},
    "cc": {"type": "array", "items": {"type": "string"}},
    "bcc": {"type": "array", "items": {"type": "string"}},
    "subject": {"type": "string"},
    "body": {"type": "string"},
    "thread_id": {"type": "string", "description": "Omit to start a new thread"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "ack_required": {"type": "boolean"},
    "attachments_json": {"type": "string", "description": "JSON array of attachment descriptors"}
  },
  "required": ["project_id", "sender_id", "subject", "body"]
}`)
}

func (t *SendMessage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p sendMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	result, err := t.messages.SendMessage(ctx, p.ProjectID, p.SenderID, p.To, p.Cc, p.Bcc,
		p.Subject, p.Body, p.ThreadID, p.Importance, p.AckRequired, p.AttachmentsJSON)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(sendResultJSON(result))
}
