package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type macroPrepareThreadParams struct {
	ProjectID  int64    `json:"project_id"`
	SenderID   int64    `json:"sender_id"`
	To         []string `json:"to,omitempty"`
	Cc         []string `json:"cc,omitempty"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Importance string   `json:"importance,omitempty"`
}

// MacroPrepareThread sends the first message of a new thread and returns
// the thread id for subsequent reply_message calls.
type MacroPrepareThread struct {
	macros *domain.Macros
}

// NewMacroPrepareThread builds the macro_prepare_thread tool.
func NewMacroPrepareThread(m *domain.Macros) *MacroPrepareThread {
	return &MacroPrepareThread{macros: m}
}

func (t *MacroPrepareThread) Name() string { return "macro_prepare_thread" }

func (t *MacroPrepareThread) Description() string {
	return "Send the first message of a new thread and return its thread_id for subsequent reply_message calls."
}

func (t *MacroPrepareThread) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "sender_id": {"type": "integer"},
    "to": {"type": "array", "items": {"type": "string"}},
    "cc": {"type": "array", "items": {"type": "string"}},
    "subject": {"type": "string"},
    "body": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]}
  },
  "required": ["project_id", "sender_id", "subject", "body"]
}`)
}

func (t *MacroPrepareThread) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p macroPrepareThreadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	result, err := t.macros.PrepareThread(ctx, p.ProjectID, p.SenderID, p.To, p.Cc, p.Subject, p.Body, p.Importance)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{
		"message_id": result.Message.ID,
		"thread_id":  result.ThreadID,
	})
}
