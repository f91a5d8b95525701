package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type fetchInboxParams struct {
	ProjectID     int64 `json:"project_id"`
	AgentID       int64 `json:"agent_id"`
	UnreadOnly    bool  `json:"unread_only,omitempty"`
	IncludeBodies bool  `json:"include_bodies,omitempty"`
	Limit         int   `json:"limit,omitempty"`
}

func inboxItemsJSON(items []domain.InboxItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		entry := map[string]any{
			"message_id":   it.Message.ID,
			"thread_id":    it.Message.ThreadID,
			"subject":      it.Message.Subject,
			"importance":   it.Message.Importance,
			"ack_required": it.Message.AckRequired,
			"created_ts":   it.Message.CreatedTs,
			"kind":         it.Kind,
			"read_ts":      it.ReadTs,
			"ack_ts":       it.AckTs,
		}
		if it.Message.Body != "" {
			entry["body"] = it.Message.Body
		}
		out = append(out, entry)
	}
	return out
}

// FetchInbox returns an agent's inbox, newest first.
type FetchInbox struct {
	messages *domain.MessagingService
}

// NewFetchInbox builds the fetch_inbox tool.
func NewFetchInbox(m *domain.MessagingService) *FetchInbox {
	return &FetchInbox{messages: m}
}

func (t *FetchInbox) Name() string { return "fetch_inbox" }

func (t *FetchInbox) Description() string {
	return "Fetch an agent's inbox, newest first. Set include_bodies=true to get full message bodies; otherwise only headers and read/ack state are returned."
}

func (t *FetchInbox) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "agent_id": {"type": "integer"},
    "unread_only": {"type": "boolean"},
    "include_bodies": {"type": "boolean"},
    "limit": {"type": "integer", "description": "Max 500, default 50"}
  },
  "required": ["project_id", "agent_id"]
}`)
}

func (t *FetchInbox) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fetchInboxParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	items, err := t.messages.FetchInbox(ctx, p.ProjectID, p.AgentID, p.UnreadOnly, p.IncludeBodies, p.Limit)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"items": inboxItemsJSON(items)})
}
