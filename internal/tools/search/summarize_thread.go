package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type summarizeThreadParams struct {
	ProjectID int64  `json:"project_id"`
	ThreadID  string `json:"thread_id"`
}

// SummarizeThread returns every message in a thread, oldest first, plus a
// lightweight roll-up (message count, participants, importance ceiling) —
// a cheap substitute for a model-generated summary that a caller can
// still feed to its own summarizer.
type SummarizeThread struct {
	messages *domain.MessagingService
}

// NewSummarizeThread builds the summarize_thread tool.
func NewSummarizeThread(m *domain.MessagingService) *SummarizeThread {
	return &SummarizeThread{messages: m}
}

func (t *SummarizeThread) Name() string { return "summarize_thread" }

func (t *SummarizeThread) Description() string {
	return "Return every message in a thread, oldest first, plus a message count, participant list, and highest importance seen."
}

func (t *SummarizeThread) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "thread_id": {"type": "string"}
  },
  "required": ["project_id", "thread_id"]
}`)
}

var importanceRank = map[string]int{"low": 0, "normal": 1, "high": 2, "urgent": 3}

func (t *SummarizeThread) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p summarizeThreadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	msgs, err := t.messages.ListThread(ctx, p.ProjectID, p.ThreadID)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}

	senderSeen := map[int64]bool{}
	var participants []int64
	highest := "low"
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		if !senderSeen[m.SenderID] {
			senderSeen[m.SenderID] = true
			participants = append(participants, m.SenderID)
		}
		if importanceRank[m.Importance] > importanceRank[highest] {
			highest = m.Importance
		}
		out = append(out, map[string]any{
			"message_id":   m.ID,
			"sender_id":    m.SenderID,
			"subject":      m.Subject,
			"body":         m.Body,
			"importance":   m.Importance,
			"ack_required": m.AckRequired,
			"created_ts":   m.CreatedTs,
		})
	}
	return mcp.JSONResult(map[string]any{
		"thread_id":          p.ThreadID,
		"message_count":      len(msgs),
		"participant_agents": participants,
		"highest_importance": highest,
		"messages":           out,
	})
}
