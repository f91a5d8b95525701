// Package search implements the search tool cluster: search_messages and
// summarize_thread.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	domsearch "github.com/agentmail/agentmail/internal/search"
	"github.com/agentmail/agentmail/internal/mcp"
)

type searchMessagesParams struct {
	ProjectID  int64  `json:"project_id,omitempty"`
	Query      string `json:"query"`
	Sender     string `json:"sender,omitempty"`
	ThreadID   string `json:"thread_id,omitempty"`
	Importance string `json:"importance,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func phasesJSON(phases []domsearch.SearchPhase) []map[string]any {
	out := make([]map[string]any, 0, len(phases))
	for _, ph := range phases {
		docs := make([]map[string]any, 0, len(ph.Results))
		for _, d := range ph.Results {
			docs = append(docs, map[string]any{
				"message_id": d.MessageID,
				"thread_id":  d.ThreadID,
				"sender":     d.Sender,
				"subject":    d.Subject,
				"importance": d.Importance,
				"created_ts": d.CreatedTs,
			})
		}
		out = append(out, map[string]any{"phase": ph.Phase, "results": docs})
	}
	return out
}

// SearchMessages runs a two-tier (lexical, then quality-refined if
// available) search over the accumulated message archive.
type SearchMessages struct {
	svc *domsearch.Service
}

// NewSearchMessages builds the search_messages tool.
func NewSearchMessages(svc *domsearch.Service) *SearchMessages {
	return &SearchMessages{svc: svc}
}

func (t *SearchMessages) Name() string { return "search_messages" }

func (t *SearchMessages) Description() string {
	return "Search accumulated message history. Runs a fast lexical phase always, then a quality-refined phase if a quality embedder is configured; check availability for which tiers ran."
}

func (t *SearchMessages) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "project_id": {"type": "integer"},
    "query": {"type": "string"},
    "sender": {"type": "string"},
    "thread_id": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "limit": {"type": "integer", "description": "Max 200, default 20"}
  },
  "required": ["query"]
}`)
}

func (t *SearchMessages) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p searchMessagesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	filter := domsearch.SearchFilter{
		Sender: p.Sender, ProjectID: p.ProjectID, ThreadID: p.ThreadID,
		Importance: domsearch.ImportanceFilter(p.Importance),
	}
	availability, phases, err := t.svc.Search(ctx, p.Query, filter, p.Limit)
	if err != nil {
		return mcp.DomainErrorResult(domain.DatabaseError(err.Error())), nil
	}
	return mcp.JSONResult(map[string]any{
		"availability": availability.String(),
		"phases":       phasesJSON(phases),
	})
}
