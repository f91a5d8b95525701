package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type summarizeThreadProductParams struct {
	ProductSlug string `json:"product_slug"`
	ThreadID    string `json:"thread_id"`
}

// SummarizeThreadProduct summarizes a thread_id across every project
// linked to a product, in case the same thread was forwarded or mirrored
// into more than one.
type SummarizeThreadProduct struct {
	products *domain.ProductService
	messages *domain.MessagingService
}

// NewSummarizeThreadProduct builds the summarize_thread_product tool.
func NewSummarizeThreadProduct(p *domain.ProductService, m *domain.MessagingService) *SummarizeThreadProduct {
	return &SummarizeThreadProduct{products: p, messages: m}
}

var importanceRank = map[string]int{"low": 0, "normal": 1, "high": 2, "urgent": 3}

func (t *SummarizeThreadProduct) Name() string { return "summarize_thread_product" }

func (t *SummarizeThreadProduct) Description() string {
	return "Summarize a thread_id across every project linked to a product: message count, participants, and highest importance, per project that has any messages in it."
}

func (t *SummarizeThreadProduct) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "product_slug": {"type": "string"},
    "thread_id": {"type": "string"}
  },
  "required": ["product_slug", "thread_id"]
}`)
}

func (t *SummarizeThreadProduct) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p summarizeThreadProductParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	projectIDs, err := t.products.ProjectsForProduct(ctx, p.ProductSlug)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}

	var perProject []map[string]any
	for _, projectID := range projectIDs {
		msgs, err := t.messages.ListThread(ctx, projectID, p.ThreadID)
		if err != nil {
			return mcp.DomainErrorResult(err), nil
		}
		if len(msgs) == 0 {
			continue
		}
		senderSeen := map[int64]bool{}
		var participants []int64
		highest := "low"
		for _, m := range msgs {
			if !senderSeen[m.SenderID] {
				senderSeen[m.SenderID] = true
				participants = append(participants, m.SenderID)
			}
			if importanceRank[m.Importance] > importanceRank[highest] {
				highest = m.Importance
			}
		}
		perProject = append(perProject, map[string]any{
			"project_id":         projectID,
			"message_count":      len(msgs),
			"participant_agents": participants,
			"highest_importance": highest,
		})
	}
	return mcp.JSONResult(map[string]any{"thread_id": p.ThreadID, "projects": perProject})
}
