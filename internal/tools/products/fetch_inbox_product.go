package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
	"github.com/agentmail/agentmail/internal/store"
)

type fetchInboxProductParams struct {
	ProductSlug   string `json:"product_slug"`
	AgentName     string `json:"agent_name"`
	UnreadOnly    bool   `json:"unread_only,omitempty"`
	IncludeBodies bool   `json:"include_bodies,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// FetchInboxProduct fetches an agent's inbox across every project linked
// to a product, resolving the agent by name independently in each project
// it exists in (an agent only appears in projects where it has registered).
type FetchInboxProduct struct {
	products *domain.ProductService
	messages *domain.MessagingService
	store    *store.Store
}

// NewFetchInboxProduct builds the fetch_inbox_product tool.
func NewFetchInboxProduct(p *domain.ProductService, m *domain.MessagingService, st *store.Store) *FetchInboxProduct {
	return &FetchInboxProduct{products: p, messages: m, store: st}
}

func (t *FetchInboxProduct) Name() string { return "fetch_inbox_product" }

func (t *FetchInboxProduct) Description() string {
	return "Fetch an agent's inbox across every project linked to a product, by agent name. Projects the agent hasn't registered in are skipped."
}

func (t *FetchInboxProduct) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "product_slug": {"type": "string"},
    "agent_name": {"type": "string"},
    "unread_only": {"type": "boolean"},
    "include_bodies": {"type": "boolean"},
    "limit": {"type": "integer", "description": "Per-project cap, max 500, default 50"}
  },
  "required": ["product_slug", "agent_name"]
}`)
}

func (t *FetchInboxProduct) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p fetchInboxProductParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	projectIDs, err := t.products.ProjectsForProduct(ctx, p.ProductSlug)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}

	var perProject []map[string]any
	for _, projectID := range projectIDs {
		agent, err := t.store.GetAgentByName(ctx, projectID, p.AgentName)
		if err != nil {
			if domain.AsError(err).Kind == domain.KindNotFound {
				continue
			}
			return mcp.DomainErrorResult(err), nil
		}
		items, err := t.messages.FetchInbox(ctx, projectID, agent.ID, p.UnreadOnly, p.IncludeBodies, p.Limit)
		if err != nil {
			return mcp.DomainErrorResult(err), nil
		}
		entries := make([]map[string]any, 0, len(items))
		for _, it := range items {
			entry := map[string]any{
				"message_id": it.Message.ID, "thread_id": it.Message.ThreadID, "subject": it.Message.Subject,
				"importance": it.Message.Importance, "created_ts": it.Message.CreatedTs, "kind": it.Kind,
			}
			if it.Message.Body != "" {
				entry["body"] = it.Message.Body
			}
			entries = append(entries, entry)
		}
		perProject = append(perProject, map[string]any{
			"project_id": projectID,
			"agent_id":   agent.ID,
			"items":      entries,
		})
	}
	return mcp.JSONResult(map[string]any{"projects": perProject})
}
