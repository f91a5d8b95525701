package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	domsearch "github.com/agentmail/agentmail/internal/search"
	"github.com/agentmail/agentmail/internal/mcp"
)

type searchMessagesProductParams struct {
	ProductSlug string `json:"product_slug"`
	Query       string `json:"query"`
	Importance  string `json:"importance,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// SearchMessagesProduct runs search_messages across every project linked
// to a product, merging results phase-by-phase.
type SearchMessagesProduct struct {
	products *domain.ProductService
	svc      *domsearch.Service
}

// NewSearchMessagesProduct builds the search_messages_product tool.
func NewSearchMessagesProduct(p *domain.ProductService, svc *domsearch.Service) *SearchMessagesProduct {
	return &SearchMessagesProduct{products: p, svc: svc}
}

func (t *SearchMessagesProduct) Name() string { return "search_messages_product" }

func (t *SearchMessagesProduct) Description() string {
	return "Search accumulated message history across every project linked to a product, merging the fast/final phases from each project."
}

func (t *SearchMessagesProduct) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "product_slug": {"type": "string"},
    "query": {"type": "string"},
    "importance": {"type": "string", "enum": ["low", "normal", "high", "urgent"]},
    "limit": {"type": "integer", "description": "Per-project cap, max 200, default 20"}
  },
  "required": ["product_slug", "query"]
}`)
}

// availabilityRank orders Full best, None worst, so merging across
// projects keeps the most favorable tier that actually served a result.
func availabilityRank(a domsearch.TwoTierAvailability) int {
	switch a {
	case domsearch.Full:
		return 3
	case domsearch.FastOnly:
		return 2
	case domsearch.QualityOnly:
		return 1
	default:
		return 0
	}
}

func (t *SearchMessagesProduct) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p searchMessagesProductParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	projectIDs, err := t.products.ProjectsForProduct(ctx, p.ProductSlug)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}

	merged := map[string][]domsearch.Document{}
	var order []string
	bestAvailability := domsearch.None
	for _, projectID := range projectIDs {
		filter := domsearch.SearchFilter{ProjectID: projectID, Importance: domsearch.ImportanceFilter(p.Importance)}
		availability, phases, err := t.svc.Search(ctx, p.Query, filter, p.Limit)
		if err != nil {
			return mcp.DomainErrorResult(domain.DatabaseError(err.Error())), nil
		}
		if availabilityRank(availability) > availabilityRank(bestAvailability) {
			bestAvailability = availability
		}
		for _, ph := range phases {
			if _, ok := merged[ph.Phase]; !ok {
				order = append(order, ph.Phase)
			}
			merged[ph.Phase] = append(merged[ph.Phase], ph.Results...)
		}
	}

	out := make([]map[string]any, 0, len(order))
	for _, phase := range order {
		docs := make([]map[string]any, 0, len(merged[phase]))
		for _, d := range merged[phase] {
			docs = append(docs, map[string]any{
				"message_id": d.MessageID, "project_id": d.ProjectID, "thread_id": d.ThreadID,
				"sender": d.Sender, "subject": d.Subject, "importance": d.Importance, "created_ts": d.CreatedTs,
			})
		}
		out = append(out, map[string]any{"phase": phase, "results": docs})
	}
	return mcp.JSONResult(map[string]any{
		"availability":  bestAvailability.String(),
		"projects_searched": len(projectIDs),
		"phases":        out,
	})
}
