// Package products implements the product_bus tool cluster: ensure_product,
// products_link, search_messages_product, fetch_inbox_product, and
// summarize_thread_product — broadcasting search/inbox/thread operations
// across every project linked to a product slug.
package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type ensureProductParams struct {
	ProductSlug string `json:"product_slug"`
}

// EnsureProduct creates (or returns) a product tag grouping several
// projects.
type EnsureProduct struct {
	products *domain.ProductService
}

// NewEnsureProduct builds the ensure_product tool.
func NewEnsureProduct(p *domain.ProductService) *EnsureProduct {
	return &EnsureProduct{products: p}
}

func (t *EnsureProduct) Name() string { return "ensure_product" }

func (t *EnsureProduct) Description() string {
	return "Create a product tag if it doesn't already exist. Products group several projects for cross-project search, inbox, and thread tools."
}

func (t *EnsureProduct) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "product_slug": {"type": "string"}
  },
  "required": ["product_slug"]
}`)
}

func (t *EnsureProduct) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p ensureProductParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	product, err := t.products.EnsureProduct(ctx, p.ProductSlug)
	if err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{
		"product_id":   product.ID,
		"product_slug": product.Slug,
		"created_ts":   product.CreatedTs,
	})
}
