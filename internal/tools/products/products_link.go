package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/mcp"
)

type productsLinkParams struct {
	ProductSlug string `json:"product_slug"`
	ProjectID   int64  `json:"project_id"`
}

// ProductsLink adds a project to a product's membership. Idempotent.
type ProductsLink struct {
	products *domain.ProductService
}

// NewProductsLink builds the products_link tool.
func NewProductsLink(p *domain.ProductService) *ProductsLink {
	return &ProductsLink{products: p}
}

func (t *ProductsLink) Name() string { return "products_link" }

func (t *ProductsLink) Description() string {
	return "Link a project to a product (creating the product if absent). A project may belong to more than one product."
}

func (t *ProductsLink) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "product_slug": {"type": "string"},
    "project_id": {"type": "integer"}
  },
  "required": ["product_slug", "project_id"]
}`)
}

func (t *ProductsLink) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p productsLinkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if err := t.products.LinkProject(ctx, p.ProductSlug, p.ProjectID); err != nil {
		return mcp.DomainErrorResult(err), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true})
}
