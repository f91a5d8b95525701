package domain

import (
	"context"

	"github.com/agentmail/agentmail/internal/store"
)

// ProductService implements the product bus: a many-to-many tag grouping
// several projects under one product slug, so search and broadcast tools
// can address "every project in product X" (Open Question 2: many-to-many,
// not a single owning product per project).
type ProductService struct {
	store *store.Store
}

// NewProductService builds a ProductService.
func NewProductService(st *store.Store) *ProductService {
	return &ProductService{store: st}
}

// EnsureProduct creates productSlug if it doesn't already exist, and
// returns it either way (idempotent, safe under a concurrent race).
func (p *ProductService) EnsureProduct(ctx context.Context, productSlug string) (*store.Product, error) {
	if productSlug == "" {
		return nil, InvalidArgument("product_slug", "must not be empty")
	}
	return p.store.EnsureProduct(ctx, productSlug)
}

// LinkProject adds projectID to productSlug's membership. Idempotent: an
// already-linked pair is a no-op.
func (p *ProductService) LinkProject(ctx context.Context, productSlug string, projectID int64) error {
	product, err := p.EnsureProduct(ctx, productSlug)
	if err != nil {
		return err
	}
	return p.store.LinkProduct(ctx, product.ID, projectID)
}

// ProjectsForProduct returns every project id linked to productSlug.
func (p *ProductService) ProjectsForProduct(ctx context.Context, productSlug string) ([]int64, error) {
	product, err := p.store.EnsureProduct(ctx, productSlug)
	if err != nil {
		return nil, err
	}
	return p.store.ProjectsForProduct(ctx, product.ID)
}
