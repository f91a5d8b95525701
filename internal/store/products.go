package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentmail/agentmail/internal/apperr"
)

// Product mirrors the products table row.
type Product struct {
	ID        int64
	Slug      string
	CreatedTs uint64
}

// EnsureProduct returns the existing product for slug, creating it if
// absent (mirrors EnsureProject's idempotent-under-race shape).
func (s *Store) EnsureProduct(ctx context.Context, slug string) (*Product, error) {
	var p *Product
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT id, slug, created_ts FROM products WHERE slug = ?`, slug)
		existing := &Product{}
		err := row.Scan(&existing.ID, &existing.Slug, &existing.CreatedTs)
		if err == nil {
			p = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return apperr.DatabaseError(err.Error())
		}

		now := s.nowUs()
		res, err := conn.ExecContext(ctx, `INSERT INTO products(slug, created_ts) VALUES (?, ?)`, slug, now)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		p = &Product{ID: id, Slug: slug, CreatedTs: now}
		return nil
	})
	return p, err
}

// LinkProduct creates a many-to-many product<->project association,
// idempotent under re-linking (Open Question #2: many-to-many semantics).
func (s *Store) LinkProduct(ctx context.Context, productID, projectID int64) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO product_links(product_id, project_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			productID, projectID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
}

// ProjectsForProduct lists every project id linked to a product.
func (s *Store) ProjectsForProduct(ctx context.Context, productID int64) ([]int64, error) {
	var out []int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT project_id FROM product_links WHERE product_id = ?`, productID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return apperr.DatabaseError(err.Error())
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	return out, err
}
