package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentmail/agentmail/internal/apperr"
)

// Project mirrors the projects table row.
type Project struct {
	ID        int64
	Slug      string
	HumanKey  string
	CreatedTs uint64
}

func queryProjectBySlug(ctx context.Context, conn *sql.Conn, slug string) (*Project, error) {
	row := conn.QueryRowContext(ctx,
		`SELECT id, slug, human_key, created_ts FROM projects WHERE slug = ?`, slug)
	p := &Project{}
	if err := row.Scan(&p.ID, &p.Slug, &p.HumanKey, &p.CreatedTs); err != nil {
		return nil, err
	}
	return p, nil
}

// EnsureProject returns the project for slug, creating it with humanKey if
// absent. A concurrent loser of the UNIQUE(slug) race falls back to a
// lookup rather than surfacing a spurious Duplicate error.
func (s *Store) EnsureProject(ctx context.Context, slug, humanKey string) (*Project, error) {
	if cached, ok := s.projectCache.Get(slug); ok {
		return cached.(*Project), nil
	}

	var p *Project
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		existing, err := queryProjectBySlug(ctx, conn, slug)
		if err == nil {
			p = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return apperr.DatabaseError(err.Error())
		}

		now := s.nowUs()
		res, err := conn.ExecContext(ctx,
			`INSERT INTO projects(slug, human_key, created_ts) VALUES (?, ?, ?)`,
			slug, humanKey, now)
		if err != nil {
			if existing, lookupErr := queryProjectBySlug(ctx, conn, slug); lookupErr == nil {
				p = existing
				return nil
			}
			return apperr.DatabaseError(err.Error())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		p = &Project{ID: id, Slug: slug, HumanKey: humanKey, CreatedTs: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.projectCache.Put(slug, p)
	return p, nil
}

// GetProjectByID looks up a project by primary key.
func (s *Store) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	var p *Project
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT id, slug, human_key, created_ts FROM projects WHERE id = ?`, id)
		found := &Project{}
		if scanErr := row.Scan(&found.ID, &found.Slug, &found.HumanKey, &found.CreatedTs); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return apperr.NotFound("project", "")
			}
			return apperr.DatabaseError(scanErr.Error())
		}
		p = found
		return nil
	})
	return p, err
}

// GetProjectBySlug looks up a project, returning apperr.NotFound if absent.
func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	if cached, ok := s.projectCache.Get(slug); ok {
		return cached.(*Project), nil
	}

	var p *Project
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		found, err := queryProjectBySlug(ctx, conn, slug)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("project", slug)
			}
			return apperr.DatabaseError(err.Error())
		}
		p = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.projectCache.Put(slug, p)
	return p, nil
}
