package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/agentmail/agentmail/internal/apperr"
)

// Agent mirrors the agents table row.
type Agent struct {
	ID                 int64
	ProjectID          int64
	Name               string
	Program            string
	Model              string
	Task               string
	InceptionTs        uint64
	LastActiveTs       uint64
	AttachmentsPolicy  string
	ContactPolicy      string
}

func agentCacheKey(projectID int64, name string) string {
	return strconv.FormatInt(projectID, 10) + ":" + name
}

func scanAgent(row interface{ Scan(dest ...interface{}) error }) (*Agent, error) {
	a := &Agent{}
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Program, &a.Model, &a.Task,
		&a.InceptionTs, &a.LastActiveTs, &a.AttachmentsPolicy, &a.ContactPolicy); err != nil {
		return nil, err
	}
	return a, nil
}

const agentColumns = `id, project_id, name, program, model, task, inception_ts, last_active_ts, attachments_policy, contact_policy`

// RegisterAgent creates a new agent identity within projectID, or returns
// apperr.Duplicate if the name is already taken in that project.
func (s *Store) RegisterAgent(ctx context.Context, projectID int64, name, program, model, task string) (*Agent, error) {
	var a *Agent
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT `+agentColumns+` FROM agents WHERE project_id = ? AND name = ?`, projectID, name)
		if _, err := scanAgent(row); err == nil {
			return apperr.Duplicate("agent", name)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return apperr.DatabaseError(err.Error())
		}

		now := s.nowUs()
		res, err := conn.ExecContext(ctx,
			`INSERT INTO agents(project_id, name, program, model, task, inception_ts, last_active_ts, attachments_policy, contact_policy)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 'auto', 'auto')`,
			projectID, name, program, model, task, now, now)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		a = &Agent{
			ID: id, ProjectID: projectID, Name: name, Program: program, Model: model, Task: task,
			InceptionTs: now, LastActiveTs: now, AttachmentsPolicy: "auto", ContactPolicy: "auto",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.agentCache.Put(agentCacheKey(projectID, name), a)
	return a, nil
}

// GetAgentByName looks up an agent by (projectID, name).
func (s *Store) GetAgentByName(ctx context.Context, projectID int64, name string) (*Agent, error) {
	key := agentCacheKey(projectID, name)
	if cached, ok := s.agentCache.Get(key); ok {
		return cached.(*Agent), nil
	}

	var a *Agent
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT `+agentColumns+` FROM agents WHERE project_id = ? AND name = ?`, projectID, name)
		found, err := scanAgent(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("agent", name)
			}
			return apperr.DatabaseError(err.Error())
		}
		a = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.agentCache.Put(key, a)
	return a, nil
}

// GetAgentByID looks up an agent by primary key, bypassing the name cache.
func (s *Store) GetAgentByID(ctx context.Context, agentID int64) (*Agent, error) {
	var a *Agent
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, agentID)
		found, err := scanAgent(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("agent", strconv.FormatInt(agentID, 10))
			}
			return apperr.DatabaseError(err.Error())
		}
		a = found
		return nil
	})
	return a, err
}

// TouchLastActive updates an agent's last_active_ts and invalidates its
// cache entry so subsequent reads see the fresh timestamp.
func (s *Store) TouchLastActive(ctx context.Context, agentID int64, nowUs uint64) error {
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `UPDATE agents SET last_active_ts = ? WHERE id = ?`, nowUs, agentID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}
	a, lookupErr := s.GetAgentByID(ctx, agentID)
	if lookupErr == nil {
		s.agentCache.Put(agentCacheKey(a.ProjectID, a.Name), a)
	}
	return nil
}

// SetContactPolicy updates an agent's default contact admission policy
// ("auto", "contacts_only", "block_all").
func (s *Store) SetContactPolicy(ctx context.Context, agentID int64, policy string) error {
	a, err := s.GetAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	err = s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `UPDATE agents SET contact_policy = ? WHERE id = ?`, policy, agentID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.ContactPolicy = policy
	s.agentCache.Put(agentCacheKey(a.ProjectID, a.Name), a)
	return nil
}
