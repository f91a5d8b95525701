package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentmail/agentmail/internal/apperr"
)

// ContactLink mirrors one directed row of contact_links. A mutual contact
// is represented as two rows (src->dst and dst->src), matching the
// directed request/respond admission flow.
type ContactLink struct {
	SrcAgentID int64
	DstAgentID int64
	Status     string // domain writes "pending", "approved" or "blocked"
	Reason     string
	UpdatedTs  uint64
}

// GetContactLink returns the directed link from src to dst, if any.
func (s *Store) GetContactLink(ctx context.Context, srcAgentID, dstAgentID int64) (*ContactLink, error) {
	var link *ContactLink
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT src_agent_id, dst_agent_id, status, reason, updated_ts FROM contact_links
			 WHERE src_agent_id = ? AND dst_agent_id = ?`, srcAgentID, dstAgentID)
		l := &ContactLink{}
		if err := row.Scan(&l.SrcAgentID, &l.DstAgentID, &l.Status, &l.Reason, &l.UpdatedTs); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("contact_link", "")
			}
			return apperr.DatabaseError(err.Error())
		}
		link = l
		return nil
	})
	return link, err
}

// UpsertContactLink creates or overwrites the directed link from src to
// dst. Used both for the initial request (status "pending") and for the
// responder's reciprocal row once accepted.
func (s *Store) UpsertContactLink(ctx context.Context, srcAgentID, dstAgentID int64, status, reason string, nowUs uint64) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO contact_links(src_agent_id, dst_agent_id, status, reason, updated_ts)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(src_agent_id, dst_agent_id) DO UPDATE SET status = excluded.status, reason = excluded.reason, updated_ts = excluded.updated_ts`,
			srcAgentID, dstAgentID, status, reason, nowUs)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
}

// ListContacts returns every directed link originating from agentID.
func (s *Store) ListContacts(ctx context.Context, agentID int64) ([]ContactLink, error) {
	var out []ContactLink
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT src_agent_id, dst_agent_id, status, reason, updated_ts FROM contact_links WHERE src_agent_id = ?`,
			agentID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		defer rows.Close()
		for rows.Next() {
			var l ContactLink
			if err := rows.Scan(&l.SrcAgentID, &l.DstAgentID, &l.Status, &l.Reason, &l.UpdatedTs); err != nil {
				return apperr.DatabaseError(err.Error())
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	return out, err
}
