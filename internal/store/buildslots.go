package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentmail/agentmail/internal/apperr"
)

// BuildSlot mirrors the build_slots table row: one row per (project,
// slot_name) while held, deleted on release.
type BuildSlot struct {
	ProjectID     int64
	SlotName      string
	HolderAgentID int64
	AcquiredTs    uint64
	ExpiresTs     uint64
}

// AcquireBuildSlot atomically checks for a live holder and inserts the new
// one if free or expired, inside a single BEGIN IMMEDIATE transaction.
// Returns apperr.ResourceBusy if another agent currently holds the slot.
func (s *Store) AcquireBuildSlot(ctx context.Context, projectID int64, slotName string, agentID int64, nowUs, expiresTs uint64) (*BuildSlot, error) {
	var slot *BuildSlot
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT project_id, slot_name, holder_agent_id, acquired_ts, expires_ts
			 FROM build_slots WHERE project_id = ? AND slot_name = ?`, projectID, slotName)
		var existing BuildSlot
		err := row.Scan(&existing.ProjectID, &existing.SlotName, &existing.HolderAgentID,
			&existing.AcquiredTs, &existing.ExpiresTs)
		switch {
		case err == nil:
			if existing.ExpiresTs > nowUs && existing.HolderAgentID != agentID {
				return apperr.ResourceBusy("build slot held by another agent")
			}
			if _, err := conn.ExecContext(ctx,
				`UPDATE build_slots SET holder_agent_id = ?, acquired_ts = ?, expires_ts = ? WHERE project_id = ? AND slot_name = ?`,
				agentID, nowUs, expiresTs, projectID, slotName); err != nil {
				return apperr.DatabaseError(err.Error())
			}
		case errors.Is(err, sql.ErrNoRows):
			if _, err := conn.ExecContext(ctx,
				`INSERT INTO build_slots(project_id, slot_name, holder_agent_id, acquired_ts, expires_ts) VALUES (?, ?, ?, ?, ?)`,
				projectID, slotName, agentID, nowUs, expiresTs); err != nil {
				return apperr.DatabaseError(err.Error())
			}
		default:
			return apperr.DatabaseError(err.Error())
		}
		slot = &BuildSlot{ProjectID: projectID, SlotName: slotName, HolderAgentID: agentID, AcquiredTs: nowUs, ExpiresTs: expiresTs}
		return nil
	})
	return slot, err
}

// RenewBuildSlot extends expires_ts for a slot currently held by agentID.
func (s *Store) RenewBuildSlot(ctx context.Context, projectID int64, slotName string, agentID int64, newExpiresTs uint64) error {
	return s.withTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`UPDATE build_slots SET expires_ts = ? WHERE project_id = ? AND slot_name = ? AND holder_agent_id = ?`,
			newExpiresTs, projectID, slotName, agentID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("build_slot", slotName)
		}
		return nil
	})
}

// ReleaseBuildSlot deletes a slot held by agentID.
func (s *Store) ReleaseBuildSlot(ctx context.Context, projectID int64, slotName string, agentID int64) error {
	return s.withTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM build_slots WHERE project_id = ? AND slot_name = ? AND holder_agent_id = ?`,
			projectID, slotName, agentID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("build_slot", slotName)
		}
		return nil
	})
}

// GetBuildSlot returns the current holder of a slot, if any.
func (s *Store) GetBuildSlot(ctx context.Context, projectID int64, slotName string) (*BuildSlot, error) {
	var slot *BuildSlot
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT project_id, slot_name, holder_agent_id, acquired_ts, expires_ts
			 FROM build_slots WHERE project_id = ? AND slot_name = ?`, projectID, slotName)
		var b BuildSlot
		if err := row.Scan(&b.ProjectID, &b.SlotName, &b.HolderAgentID, &b.AcquiredTs, &b.ExpiresTs); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("build_slot", slotName)
			}
			return apperr.DatabaseError(err.Error())
		}
		slot = &b
		return nil
	})
	return slot, err
}
