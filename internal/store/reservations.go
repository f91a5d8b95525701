package store

import (
	"context"
	"database/sql"

	"github.com/agentmail/agentmail/internal/apperr"
)

// ActiveReservation is a reservation row not yet released or expired.
type ActiveReservation struct {
	ID        int64
	AgentID   int64
	Pattern   string
	Exclusive bool
	Reason    string
	CreatedTs uint64
	ExpiresTs *uint64
}

// NewReservation is the input to ReserveWithCheck.
type NewReservation struct {
	AgentID   int64
	Pattern   string
	Exclusive bool
	Reason    string
	ExpiresTs *uint64
}

func queryActiveReservations(ctx context.Context, conn *sql.Conn, projectID int64, nowUs uint64) ([]ActiveReservation, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, agent_id, pattern, exclusive, reason, created_ts, expires_ts
		FROM reservations
		WHERE project_id = ? AND released_ts IS NULL AND (expires_ts IS NULL OR expires_ts > ?)`,
		projectID, nowUs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveReservation
	for rows.Next() {
		var r ActiveReservation
		var exclusiveInt int
		var expires sql.NullInt64
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Pattern, &exclusiveInt, &r.Reason, &r.CreatedTs, &expires); err != nil {
			return nil, err
		}
		r.Exclusive = exclusiveInt != 0
		if expires.Valid {
			v := uint64(expires.Int64)
			r.ExpiresTs = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListActiveReservations returns the non-released, non-expired reservations
// for a project, for read-only callers (e.g. list_file_reservations).
func (s *Store) ListActiveReservations(ctx context.Context, projectID int64, nowUs uint64) ([]ActiveReservation, error) {
	var out []ActiveReservation
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		found, err := queryActiveReservations(ctx, conn, projectID, nowUs)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		out = found
		return nil
	})
	return out, err
}

// ReserveWithCheck atomically re-lists active reservations for projectID
// and inserts newRes, invoking check against that live set first. check
// should return a domain error (typically ResourceBusy) to veto the insert
// without mutating anything; doing the list+check+insert inside a single
// BEGIN IMMEDIATE transaction closes the race where two concurrent callers
// both observe a conflict-free active set and both insert an overlapping
// exclusive reservation.
func (s *Store) ReserveWithCheck(ctx context.Context, projectID int64, newRes NewReservation, nowUs uint64, check func([]ActiveReservation) error) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		active, err := queryActiveReservations(ctx, conn, projectID, nowUs)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}

		if check != nil {
			if err := check(active); err != nil {
				return err
			}
		}

		var expiresArg interface{}
		if newRes.ExpiresTs != nil {
			expiresArg = *newRes.ExpiresTs
		}
		res, err := conn.ExecContext(ctx,
			`INSERT INTO reservations(project_id, agent_id, pattern, exclusive, reason, created_ts, expires_ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectID, newRes.AgentID, newRes.Pattern, boolToInt(newRes.Exclusive), newRes.Reason, nowUs, expiresArg)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		id, err = res.LastInsertId()
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
	return id, err
}

// ReleaseReservations marks the given reservation ids released, restricted
// to agentID's own reservations. Returns the count actually released.
func (s *Store) ReleaseReservations(ctx context.Context, agentID int64, ids []int64, nowUs uint64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var released int
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		for _, id := range ids {
			res, err := conn.ExecContext(ctx,
				`UPDATE reservations SET released_ts = ? WHERE id = ? AND agent_id = ? AND released_ts IS NULL`,
				nowUs, id, agentID)
			if err != nil {
				return apperr.DatabaseError(err.Error())
			}
			n, _ := res.RowsAffected()
			released += int(n)
		}
		return nil
	})
	return released, err
}

// ForceReleaseReservation releases a reservation regardless of which agent
// holds it, for the maintenance CLI (agentmail-admin) to break a stuck lock
// an agent crashed without releasing. Not reachable from the agent-facing
// tool surface.
func (s *Store) ForceReleaseReservation(ctx context.Context, reservationID int64, nowUs uint64) (bool, error) {
	var released bool
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`UPDATE reservations SET released_ts = ? WHERE id = ? AND released_ts IS NULL`,
			nowUs, reservationID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		n, _ := res.RowsAffected()
		released = n > 0
		return nil
	})
	return released, err
}

// RenewReservations extends expires_ts for the given reservation ids,
// restricted to agentID's own active reservations.
func (s *Store) RenewReservations(ctx context.Context, agentID int64, ids []int64, newExpiresTs uint64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var renewed int
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		for _, id := range ids {
			res, err := conn.ExecContext(ctx,
				`UPDATE reservations SET expires_ts = ? WHERE id = ? AND agent_id = ? AND released_ts IS NULL`,
				newExpiresTs, id, agentID)
			if err != nil {
				return apperr.DatabaseError(err.Error())
			}
			n, _ := res.RowsAffected()
			renewed += int(n)
		}
		return nil
	})
	return renewed, err
}
