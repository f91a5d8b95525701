package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentmail/agentmail/internal/apperr"
)

// Message mirrors the messages table row.
type Message struct {
	ID          int64
	ProjectID   int64
	SenderID    int64
	Subject     string
	Body        string
	ThreadID    string
	Importance  string
	AckRequired bool
	CreatedTs   uint64
	Attachments string // json array
}

// Recipient mirrors one row of the recipients join table.
type Recipient struct {
	MessageID int64
	AgentID   int64
	Kind      string // "to", "cc", or "bcc"
	ReadTs    *uint64
	AckTs     *uint64
}

// NewMessage is the set of fields required to persist an outgoing message
// and its recipient fan-out in one transaction. Bcc recipients get their own
// recipient row (so fetch_inbox surfaces the message to them) but are never
// included in any recipient listing visible to other parties.
type NewMessage struct {
	ProjectID   int64
	SenderID    int64
	Subject     string
	Body        string
	ThreadID    string
	Importance  string
	AckRequired bool
	Attachments string
	To          []int64
	Cc          []int64
	Bcc         []int64
}

// InsertMessage persists a message and its recipient rows atomically.
func (s *Store) InsertMessage(ctx context.Context, m NewMessage) (*Message, error) {
	var out *Message
	err := s.withTx(ctx, func(conn *sql.Conn) error {
		now := s.nowUs()
		res, err := conn.ExecContext(ctx,
			`INSERT INTO messages(project_id, sender_id, subject, body, thread_id, importance, ack_required, created_ts, attachments)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ProjectID, m.SenderID, m.Subject, m.Body, m.ThreadID, m.Importance, boolToInt(m.AckRequired), now, m.Attachments)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}

		for _, agentID := range m.To {
			if _, err := conn.ExecContext(ctx,
				`INSERT INTO recipients(message_id, agent_id, kind) VALUES (?, ?, 'to')`, id, agentID); err != nil {
				return apperr.DatabaseError(err.Error())
			}
		}
		for _, agentID := range m.Cc {
			if _, err := conn.ExecContext(ctx,
				`INSERT INTO recipients(message_id, agent_id, kind) VALUES (?, ?, 'cc')`, id, agentID); err != nil {
				return apperr.DatabaseError(err.Error())
			}
		}
		for _, agentID := range m.Bcc {
			if _, err := conn.ExecContext(ctx,
				`INSERT INTO recipients(message_id, agent_id, kind) VALUES (?, ?, 'bcc')`, id, agentID); err != nil {
				return apperr.DatabaseError(err.Error())
			}
		}

		out = &Message{
			ID: id, ProjectID: m.ProjectID, SenderID: m.SenderID, Subject: m.Subject, Body: m.Body,
			ThreadID: m.ThreadID, Importance: m.Importance, AckRequired: m.AckRequired,
			CreatedTs: now, Attachments: m.Attachments,
		}
		return nil
	})
	return out, err
}

const messageColumns = `id, project_id, sender_id, subject, body, thread_id, importance, ack_required, created_ts, attachments`

func scanMessage(row interface{ Scan(dest ...interface{}) error }) (*Message, error) {
	m := &Message{}
	var ackRequired int
	if err := row.Scan(&m.ID, &m.ProjectID, &m.SenderID, &m.Subject, &m.Body, &m.ThreadID,
		&m.Importance, &ackRequired, &m.CreatedTs, &m.Attachments); err != nil {
		return nil, err
	}
	m.AckRequired = ackRequired != 0
	return m, nil
}

// GetMessage fetches a single message by id.
func (s *Store) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	var m *Message
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, messageID)
		found, err := scanMessage(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("message", "")
			}
			return apperr.DatabaseError(err.Error())
		}
		m = found
		return nil
	})
	return m, err
}

// InboxEntry is one row of a fetch_inbox result: the message plus this
// recipient's read/ack state.
type InboxEntry struct {
	Message Message
	Kind    string
	ReadTs  *uint64
	AckTs   *uint64
}

// FetchInbox returns messages addressed to agentID, newest first, honoring
// unreadOnly and a result limit.
func (s *Store) FetchInbox(ctx context.Context, projectID, agentID int64, unreadOnly bool, limit int) ([]InboxEntry, error) {
	var out []InboxEntry
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		query := `
			SELECT m.` + messageColumnsAliased("m") + `, r.kind, r.read_ts, r.ack_ts
			FROM recipients r
			JOIN messages m ON m.id = r.message_id
			WHERE r.agent_id = ? AND m.project_id = ?`
		args := []interface{}{agentID, projectID}
		if unreadOnly {
			query += ` AND r.read_ts IS NULL`
		}
		query += ` ORDER BY m.created_ts DESC LIMIT ?`
		args = append(args, limit)

		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		defer rows.Close()
		for rows.Next() {
			var e InboxEntry
			var ackRequired int
			var readTs, ackTs sql.NullInt64
			if err := rows.Scan(&e.Message.ID, &e.Message.ProjectID, &e.Message.SenderID, &e.Message.Subject,
				&e.Message.Body, &e.Message.ThreadID, &e.Message.Importance, &ackRequired, &e.Message.CreatedTs,
				&e.Message.Attachments, &e.Kind, &readTs, &ackTs); err != nil {
				return apperr.DatabaseError(err.Error())
			}
			e.Message.AckRequired = ackRequired != 0
			if readTs.Valid {
				v := uint64(readTs.Int64)
				e.ReadTs = &v
			}
			if ackTs.Valid {
				v := uint64(ackTs.Int64)
				e.AckTs = &v
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func messageColumnsAliased(alias string) string {
	return alias + `.id, ` + alias + `.project_id, ` + alias + `.sender_id, ` + alias + `.subject, ` + alias + `.body, ` +
		alias + `.thread_id, ` + alias + `.importance, ` + alias + `.ack_required, ` + alias + `.created_ts, ` + alias + `.attachments`
}

// ListThread returns every message in a thread, oldest first.
func (s *Store) ListThread(ctx context.Context, projectID int64, threadID string) ([]Message, error) {
	var out []Message
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE project_id = ? AND thread_id = ? ORDER BY created_ts ASC`,
			projectID, threadID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return apperr.DatabaseError(err.Error())
			}
			out = append(out, *m)
		}
		return rows.Err()
	})
	return out, err
}

// RecentMessages returns the most recently created limit messages across
// every project, newest first — the population the archive consistency
// sampler draws from.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	var out []Message
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT `+messageColumns+` FROM messages ORDER BY created_ts DESC, id DESC LIMIT ?`, limit)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return apperr.DatabaseError(err.Error())
			}
			out = append(out, *m)
		}
		return rows.Err()
	})
	return out, err
}

// MarkRead sets read_ts for (messageID, agentID) if not already set.
func (s *Store) MarkRead(ctx context.Context, messageID, agentID int64, nowUs uint64) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`UPDATE recipients SET read_ts = ? WHERE message_id = ? AND agent_id = ? AND read_ts IS NULL`,
			nowUs, messageID, agentID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := s.recipientExists(ctx, conn, messageID, agentID); err != nil {
				return err
			}
		}
		return nil
	})
}

// AcknowledgeMessage sets ack_ts for (messageID, agentID) if not already
// set, returning apperr.NotFound when agentID has no recipient row for the
// message. The message's ack_required flag is not checked.
func (s *Store) AcknowledgeMessage(ctx context.Context, messageID, agentID int64, nowUs uint64) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		exists, err := s.recipientExists(ctx, conn, messageID, agentID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("recipient", "")
		}
		if _, err := conn.ExecContext(ctx,
			`UPDATE recipients SET ack_ts = ? WHERE message_id = ? AND agent_id = ? AND ack_ts IS NULL`,
			nowUs, messageID, agentID); err != nil {
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
}

// ListRecipients returns every recipient row for messageID, all kinds
// included. Callers that expose this to a party other than the sender must
// filter bcc rows themselves (see internal/domain's privacy-aware wrapper).
func (s *Store) ListRecipients(ctx context.Context, messageID int64) ([]Recipient, error) {
	var out []Recipient
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT message_id, agent_id, kind, read_ts, ack_ts FROM recipients WHERE message_id = ?`, messageID)
		if err != nil {
			return apperr.DatabaseError(err.Error())
		}
		defer rows.Close()
		for rows.Next() {
			var r Recipient
			var readTs, ackTs sql.NullInt64
			if err := rows.Scan(&r.MessageID, &r.AgentID, &r.Kind, &readTs, &ackTs); err != nil {
				return apperr.DatabaseError(err.Error())
			}
			if readTs.Valid {
				v := uint64(readTs.Int64)
				r.ReadTs = &v
			}
			if ackTs.Valid {
				v := uint64(ackTs.Int64)
				r.AckTs = &v
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) recipientExists(ctx context.Context, conn *sql.Conn, messageID, agentID int64) (bool, error) {
	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipients WHERE message_id = ? AND agent_id = ?`, messageID, agentID).Scan(&count); err != nil {
		return false, apperr.DatabaseError(err.Error())
	}
	return count > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
