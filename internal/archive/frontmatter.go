package archive

import (
	"bytes"
	"encoding/json"

	"github.com/agentmail/agentmail/internal/domain"
)

// messageFrontmatter is the JSON block every message archive copy opens
// with, delimited by "---json" / "---". Bcc is only populated on the copy
// that is allowed to see it (the sender's outbox, and the bcc'd agent's own
// inbox).
type messageFrontmatter struct {
	ID          int64    `json:"id"`
	From        string   `json:"from"`
	To          []string `json:"to"`
	Cc          []string `json:"cc"`
	Bcc         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	ThreadID    string   `json:"thread_id,omitempty"`
	Importance  string   `json:"importance"`
	AckRequired bool     `json:"ack_required"`
	CreatedAt   uint64   `json:"created_at"`
}

// renderMessageFile renders one copy of a message archive file. includeBcc
// is true only for the sender's outbox copy and the bcc'd recipient's own
// inbox copy, per spec §4.8's "BCC propagation" rule.
func renderMessageFile(rec domain.ArchiveMessageRecord, includeBcc bool) []byte {
	fm := messageFrontmatter{
		ID:          rec.Message.ID,
		From:        rec.SenderName,
		To:          orEmpty(rec.To),
		Cc:          orEmpty(rec.Cc),
		Subject:     rec.Message.Subject,
		ThreadID:    rec.Message.ThreadID,
		Importance:  rec.Message.Importance,
		AckRequired: rec.Message.AckRequired,
		CreatedAt:   rec.Message.CreatedTs,
	}
	if includeBcc {
		fm.Bcc = orEmpty(rec.Bcc)
	}

	var buf bytes.Buffer
	buf.WriteString("---json\n")
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	_ = enc.Encode(fm) // messageFrontmatter always marshals
	buf.WriteString("---\n\n")
	buf.WriteString(rec.Message.Body)
	buf.WriteString("\n")
	return buf.Bytes()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// reservationRecord is the JSON shape of a file_reservations/{id}.json entry.
type reservationRecord struct {
	ID         int64   `json:"id"`
	Holder     string  `json:"holder"`
	Pattern    string  `json:"pattern"`
	Exclusive  bool    `json:"exclusive"`
	Reason     string  `json:"reason,omitempty"`
	ExpiresTs  *uint64 `json:"expires_ts,omitempty"`
	ReleasedAt *uint64 `json:"released,omitempty"`
}

func renderReservationFile(rec domain.ArchiveReservationRecord, nowUs uint64) []byte {
	r := reservationRecord{
		ID: rec.ID, Holder: rec.HolderName, Pattern: rec.Pattern,
		Exclusive: rec.Exclusive, Reason: rec.Reason, ExpiresTs: rec.ExpiresTs,
	}
	if rec.Released {
		n := nowUs
		r.ReleasedAt = &n
	}
	b, _ := json.MarshalIndent(r, "", "  ") // reservationRecord always marshals
	return append(b, '\n')
}

// profileRecord is the JSON shape of an agents/{name}/profile.json entry.
type profileRecord struct {
	Name              string `json:"name"`
	Program           string `json:"program"`
	Model             string `json:"model"`
	Task              string `json:"task"`
	AttachmentsPolicy string `json:"attachments_policy"`
	ContactPolicy     string `json:"contact_policy"`
	InceptionTs       uint64 `json:"inception_ts"`
	LastActiveTs      uint64 `json:"last_active_ts"`
}

func renderProfileFile(rec domain.ArchiveAgentProfileRecord) []byte {
	p := profileRecord{
		Name: rec.Name, Program: rec.Program, Model: rec.Model, Task: rec.Task,
		AttachmentsPolicy: rec.AttachmentsPolicy, ContactPolicy: rec.ContactPolicy,
		InceptionTs: rec.InceptionTs, LastActiveTs: rec.LastActiveTs,
	}
	b, _ := json.MarshalIndent(p, "", "  ") // profileRecord always marshals
	return append(b, '\n')
}

// writeRequest is one pending filesystem write, produced from a domain
// archive record and consumed by the commit batcher.
type writeRequest struct {
	projectSlug string
	path        string
	contents    []byte
}

// expandMessage fans a single message record out to every file it touches:
// the canonical copy, one inbox copy per non-bcc recipient, one inbox copy
// for the bcc'd recipient (with bcc visible), and the sender's outbox copy
// (with the full bcc list visible).
func expandMessage(layout Layout, rec domain.ArchiveMessageRecord) []writeRequest {
	var writes []writeRequest
	canonical := renderMessageFile(rec, false)
	writes = append(writes, writeRequest{rec.ProjectSlug, layout.MessagePath(rec.ProjectSlug, rec.Message.ID), canonical})

	for _, agent := range rec.To {
		writes = append(writes, writeRequest{rec.ProjectSlug, layout.InboxPath(rec.ProjectSlug, agent, rec.Message.ID), canonical})
	}
	for _, agent := range rec.Cc {
		writes = append(writes, writeRequest{rec.ProjectSlug, layout.InboxPath(rec.ProjectSlug, agent, rec.Message.ID), canonical})
	}
	if len(rec.Bcc) > 0 {
		for _, agent := range rec.Bcc {
			own := rec
			own.Bcc = []string{agent}
			writes = append(writes, writeRequest{rec.ProjectSlug, layout.InboxPath(rec.ProjectSlug, agent, rec.Message.ID), renderMessageFile(own, true)})
		}
		bccCopy := renderMessageFile(rec, true)
		writes = append(writes, writeRequest{rec.ProjectSlug, layout.OutboxPath(rec.ProjectSlug, rec.SenderName, rec.Message.ID), bccCopy})
	} else {
		writes = append(writes, writeRequest{rec.ProjectSlug, layout.OutboxPath(rec.ProjectSlug, rec.SenderName, rec.Message.ID), canonical})
	}
	return writes
}

func expandReservation(layout Layout, rec domain.ArchiveReservationRecord, nowUs uint64) []writeRequest {
	return []writeRequest{{
		projectSlug: rec.ProjectSlug,
		path:        layout.FileReservationPath(rec.ProjectSlug, rec.ID),
		contents:    renderReservationFile(rec, nowUs),
	}}
}

func expandProfile(layout Layout, rec domain.ArchiveAgentProfileRecord) []writeRequest {
	return []writeRequest{{
		projectSlug: rec.ProjectSlug,
		path:        layout.AgentProfilePath(rec.ProjectSlug, rec.Name),
		contents:    renderProfileFile(rec),
	}}
}
