// Package archive implements the git-backed, content-addressed on-disk
// projection of the mailbox: one canonical file per message/reservation/
// agent profile, fed by a bounded write-behind queue so bursts of domain
// writes never block on filesystem or git latency.
package archive

import (
	"fmt"
	"path/filepath"
)

// Layout resolves the deterministic on-disk paths under storage_root. The
// shape is fixed by the wire contract (consumed by export tooling and the
// consistency sampler), never by configuration.
type Layout struct {
	Root string
}

// NewLayout builds a Layout rooted at root.
func NewLayout(root string) Layout { return Layout{Root: root} }

func (l Layout) projectDir(slug string) string {
	return filepath.Join(l.Root, "projects", slug)
}

// MessagePath is the canonical copy of a message, independent of recipient.
func (l Layout) MessagePath(slug string, messageID int64) string {
	return filepath.Join(l.projectDir(slug), "messages", fmt.Sprintf("%d.md", messageID))
}

// InboxPath is a recipient's link copy of a delivered message.
func (l Layout) InboxPath(slug, agent string, messageID int64) string {
	return filepath.Join(l.projectDir(slug), "inbox", agent, fmt.Sprintf("%d.md", messageID))
}

// OutboxPath is the sender's copy, the only copy that lists every bcc
// recipient (a bcc recipient's own inbox copy lists only that recipient).
func (l Layout) OutboxPath(slug, agent string, messageID int64) string {
	return filepath.Join(l.projectDir(slug), "outbox", agent, fmt.Sprintf("%d.md", messageID))
}

// FileReservationPath is a reservation's JSON record.
func (l Layout) FileReservationPath(slug string, reservationID int64) string {
	return filepath.Join(l.projectDir(slug), "file_reservations", fmt.Sprintf("%d.json", reservationID))
}

// AgentProfilePath is an agent's profile record.
func (l Layout) AgentProfilePath(slug, agent string) string {
	return filepath.Join(l.projectDir(slug), "agents", agent, "profile.json")
}

// GitAttributesPath is the single .gitattributes file at storage_root.
func (l Layout) GitAttributesPath() string {
	return filepath.Join(l.Root, ".gitattributes")
}

// gitAttributesContents is written once at archive initialization; markdown
// and JSON archive artifacts are text, never subject to line-ending or LFS
// mangling.
const gitAttributesContents = "*.md text eol=lf\n*.json text eol=lf\n"
