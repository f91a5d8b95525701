package domain

import (
	"context"
	"strings"

	"github.com/agentmail/agentmail/internal/store"
)

// ArchiveEnqueuer is the write-behind sink for durable message copies
// (inbox/outbox/thread files under the archive root). Defined here rather
// than imported from internal/archive so that internal/domain has no
// dependency on the archive package — internal/archive depends on
// internal/domain's types instead, not the other way around.
type ArchiveEnqueuer interface {
	EnqueueMessage(rec ArchiveMessageRecord)
	EnqueueReservation(rec ArchiveReservationRecord)
	EnqueueAgentProfile(rec ArchiveAgentProfileRecord)
}

// ArchiveMessageRecord is the data an archive sink needs to write a message
// out to every recipient's durable copy.
type ArchiveMessageRecord struct {
	ProjectSlug string
	Message     store.Message
	SenderName  string
	To          []string
	Cc          []string
	Bcc         []string
	Rejected    []string
}

// ArchiveReservationRecord is the data an archive sink needs to project one
// file reservation's current state to its JSON record.
type ArchiveReservationRecord struct {
	ProjectSlug string
	ID          int64
	HolderName  string
	Pattern     string
	Exclusive   bool
	Reason      string
	ExpiresTs   *uint64
	Released    bool
}

// ArchiveAgentProfileRecord is the data an archive sink needs to project an
// agent's identity to its profile record.
type ArchiveAgentProfileRecord struct {
	ProjectSlug       string
	Name              string
	Program           string
	Model             string
	Task              string
	AttachmentsPolicy string
	ContactPolicy     string
	InceptionTs       uint64
	LastActiveTs      uint64
}

// noopArchive discards every record; used when no archive sink is wired
// (e.g. in store-only unit tests).
type noopArchive struct{}

func (noopArchive) EnqueueMessage(ArchiveMessageRecord)           {}
func (noopArchive) EnqueueReservation(ArchiveReservationRecord)   {}
func (noopArchive) EnqueueAgentProfile(ArchiveAgentProfileRecord) {}

// MessagingService implements send/reply/inbox/read/ack against the
// relational store, enforcing contact admission per recipient before
// delivery and fanning out a durable archive record after commit.
type MessagingService struct {
	store    *store.Store
	contacts *ContactService
	archive  ArchiveEnqueuer
}

// NewMessagingService builds a MessagingService. archive may be nil, in
// which case delivered messages are not archived (tests only).
func NewMessagingService(st *store.Store, contacts *ContactService, archive ArchiveEnqueuer) *MessagingService {
	if archive == nil {
		archive = noopArchive{}
	}
	return &MessagingService{store: st, contacts: contacts, archive: archive}
}

// DeliveryOutcome reports, per addressed recipient, whether the message was
// actually delivered or rejected by the recipient's contact policy.
type DeliveryOutcome struct {
	AgentName string
	Kind      string // "to", "cc", "bcc"
	Delivered bool
	Reason    string // set when Delivered is false
}

// SendResult is the result of SendMessage/ReplyMessage: the persisted
// message plus a delivery outcome for every addressed recipient.
type SendResult struct {
	Message   *store.Message
	ThreadID  string
	Delivered []DeliveryOutcome
}

var importanceLevels = map[string]bool{"low": true, "normal": true, "high": true, "urgent": true}

// SendMessage resolves the sender and every recipient, checks contact
// admission per recipient (failing open with a bypass-counter bump on
// transient store errors), persists the message with only the admitted
// recipients attached, and enqueues an archive record. Unknown recipients or
// an unrecognized importance level fail the whole call with InvalidArgument;
// a recipient rejected by contact policy still lets the rest of the send
// proceed (the message exists; that one recipient is not notified).
func (m *MessagingService) SendMessage(ctx context.Context, projectID, senderID int64, to, cc, bcc []string,
	subject, body, threadID, importance string, ackRequired bool, attachmentsJSON string) (*SendResult, error) {

	if importance == "" {
		importance = "normal"
	}
	if !importanceLevels[importance] {
		return nil, InvalidArgument("importance", "must be one of low, normal, high, urgent")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, InvalidArgument("subject", "must not be empty")
	}
	if len(to) == 0 && len(cc) == 0 && len(bcc) == 0 {
		return nil, InvalidArgument("to", "at least one recipient is required")
	}

	sender, err := m.store.GetAgentByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	type resolved struct {
		agent *store.Agent
		kind  string
	}
	var recipients []resolved
	for _, name := range to {
		a, err := m.store.GetAgentByName(ctx, projectID, name)
		if err != nil {
			return nil, InvalidArgument("to", "unknown recipient: "+name)
		}
		recipients = append(recipients, resolved{a, "to"})
	}
	for _, name := range cc {
		a, err := m.store.GetAgentByName(ctx, projectID, name)
		if err != nil {
			return nil, InvalidArgument("cc", "unknown recipient: "+name)
		}
		recipients = append(recipients, resolved{a, "cc"})
	}
	for _, name := range bcc {
		a, err := m.store.GetAgentByName(ctx, projectID, name)
		if err != nil {
			return nil, InvalidArgument("bcc", "unknown recipient: "+name)
		}
		recipients = append(recipients, resolved{a, "bcc"})
	}

	if threadID == "" {
		threadID = newThreadID(m.store.Now())
	}
	if attachmentsJSON == "" {
		attachmentsJSON = "[]"
	}

	newMsg := store.NewMessage{
		ProjectID: projectID, SenderID: senderID, Subject: subject, Body: body,
		ThreadID: threadID, Importance: importance, AckRequired: ackRequired, Attachments: attachmentsJSON,
	}

	outcomes := make([]DeliveryOutcome, 0, len(recipients))
	for _, r := range recipients {
		admitted, reason := m.contacts.admit(ctx, senderID, r.agent.ID)
		if !admitted {
			outcomes = append(outcomes, DeliveryOutcome{AgentName: r.agent.Name, Kind: r.kind, Delivered: false, Reason: reason})
			continue
		}
		switch r.kind {
		case "to":
			newMsg.To = append(newMsg.To, r.agent.ID)
		case "cc":
			newMsg.Cc = append(newMsg.Cc, r.agent.ID)
		case "bcc":
			newMsg.Bcc = append(newMsg.Bcc, r.agent.ID)
		}
		outcomes = append(outcomes, DeliveryOutcome{AgentName: r.agent.Name, Kind: r.kind, Delivered: true})
	}

	msg, err := m.store.InsertMessage(ctx, newMsg)
	if err != nil {
		return nil, err
	}

	rec := ArchiveMessageRecord{Message: *msg, SenderName: sender.Name}
	if proj, pErr := m.store.GetProjectByID(ctx, projectID); pErr == nil {
		rec.ProjectSlug = proj.Slug
	}
	for _, o := range outcomes {
		if !o.Delivered {
			rec.Rejected = append(rec.Rejected, o.AgentName)
			continue
		}
		switch o.Kind {
		case "to":
			rec.To = append(rec.To, o.AgentName)
		case "cc":
			rec.Cc = append(rec.Cc, o.AgentName)
		case "bcc":
			rec.Bcc = append(rec.Bcc, o.AgentName)
		}
	}
	m.archive.EnqueueMessage(rec)

	return &SendResult{Message: msg, ThreadID: threadID, Delivered: outcomes}, nil
}

// ReplyMessage sends a follow-up in inReplyTo's thread, addressed back to
// its sender plus any additional recipients, prefixing the subject with
// "Re: " unless already present.
func (m *MessagingService) ReplyMessage(ctx context.Context, projectID, senderID, inReplyTo int64,
	extraTo, extraCc, extraBcc []string, body, importance string, ackRequired bool) (*SendResult, error) {

	orig, err := m.store.GetMessage(ctx, inReplyTo)
	if err != nil {
		return nil, err
	}
	if orig.ProjectID != projectID {
		return nil, InvalidArgument("in_reply_to", "message belongs to a different project")
	}
	origSender, err := m.store.GetAgentByID(ctx, orig.SenderID)
	if err != nil {
		return nil, err
	}

	to := append([]string{origSender.Name}, extraTo...)
	subject := orig.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	return m.SendMessage(ctx, projectID, senderID, to, extraCc, extraBcc, subject, body, orig.ThreadID, importance, ackRequired, "")
}

// InboxItem is one entry returned by FetchInbox: the message (body omitted
// unless requested) plus this agent's read/ack state.
type InboxItem struct {
	Message store.Message
	Kind    string
	ReadTs  *uint64
	AckTs   *uint64
}

// FetchInbox returns this agent's inbox, newest first. When includeBodies
// is false the Body field is cleared to keep listing calls cheap.
func (m *MessagingService) FetchInbox(ctx context.Context, projectID, agentID int64, unreadOnly, includeBodies bool, limit int) ([]InboxItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := m.store.FetchInbox(ctx, projectID, agentID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	out := make([]InboxItem, 0, len(entries))
	for _, e := range entries {
		item := InboxItem{Message: e.Message, Kind: e.Kind, ReadTs: e.ReadTs, AckTs: e.AckTs}
		if !includeBodies {
			item.Message.Body = ""
		}
		out = append(out, item)
	}
	return out, nil
}

// ListThread returns every message in a thread, oldest first. Recipient
// rows are not joined; callers that need per-recipient state should combine
// this with FetchInbox or GetMessageRecipients.
func (m *MessagingService) ListThread(ctx context.Context, projectID int64, threadID string) ([]store.Message, error) {
	return m.store.ListThread(ctx, projectID, threadID)
}

// GetMessageRecipients returns the recipient list for messageID, with bcc
// rows visible only to the sender and to the bcc'd agent itself — any other
// requester sees only the to/cc rows (invariant 2: BCC privacy).
func (m *MessagingService) GetMessageRecipients(ctx context.Context, messageID, requestingAgentID int64) ([]store.Recipient, error) {
	msg, err := m.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	all, err := m.store.ListRecipients(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if requestingAgentID == msg.SenderID {
		return all, nil
	}
	out := make([]store.Recipient, 0, len(all))
	for _, r := range all {
		if r.Kind == "bcc" && r.AgentID != requestingAgentID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// MarkMessageRead marks messageID read for agentID. Idempotent: a second
// call is a no-op, not an error.
func (m *MessagingService) MarkMessageRead(ctx context.Context, messageID, agentID int64) error {
	return m.store.MarkRead(ctx, messageID, agentID, m.store.Now())
}

// AcknowledgeMessage acknowledges messageID for agentID. Idempotent like
// MarkMessageRead; requires an existing recipient row (NotFound otherwise).
func (m *MessagingService) AcknowledgeMessage(ctx context.Context, messageID, agentID int64) error {
	return m.store.AcknowledgeMessage(ctx, messageID, agentID, m.store.Now())
}

func newThreadID(seedUs uint64) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	n := seedUs
	if n == 0 {
		n = 1
	}
	var b strings.Builder
	for n > 0 {
		b.WriteByte(alphabet[n%uint64(len(alphabet))])
		n /= uint64(len(alphabet))
	}
	return "t-" + reverse(b.String())
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
