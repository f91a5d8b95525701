package domain

import (
	"context"
	"time"

	"github.com/agentmail/agentmail/internal/store"
)

// Macros bundles the four workflow_macros tools: small, commonly-needed
// sequences across the other services, composed here so a calling agent
// spends one round trip instead of three or four.
type Macros struct {
	store        *store.Store
	messages     *MessagingService
	contacts     *ContactService
	reservations *ReservationService
}

// NewMacros builds a Macros bundle from already-constructed services.
func NewMacros(st *store.Store, messages *MessagingService, contacts *ContactService, reservations *ReservationService) *Macros {
	return &Macros{store: st, messages: messages, contacts: contacts, reservations: reservations}
}

// StartSessionResult is the outcome of macro_start_session.
type StartSessionResult struct {
	Project *store.Project
	Agent   *store.Agent
	Inbox   []InboxItem
}

// StartSession ensures the project and agent identity exist, then returns
// the agent's current unread inbox in one call — the first thing a newly
// started agent needs.
func (m *Macros) StartSession(ctx context.Context, projectSlug, humanKey, agentName, program, model, task string) (*StartSessionResult, error) {
	project, err := m.store.EnsureProject(ctx, projectSlug, humanKey)
	if err != nil {
		return nil, err
	}
	agent, err := m.store.GetAgentByName(ctx, project.ID, agentName)
	if err != nil {
		if AsError(err).Kind != KindNotFound {
			return nil, err
		}
		agent, err = m.store.RegisterAgent(ctx, project.ID, agentName, program, model, task)
		if err != nil {
			return nil, err
		}
	} else {
		if err := m.store.TouchLastActive(ctx, agent.ID, m.store.Now()); err != nil {
			return nil, err
		}
	}
	inbox, err := m.messages.FetchInbox(ctx, project.ID, agent.ID, true, false, 50)
	if err != nil {
		return nil, err
	}
	return &StartSessionResult{Project: project, Agent: agent, Inbox: inbox}, nil
}

// PrepareThread sends the first message of a new thread and returns the
// thread id the caller should use for every follow-up reply_message call.
func (m *Macros) PrepareThread(ctx context.Context, projectID, senderID int64, to, cc []string, subject, body, importance string) (*SendResult, error) {
	return m.messages.SendMessage(ctx, projectID, senderID, to, cc, nil, subject, body, "", importance, false, "")
}

// FileReservationCycle reserves paths and, in the same call, returns the
// project's full current reservation set — so the caller can see at a
// glance who else holds what, without a second list_file_reservations
// round trip.
type FileReservationCycleResult struct {
	*ReserveResult
	AllActive []store.ActiveReservation
}

func (m *Macros) FileReservationCycle(ctx context.Context, projectID, agentID int64, paths []string, exclusive bool, reason string, ttl time.Duration) (*FileReservationCycleResult, error) {
	reserveResult, err := m.reservations.ReservePaths(ctx, projectID, agentID, paths, exclusive, reason, ttl)
	if err != nil {
		return nil, err
	}
	active, err := m.reservations.ListFileReservations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &FileReservationCycleResult{ReserveResult: reserveResult, AllActive: active}, nil
}

// ContactHandshakeResult is the outcome of macro_contact_handshake.
type ContactHandshakeResult struct {
	Link          *store.ContactLink
	ExistingLinks []store.ContactLink
}

// ContactHandshake issues a request_contact call from srcAgentID to
// dstAgentID and returns both the resulting link and srcAgentID's full
// contact list, so the caller can see where this request landed relative
// to its other pending/approved/blocked links.
func (m *Macros) ContactHandshake(ctx context.Context, srcAgentID, dstAgentID int64, reason string) (*ContactHandshakeResult, error) {
	link, err := m.contacts.RequestContact(ctx, srcAgentID, dstAgentID, reason)
	if err != nil {
		return nil, err
	}
	all, err := m.contacts.ListContacts(ctx, srcAgentID)
	if err != nil {
		return nil, err
	}
	return &ContactHandshakeResult{Link: link, ExistingLinks: all}, nil
}
