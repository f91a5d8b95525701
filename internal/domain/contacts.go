package domain

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/agentmail/agentmail/internal/store"
)

// Contact admission states, per the state machine in spec §4.4: a
// directed pair (src, dst) starts pending on first request, moves to
// approved/blocked on the destination's response, and a fresh request from
// blocked resets the pair back to pending (the recovery path the diagram's
// "request" arrow out of "blocked" describes).
const (
	ContactPending  = "pending"
	ContactApproved = "approved"
	ContactBlocked  = "blocked"
)

// Contact admission policies an agent can set for itself.
const (
	PolicyAuto         = "auto"          // admit every sender unconditionally
	PolicyContactsOnly = "contacts_only" // admit only senders with an approved inbound link
	PolicyBlockAll     = "block_all"     // admit nobody; request_contact is the only path in
)

var validContactPolicies = map[string]bool{PolicyAuto: true, PolicyContactsOnly: true, PolicyBlockAll: true}

// ContactService implements the contact admission state machine and the
// per-recipient policy check messaging consults before delivery.
type ContactService struct {
	store       *store.Store
	bypassTotal atomic.Uint64
	logger      *slog.Logger
}

// NewContactService builds a ContactService. logger may be nil, in which
// case slog.Default() is used.
func NewContactService(st *store.Store, logger *slog.Logger) *ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{store: st, logger: logger}
}

// BypassTotal returns how many times a transient store error caused
// admission to fail open, for the contact_enforcement_bypass_total metric.
func (c *ContactService) BypassTotal() uint64 { return c.bypassTotal.Load() }

// admit decides whether a message from srcAgentID may be delivered to
// dstAgentID, per dstAgentID's contact policy. On a transient store error
// while evaluating policy or looking up a link, admission fails open (the
// message still delivers) and the bypass counter is bumped — spec §4.4
// chooses availability over strict enforcement for this path.
func (c *ContactService) admit(ctx context.Context, srcAgentID, dstAgentID int64) (admitted bool, reason string) {
	if srcAgentID == dstAgentID {
		return true, ""
	}
	dst, err := c.store.GetAgentByID(ctx, dstAgentID)
	if err != nil {
		de := AsError(err)
		if de.Kind == KindNotFound {
			return false, "recipient does not exist"
		}
		c.failOpen(dstAgentID, err)
		return true, ""
	}

	switch dst.ContactPolicy {
	case PolicyAuto, "":
		return true, ""
	case PolicyBlockAll:
		return false, "recipient's contact policy is block_all"
	case PolicyContactsOnly:
		link, err := c.store.GetContactLink(ctx, srcAgentID, dstAgentID)
		if err != nil {
			de := AsError(err)
			if de.Kind == KindNotFound {
				return false, "no approved contact link; send request_contact first"
			}
			c.failOpen(dstAgentID, err)
			return true, ""
		}
		if link.Status != ContactApproved {
			return false, "contact link is " + link.Status + ", not approved"
		}
		return true, ""
	default:
		// Unrecognized policy value: treat like auto rather than reject
		// traffic outright for a value that predates a policy rename.
		return true, ""
	}
}

func (c *ContactService) failOpen(dstAgentID int64, err error) {
	c.bypassTotal.Add(1)
	c.logger.Warn("contact admission check failed open",
		"dst_agent_id", dstAgentID, "error", err)
}

// RequestContact creates or refreshes a directed contact request from
// srcAgentID to dstAgentID. A new pair starts pending. An existing pending
// or approved pair keeps its status (only the reason is refreshed); an
// existing blocked pair resets to pending, giving the destination agent a
// chance to reconsider.
func (c *ContactService) RequestContact(ctx context.Context, srcAgentID, dstAgentID int64, reason string) (*store.ContactLink, error) {
	if srcAgentID == dstAgentID {
		return nil, InvalidArgument("dst_agent_id", "an agent cannot request contact with itself")
	}
	now := c.store.Now()
	existing, err := c.store.GetContactLink(ctx, srcAgentID, dstAgentID)
	status := ContactPending
	if err == nil {
		switch existing.Status {
		case ContactPending, ContactApproved:
			status = existing.Status
		case ContactBlocked:
			status = ContactPending
		default:
			status = existing.Status
		}
	} else if AsError(err).Kind != KindNotFound {
		return nil, err
	}
	if err := c.store.UpsertContactLink(ctx, srcAgentID, dstAgentID, status, reason, now); err != nil {
		return nil, err
	}
	return c.store.GetContactLink(ctx, srcAgentID, dstAgentID)
}

// RespondContact answers a pending inbound request from srcAgentID to
// respondingAgentID, moving it to approved (accept=true) or blocked
// (accept=false). The link must exist and be pending; responding to a
// link that doesn't exist or isn't pending is InvalidArgument.
func (c *ContactService) RespondContact(ctx context.Context, respondingAgentID, srcAgentID int64, accept bool, reason string) (*store.ContactLink, error) {
	link, err := c.store.GetContactLink(ctx, srcAgentID, respondingAgentID)
	if err != nil {
		if AsError(err).Kind == KindNotFound {
			return nil, InvalidArgument("src_agent_id", "no pending contact request from this agent")
		}
		return nil, err
	}
	if link.Status != ContactPending {
		return nil, InvalidArgument("src_agent_id", "contact request is "+link.Status+", not pending")
	}
	status := ContactBlocked
	if accept {
		status = ContactApproved
	}
	if err := c.store.UpsertContactLink(ctx, srcAgentID, respondingAgentID, status, reason, c.store.Now()); err != nil {
		return nil, err
	}
	return c.store.GetContactLink(ctx, srcAgentID, respondingAgentID)
}

// ListContacts returns every outbound link agentID holds (pairs where it is
// the requesting side).
func (c *ContactService) ListContacts(ctx context.Context, agentID int64) ([]store.ContactLink, error) {
	return c.store.ListContacts(ctx, agentID)
}

// SetContactPolicy updates agentID's default admission policy.
func (c *ContactService) SetContactPolicy(ctx context.Context, agentID int64, policy string) error {
	if !validContactPolicies[policy] {
		return InvalidArgument("policy", "must be one of auto, contacts_only, block_all")
	}
	return c.store.SetContactPolicy(ctx, agentID, policy)
}
