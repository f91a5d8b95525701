package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestContactAdmissionFailsOpenAndCountsBypass exercises spec §4.4/§9's
// fail-open path: a transient store error during the admission check must
// not block delivery, and must be observable via BypassTotal (surfaced by
// health_check as contact_enforcement_bypass_total).
func TestContactAdmissionFailsOpenAndCountsBypass(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	project, err := ts.store.EnsureProject(ctx, "contacts-bypass", "/tmp/contacts-bypass")
	require.NoError(t, err)
	sender := ts.registerAgent(t, project.ID, "Sender")
	recipient := ts.registerAgent(t, project.ID, "Recipient")

	require.Equal(t, uint64(0), ts.contacts.BypassTotal())

	// A closed store turns any subsequent lookup into a database error
	// rather than a clean NotFound, simulating the transient failure §4.4
	// says must fail open instead of blocking the message.
	ts.store.Close()

	admitted, reason := ts.contacts.admit(ctx, sender.ID, recipient.ID)
	require.True(t, admitted, "admission must fail open on a transient store error, reason=%q", reason)
	require.Equal(t, uint64(1), ts.contacts.BypassTotal())

	// A second failure increments the counter again.
	ts.contacts.admit(ctx, sender.ID, recipient.ID)
	require.Equal(t, uint64(2), ts.contacts.BypassTotal())
}
