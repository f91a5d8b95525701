package domain

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentmail/agentmail/internal/pattern"
	"github.com/agentmail/agentmail/internal/store"
	"github.com/agentmail/agentmail/internal/testutil"
)

// testStack bundles a temp-file store plus every domain service wired
// together the way cmd/agentmaild does it, for scenario/invariant tests
// that span more than one service.
type testStack struct {
	store        *store.Store
	messages     *MessagingService
	contacts     *ContactService
	reservations *ReservationService
	identity     *IdentityService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	cfg := testutil.DefaultHarnessConfig()
	cfg.TestName = t.Name()
	h := testutil.NewHarness(cfg)
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("reproduce with: %s", h.Repro.ReproCommand())
		}
	})
	st, err := store.Open(context.Background(), store.Config{
		Path:  filepath.Join(t.TempDir(), "agentmail.db"),
		NowUs: h.Clock.NowUsFunc(),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	contacts := NewContactService(st, nil)
	messages := NewMessagingService(st, contacts, nil)
	reservations := NewReservationService(st, nil)
	identity := NewIdentityService(st, nil)
	return &testStack{store: st, messages: messages, contacts: contacts, reservations: reservations, identity: identity}
}

func (ts *testStack) registerAgent(t *testing.T, projectID int64, name string) *store.Agent {
	t.Helper()
	a, err := ts.store.RegisterAgent(context.Background(), projectID, name, "claude-code", "sonnet", "coordination testing")
	if err != nil {
		t.Fatalf("RegisterAgent(%s): %v", name, err)
	}
	return a
}

// TestScenarioS1DeliveryAndPrivacy is spec §8 S1: a bcc recipient is
// delivered the message and sees it in their own inbox, but does not
// appear in the recipient list any other agent (including the non-bcc
// recipient) can see.
func TestScenarioS1DeliveryAndPrivacy(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	project, err := ts.store.EnsureProject(ctx, "s1", "/tmp/s1")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	redFox := ts.registerAgent(t, project.ID, "RedFox")
	blueLake := ts.registerAgent(t, project.ID, "BlueLake")
	goldPeak := ts.registerAgent(t, project.ID, "GoldPeak")

	result, err := ts.messages.SendMessage(ctx, project.ID, redFox.ID,
		[]string{"BlueLake"}, nil, []string{"GoldPeak"}, "X", "hi", "", "normal", false, "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	blueInbox, err := ts.messages.FetchInbox(ctx, project.ID, blueLake.ID, false, true, 10)
	if err != nil {
		t.Fatalf("FetchInbox(BlueLake): %v", err)
	}
	if len(blueInbox) != 1 || blueInbox[0].Message.ID != result.Message.ID {
		t.Fatalf("BlueLake inbox = %+v, want exactly the one message", blueInbox)
	}

	goldInbox, err := ts.messages.FetchInbox(ctx, project.ID, goldPeak.ID, false, true, 10)
	if err != nil {
		t.Fatalf("FetchInbox(GoldPeak): %v", err)
	}
	if len(goldInbox) != 1 {
		t.Fatalf("GoldPeak inbox = %+v, want the bcc'd message delivered", goldInbox)
	}

	recipientsForBlue, err := ts.messages.GetMessageRecipients(ctx, result.Message.ID, blueLake.ID)
	if err != nil {
		t.Fatalf("GetMessageRecipients(as BlueLake): %v", err)
	}
	for _, r := range recipientsForBlue {
		if r.AgentID == goldPeak.ID {
			t.Fatalf("BlueLake's view of the recipient list must not surface the bcc'd GoldPeak")
		}
	}

	recipientsForGold, err := ts.messages.GetMessageRecipients(ctx, result.Message.ID, goldPeak.ID)
	if err != nil {
		t.Fatalf("GetMessageRecipients(as GoldPeak): %v", err)
	}
	sawSelf := false
	for _, r := range recipientsForGold {
		if r.AgentID == goldPeak.ID {
			sawSelf = true
		}
	}
	if !sawSelf {
		t.Fatal("GoldPeak must see its own bcc recipient row")
	}
}

// TestScenarioS2ReservationConflict is spec §8 S2.
func TestScenarioS2ReservationConflict(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	project, _ := ts.store.EnsureProject(ctx, "s2", "/tmp/s2")
	redFox := ts.registerAgent(t, project.ID, "RedFox")
	blueLake := ts.registerAgent(t, project.ID, "BlueLake")

	first, err := ts.reservations.ReservePaths(ctx, project.ID, redFox.ID, []string{"src/critical.rs"}, true, "", 0)
	if err != nil {
		t.Fatalf("first ReservePaths: %v", err)
	}
	if len(first.Granted) != 1 || len(first.Conflicts) != 0 {
		t.Fatalf("expected a clean grant, got %+v", first)
	}

	second, err := ts.reservations.ReservePaths(ctx, project.ID, blueLake.ID, []string{"src/critical.rs"}, true, "", 0)
	if err != nil {
		t.Fatalf("second ReservePaths: %v", err)
	}
	if len(second.Granted) != 0 {
		t.Fatalf("expected granted=[], got %+v", second.Granted)
	}
	if len(second.Conflicts) != 1 || second.Conflicts[0].Pattern != "src/critical.rs" || second.Conflicts[0].HolderName != "RedFox" {
		t.Fatalf("expected one conflict held by RedFox, got %+v", second.Conflicts)
	}

	released, err := ts.reservations.ReleaseFileReservations(ctx, project.ID, redFox.ID, []string{"src/critical.rs"})
	if err != nil {
		t.Fatalf("ReleaseFileReservations: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released, got %d", released)
	}

	retry, err := ts.reservations.ReservePaths(ctx, project.ID, blueLake.ID, []string{"src/critical.rs"}, true, "", 0)
	if err != nil {
		t.Fatalf("retry ReservePaths: %v", err)
	}
	if len(retry.Granted) != 1 || len(retry.Conflicts) != 0 {
		t.Fatalf("expected a clean grant after release, got %+v", retry)
	}
}

// TestScenarioS3PatternOverlap is spec §8 S3, exercised at the exact
// literal values the scenario names (internal/pattern already has its own
// broader unit test suite; this one pins the scenario's four examples).
func TestScenarioS3PatternOverlap(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"src/**", "src/main.rs", true},
		{"src/*.rs", "docs/*.md", false},
		{"./src/**", "src/**", true},
		{"src/a*", "src/*b", true}, // conservative glob-vs-glob
	}
	for _, c := range cases {
		if got := pattern.Overlaps(c.a, c.b); got != c.want {
			t.Errorf("Overlaps(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// TestScenarioS4ContactBlock is spec §8 S4.
func TestScenarioS4ContactBlock(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	project, _ := ts.store.EnsureProject(ctx, "s4", "/tmp/s4")
	redFox := ts.registerAgent(t, project.ID, "RedFox")
	goldPeak := ts.registerAgent(t, project.ID, "GoldPeak")

	if err := ts.contacts.SetContactPolicy(ctx, goldPeak.ID, PolicyBlockAll); err != nil {
		t.Fatalf("SetContactPolicy: %v", err)
	}

	result, err := ts.messages.SendMessage(ctx, project.ID, redFox.ID, []string{"GoldPeak"}, nil, nil, "hello", "body", "", "normal", false, "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Message == nil {
		t.Fatal("the message must still exist for the sender's outbox")
	}
	if len(result.Delivered) != 1 || result.Delivered[0].Delivered {
		t.Fatalf("expected GoldPeak marked rejected, got %+v", result.Delivered)
	}

	goldInbox, err := ts.messages.FetchInbox(ctx, project.ID, goldPeak.ID, false, true, 10)
	if err != nil {
		t.Fatalf("FetchInbox(GoldPeak): %v", err)
	}
	if len(goldInbox) != 0 {
		t.Fatalf("a rejected recipient must not have the message in their inbox, got %+v", goldInbox)
	}
}

// TestInvariant1MessageAtomicity covers universal invariant 1: a send that
// fails validation never leaves a partial message/recipient row behind.
func TestInvariant1MessageAtomicity(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	project, _ := ts.store.EnsureProject(ctx, "inv1", "/tmp/inv1")
	redFox := ts.registerAgent(t, project.ID, "RedFox")

	_, err := ts.messages.SendMessage(ctx, project.ID, redFox.ID, []string{"Nobody"}, nil, nil, "X", "body", "", "normal", false, "")
	if AsError(err) == nil || AsError(err).Kind != KindInvalidArgument {
		t.Fatalf("expected InvalidArgument for an unknown recipient, got %v", err)
	}

	threads, err := ts.store.ListThread(ctx, project.ID, "")
	if err != nil {
		t.Fatalf("ListThread: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("a failed send must not leave a message row behind, got %+v", threads)
	}
}

// TestInvariant6ReadAckIdempotence covers universal invariant 6.
func TestInvariant6ReadAckIdempotence(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	project, _ := ts.store.EnsureProject(ctx, "inv6", "/tmp/inv6")
	redFox := ts.registerAgent(t, project.ID, "RedFox")
	blueLake := ts.registerAgent(t, project.ID, "BlueLake")

	result, err := ts.messages.SendMessage(ctx, project.ID, redFox.ID, []string{"BlueLake"}, nil, nil, "X", "body", "", "normal", true, "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := ts.messages.MarkMessageRead(ctx, result.Message.ID, blueLake.ID); err != nil {
		t.Fatalf("first MarkMessageRead: %v", err)
	}
	if err := ts.messages.MarkMessageRead(ctx, result.Message.ID, blueLake.ID); err != nil {
		t.Fatalf("second MarkMessageRead should be a no-op, got: %v", err)
	}
	if err := ts.messages.AcknowledgeMessage(ctx, result.Message.ID, blueLake.ID); err != nil {
		t.Fatalf("first AcknowledgeMessage: %v", err)
	}
	if err := ts.messages.AcknowledgeMessage(ctx, result.Message.ID, blueLake.ID); err != nil {
		t.Fatalf("second AcknowledgeMessage should be a no-op, got: %v", err)
	}
}

// TestInvariant7ContactStateMachine covers universal invariant 7: the
// reachable states under request/respond match spec §4.4's diagram,
// including the blocked→pending recovery path on a fresh request.
func TestInvariant7ContactStateMachine(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	project, _ := ts.store.EnsureProject(ctx, "inv7", "/tmp/inv7")
	redFox := ts.registerAgent(t, project.ID, "RedFox")
	blueLake := ts.registerAgent(t, project.ID, "BlueLake")

	link, err := ts.contacts.RequestContact(ctx, redFox.ID, blueLake.ID, "let's collaborate")
	if err != nil {
		t.Fatalf("RequestContact: %v", err)
	}
	if link.Status != ContactPending {
		t.Fatalf("new pair should start pending, got %s", link.Status)
	}

	link, err = ts.contacts.RespondContact(ctx, blueLake.ID, redFox.ID, false, "not now")
	if err != nil {
		t.Fatalf("RespondContact(reject): %v", err)
	}
	if link.Status != ContactBlocked {
		t.Fatalf("reject should move to blocked, got %s", link.Status)
	}

	link, err = ts.contacts.RequestContact(ctx, redFox.ID, blueLake.ID, "reconsider?")
	if err != nil {
		t.Fatalf("RequestContact after block: %v", err)
	}
	if link.Status != ContactPending {
		t.Fatalf("a fresh request from blocked should reset to pending, got %s", link.Status)
	}

	link, err = ts.contacts.RespondContact(ctx, blueLake.ID, redFox.ID, true, "ok")
	if err != nil {
		t.Fatalf("RespondContact(accept): %v", err)
	}
	if link.Status != ContactApproved {
		t.Fatalf("accept should move to approved, got %s", link.Status)
	}

	link, err = ts.contacts.RequestContact(ctx, redFox.ID, blueLake.ID, "still approved?")
	if err != nil {
		t.Fatalf("RequestContact while approved: %v", err)
	}
	if link.Status != ContactApproved {
		t.Fatalf("a request on an approved pair must not overwrite status, got %s", link.Status)
	}
}
