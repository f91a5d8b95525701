package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentmail/agentmail/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := uint64(1_700_000_000_000_000)
	nowUs := func() uint64 { clock++; return clock }
	s, err := Open(context.Background(), Config{
		Path:  filepath.Join(t.TempDir(), "agentmail.db"),
		NowUs: nowUs,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := Migrate(context.Background(), s.db, s.nowUs); err != nil {
		t.Fatalf("re-running Migrate should be a no-op, got: %v", err)
	}
}

func TestQuickCheckPasses(t *testing.T) {
	s := newTestStore(t)
	if err := s.QuickCheck(context.Background()); err != nil {
		t.Fatalf("QuickCheck: %v", err)
	}
}

func TestEnsureProjectIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p1, err := s.EnsureProject(ctx, "acme", "human:acme")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	p2, err := s.EnsureProject(ctx, "acme", "human:acme")
	if err != nil {
		t.Fatalf("EnsureProject (2nd): %v", err)
	}
	if p1.ID != p2.ID {
		t.Errorf("expected same project id, got %d and %d", p1.ID, p2.ID)
	}
}

func TestGetProjectBySlugNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProjectBySlug(context.Background(), "missing")
	de := apperr.AsError(err)
	if de.Kind != apperr.KindNotFound {
		t.Errorf("expected NotFound, got %v", de.Kind)
	}
}

func TestRegisterAgentDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.EnsureProject(ctx, "acme", "human:acme")
	if _, err := s.RegisterAgent(ctx, p.ID, "alice", "claude-code", "sonnet", "reviewing"); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	_, err := s.RegisterAgent(ctx, p.ID, "alice", "claude-code", "sonnet", "reviewing")
	if apperr.AsError(err).Kind != apperr.KindDuplicate {
		t.Errorf("expected Duplicate, got %v", err)
	}
}

func TestMessageSendAndInbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.EnsureProject(ctx, "acme", "human:acme")
	alice, _ := s.RegisterAgent(ctx, p.ID, "alice", "p", "m", "t")
	bob, _ := s.RegisterAgent(ctx, p.ID, "bob", "p", "m", "t")

	msg, err := s.InsertMessage(ctx, NewMessage{
		ProjectID: p.ID, SenderID: alice.ID, Subject: "hi", Body: "hello bob",
		ThreadID: "t1", Importance: "normal", Attachments: "[]", To: []int64{bob.ID},
	})
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	inbox, err := s.FetchInbox(ctx, p.ID, bob.ID, true, 10)
	if err != nil {
		t.Fatalf("FetchInbox: %v", err)
	}
	if len(inbox) != 1 || inbox[0].Message.ID != msg.ID {
		t.Fatalf("unexpected inbox: %+v", inbox)
	}

	if err := s.MarkRead(ctx, msg.ID, bob.ID, s.Now()); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	inbox, _ = s.FetchInbox(ctx, p.ID, bob.ID, true, 10)
	if len(inbox) != 0 {
		t.Fatalf("expected 0 unread after MarkRead, got %d", len(inbox))
	}
}

func TestReserveWithCheckVetoesOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.EnsureProject(ctx, "acme", "human:acme")
	alice, _ := s.RegisterAgent(ctx, p.ID, "alice", "p", "m", "t")
	bob, _ := s.RegisterAgent(ctx, p.ID, "bob", "p", "m", "t")

	_, err := s.ReserveWithCheck(ctx, p.ID, NewReservation{AgentID: alice.ID, Pattern: "src/**", Exclusive: true}, s.Now(), nil)
	if err != nil {
		t.Fatalf("first reservation: %v", err)
	}

	_, err = s.ReserveWithCheck(ctx, p.ID, NewReservation{AgentID: bob.ID, Pattern: "src/main.go", Exclusive: true}, s.Now(),
		func(active []ActiveReservation) error {
			if len(active) > 0 {
				return apperr.ResourceBusy("overlap")
			}
			return nil
		})
	if apperr.AsError(err).Kind != apperr.KindResourceBusy {
		t.Errorf("expected ResourceBusy veto, got %v", err)
	}
}

func TestReleaseReservationsOwnershipScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.EnsureProject(ctx, "acme", "human:acme")
	alice, _ := s.RegisterAgent(ctx, p.ID, "alice", "p", "m", "t")
	bob, _ := s.RegisterAgent(ctx, p.ID, "bob", "p", "m", "t")

	id, _ := s.ReserveWithCheck(ctx, p.ID, NewReservation{AgentID: alice.ID, Pattern: "a/**", Exclusive: true}, s.Now(), nil)

	releasedByBob, err := s.ReleaseReservations(ctx, bob.ID, []int64{id}, s.Now())
	if err != nil {
		t.Fatalf("ReleaseReservations: %v", err)
	}
	if releasedByBob != 0 {
		t.Errorf("bob should not be able to release alice's reservation, released=%d", releasedByBob)
	}

	releasedByAlice, err := s.ReleaseReservations(ctx, alice.ID, []int64{id}, s.Now())
	if err != nil {
		t.Fatalf("ReleaseReservations: %v", err)
	}
	if releasedByAlice != 1 {
		t.Errorf("expected 1 released, got %d", releasedByAlice)
	}
}

func TestBuildSlotAcquireRenewRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.EnsureProject(ctx, "acme", "human:acme")
	alice, _ := s.RegisterAgent(ctx, p.ID, "alice", "p", "m", "t")
	bob, _ := s.RegisterAgent(ctx, p.ID, "bob", "p", "m", "t")

	now := s.Now()
	if _, err := s.AcquireBuildSlot(ctx, p.ID, "ci", alice.ID, now, now+1000); err != nil {
		t.Fatalf("AcquireBuildSlot: %v", err)
	}

	_, err := s.AcquireBuildSlot(ctx, p.ID, "ci", bob.ID, now, now+1000)
	if apperr.AsError(err).Kind != apperr.KindResourceBusy {
		t.Errorf("expected ResourceBusy for contended slot, got %v", err)
	}

	if err := s.RenewBuildSlot(ctx, p.ID, "ci", alice.ID, now+5000); err != nil {
		t.Fatalf("RenewBuildSlot: %v", err)
	}
	if err := s.ReleaseBuildSlot(ctx, p.ID, "ci", alice.ID); err != nil {
		t.Fatalf("ReleaseBuildSlot: %v", err)
	}

	// Free now, bob should succeed.
	if _, err := s.AcquireBuildSlot(ctx, p.ID, "ci", bob.ID, now, now+1000); err != nil {
		t.Fatalf("AcquireBuildSlot after release: %v", err)
	}
}

func TestContactLinkRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.EnsureProject(ctx, "acme", "human:acme")
	alice, _ := s.RegisterAgent(ctx, p.ID, "alice", "p", "m", "t")
	bob, _ := s.RegisterAgent(ctx, p.ID, "bob", "p", "m", "t")

	if err := s.UpsertContactLink(ctx, alice.ID, bob.ID, "pending", "collab request", s.Now()); err != nil {
		t.Fatalf("UpsertContactLink: %v", err)
	}
	link, err := s.GetContactLink(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetContactLink: %v", err)
	}
	if link.Status != "pending" {
		t.Errorf("status = %s, want pending", link.Status)
	}

	if err := s.UpsertContactLink(ctx, alice.ID, bob.ID, "accepted", "", s.Now()); err != nil {
		t.Fatalf("UpsertContactLink (update): %v", err)
	}
	link, _ = s.GetContactLink(ctx, alice.ID, bob.ID)
	if link.Status != "accepted" {
		t.Errorf("status = %s, want accepted", link.Status)
	}
}

func TestProductLinkManyToMany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p1, _ := s.EnsureProject(ctx, "proj1", "human:1")
	p2, _ := s.EnsureProject(ctx, "proj2", "human:2")
	prod, err := s.EnsureProduct(ctx, "widget")
	if err != nil {
		t.Fatalf("EnsureProduct: %v", err)
	}
	if err := s.LinkProduct(ctx, prod.ID, p1.ID); err != nil {
		t.Fatalf("LinkProduct: %v", err)
	}
	if err := s.LinkProduct(ctx, prod.ID, p2.ID); err != nil {
		t.Fatalf("LinkProduct: %v", err)
	}
	projects, err := s.ProjectsForProduct(ctx, prod.ID)
	if err != nil {
		t.Fatalf("ProjectsForProduct: %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("expected 2 linked projects, got %d", len(projects))
	}
}
