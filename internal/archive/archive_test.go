package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentmail/agentmail/internal/domain"
	"github.com/agentmail/agentmail/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(Config{
		Root: t.TempDir(), QueueCapacity: 16, BatchCap: 8,
		FlushInterval: 20 * time.Millisecond,
		NowUs:         func() uint64 { return 1000 },
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestArchiveMessageBccVisibility(t *testing.T) {
	a := newTestArchive(t)
	rec := domain.ArchiveMessageRecord{
		ProjectSlug: "proj1",
		Message: store.Message{
			ID: 42, ProjectID: 1, Subject: "deploy window", Body: "cutting a release",
			ThreadID: "t1", Importance: "normal", CreatedTs: 1000,
		},
		SenderName: "RedFox",
		To:         []string{"BlueLake"},
		Bcc:        []string{"GoldPeak"},
	}
	a.EnqueueMessage(rec)

	canonical := a.Layout().MessagePath("proj1", 42)
	waitForFile(t, canonical)
	body, err := os.ReadFile(canonical)
	require.NoError(t, err)
	require.NotContains(t, string(body), `"bcc"`)

	toInbox := a.Layout().InboxPath("proj1", "BlueLake", 42)
	waitForFile(t, toInbox)
	toBody, err := os.ReadFile(toInbox)
	require.NoError(t, err)
	require.NotContains(t, string(toBody), "GoldPeak")

	bccInbox := a.Layout().InboxPath("proj1", "GoldPeak", 42)
	waitForFile(t, bccInbox)
	bccBody, err := os.ReadFile(bccInbox)
	require.NoError(t, err)
	require.Contains(t, string(bccBody), "GoldPeak")

	outbox := a.Layout().OutboxPath("proj1", "RedFox", 42)
	waitForFile(t, outbox)
	outboxBody, err := os.ReadFile(outbox)
	require.NoError(t, err)
	require.Contains(t, string(outboxBody), "GoldPeak")
}

func TestArchiveReservationAndProfile(t *testing.T) {
	a := newTestArchive(t)
	expires := uint64(5000)
	a.EnqueueReservation(domain.ArchiveReservationRecord{
		ProjectSlug: "proj1", ID: 7, HolderName: "RedFox", Pattern: "src/**", Exclusive: true, ExpiresTs: &expires,
	})
	waitForFile(t, a.Layout().FileReservationPath("proj1", 7))

	a.EnqueueAgentProfile(domain.ArchiveAgentProfileRecord{
		ProjectSlug: "proj1", Name: "RedFox", Program: "claude-code", Model: "test-model",
		AttachmentsPolicy: "auto", ContactPolicy: "auto", InceptionTs: 1000, LastActiveTs: 1000,
	})
	waitForFile(t, a.Layout().AgentProfilePath("proj1", "RedFox"))
}

func TestWriteBehindQueueSyncFallbackOnFull(t *testing.T) {
	flushed := make(chan int, 4)
	q := newWriteBehindQueue(1, 8, time.Hour, func(jobs []job) { flushed <- len(jobs) })
	q.Start()

	for i := 0; i < 5; i++ {
		q.Enqueue(job{projectSlug: "p"})
	}
	require.Greater(t, q.SyncFallbacks(), uint64(0))
}

func TestSamplerDetectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "agentmail.db")
	st, err := store.Open(context.Background(), store.Config{Path: dbPath, NowUs: func() uint64 { return 1 }})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	proj, err := st.EnsureProject(context.Background(), "proj1", "Project One")
	require.NoError(t, err)
	sender, err := st.RegisterAgent(context.Background(), proj.ID, "RedFox", "p", "m", "t")
	require.NoError(t, err)
	_, err = st.InsertMessage(context.Background(), store.NewMessage{
		ProjectID: proj.ID, SenderID: sender.ID, Subject: "s", Body: "b", Importance: "normal",
	})
	require.NoError(t, err)

	layout := NewLayout(t.TempDir())
	sampler := NewSampler(st, layout, 10)
	require.NoError(t, sampler.Run(context.Background()))
	require.Equal(t, uint64(1), sampler.Checked())
	require.Equal(t, uint64(1), sampler.Missing())
}
