package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, quality Embedder) *Service {
	t.Helper()
	idx, err := OpenMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return NewService(idx, NewHashEmbedder(), quality)
}

func seedThreeMessages(t *testing.T, svc *Service) {
	t.Helper()
	docs := []Document{
		{MessageID: 1, ProjectID: 1, ThreadID: "t1", Sender: "RedFox", Subject: "deploy window tonight", Body: "cutting a release branch", Importance: "normal", CreatedTs: 100},
		{MessageID: 2, ProjectID: 1, ThreadID: "t2", Sender: "BlueLake", Subject: "lunch plans", Body: "thinking tacos", Importance: "low", CreatedTs: 101},
		{MessageID: 3, ProjectID: 1, ThreadID: "t3", Sender: "GoldPeak", Subject: "deploy rollback", Body: "prod deploy failed, rolling back", Importance: "urgent", CreatedTs: 102},
	}
	for _, d := range docs {
		require.NoError(t, svc.IndexMessage(d))
	}
}

// Scenario S6: fast phase then final phase when quality is available.
func TestScenarioS6TwoTierWithQuality(t *testing.T) {
	svc := newTestService(t, NewHashEmbedder())
	seedThreeMessages(t, svc)

	avail, phases, err := svc.Search(context.Background(), "deploy", SearchFilter{}, 5)
	require.NoError(t, err)
	require.Equal(t, Full, avail)
	require.Len(t, phases, 2)
	require.Equal(t, "fast", phases[0].Phase)
	require.Equal(t, "final", phases[1].Phase)
	require.Len(t, phases[0].Results, 2)
	require.Len(t, phases[1].Results, 2)
}

// Scenario S6 variant: with quality unavailable, only one phase emitted.
func TestScenarioS6TwoTierFastOnly(t *testing.T) {
	svc := newTestService(t, nil)
	seedThreeMessages(t, svc)

	avail, phases, err := svc.Search(context.Background(), "deploy", SearchFilter{}, 5)
	require.NoError(t, err)
	require.Equal(t, FastOnly, avail)
	require.Len(t, phases, 1)
	require.Equal(t, "fast", phases[0].Phase)
	require.Len(t, phases[0].Results, 2)
}

func TestSearchNoMatches(t *testing.T) {
	svc := newTestService(t, NewHashEmbedder())
	seedThreeMessages(t, svc)

	avail, phases, err := svc.Search(context.Background(), "xenomorph", SearchFilter{}, 5)
	require.NoError(t, err)
	require.Equal(t, None, avail)
	require.Nil(t, phases)
}

func TestSearchAppliesFilter(t *testing.T) {
	svc := newTestService(t, nil)
	seedThreeMessages(t, svc)

	avail, phases, err := svc.Search(context.Background(), "deploy", SearchFilter{Sender: "GoldPeak"}, 5)
	require.NoError(t, err)
	require.Equal(t, FastOnly, avail)
	require.Len(t, phases[0].Results, 1)
	require.Equal(t, "GoldPeak", phases[0].Results[0].Sender)
}

func TestSearchImportanceHighIncludesUrgent(t *testing.T) {
	svc := newTestService(t, nil)
	seedThreeMessages(t, svc)

	avail, phases, err := svc.Search(context.Background(), "deploy", SearchFilter{Importance: ImportanceHigh}, 5)
	require.NoError(t, err)
	require.Equal(t, FastOnly, avail)
	require.Len(t, phases[0].Results, 1)
	require.Equal(t, int64(3), phases[0].Results[0].MessageID)
}
