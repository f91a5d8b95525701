package backpressure

import (
	"testing"

	"github.com/agentmail/agentmail/internal/metrics"
)

func TestAllHealthyIsGreen(t *testing.T) {
	if (Signals{}).Classify() != Green {
		t.Error("expected Green for all-zero signals")
	}
}

func TestHighPoolLatencyTriggersYellow(t *testing.T) {
	s := Signals{PoolAcquireP95Us: yellowThresholds.poolAcquireP95Us + 1}
	if s.Classify() != Yellow {
		t.Error("expected Yellow")
	}
}

func TestVeryHighPoolLatencyTriggersRed(t *testing.T) {
	s := Signals{PoolAcquireP95Us: redThresholds.poolAcquireP95Us + 1}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestWbqAt50PctIsYellow(t *testing.T) {
	s := Signals{WbqDepthPct: 50}
	if s.Classify() != Yellow {
		t.Error("expected Yellow")
	}
}

func TestWbqAt80PctIsRed(t *testing.T) {
	s := Signals{WbqDepthPct: 80}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestCommitAt50PctIsYellow(t *testing.T) {
	s := Signals{CommitDepthPct: 50}
	if s.Classify() != Yellow {
		t.Error("expected Yellow")
	}
}

func TestCommitAt80PctIsRed(t *testing.T) {
	s := Signals{CommitDepthPct: 80}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestPoolUtilization70IsYellow(t *testing.T) {
	s := Signals{PoolUtilizationPct: 70}
	if s.Classify() != Yellow {
		t.Error("expected Yellow")
	}
}

func TestPoolUtilization90IsRed(t *testing.T) {
	s := Signals{PoolUtilizationPct: 90}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestSustainedOver8030sIsYellow(t *testing.T) {
	s := Signals{PoolOver80ForS: 30}
	if s.Classify() != Yellow {
		t.Error("expected Yellow")
	}
}

func TestSustainedOver80300sIsRed(t *testing.T) {
	s := Signals{PoolOver80ForS: 300}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestWbqSustained300sIsRed(t *testing.T) {
	s := Signals{WbqOver80ForS: 300}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestCommitSustained300sIsRed(t *testing.T) {
	s := Signals{CommitOver80ForS: 300}
	if s.Classify() != Red {
		t.Error("expected Red")
	}
}

func TestBoundaryJustBelowYellowIsGreen(t *testing.T) {
	s := Signals{PoolAcquireP95Us: yellowThresholds.poolAcquireP95Us}
	if s.Classify() != Green {
		t.Error("expected Green at the threshold (not above)")
	}
}

func TestBoundaryJustBelowRedIsYellow(t *testing.T) {
	s := Signals{PoolAcquireP95Us: redThresholds.poolAcquireP95Us}
	if s.Classify() != Yellow {
		t.Error("expected Yellow: at red threshold but above yellow threshold")
	}
}

func TestHealthLevelOrdering(t *testing.T) {
	if !(Green < Yellow && Yellow < Red) {
		t.Error("expected Green < Yellow < Red")
	}
}

func TestHealthLevelDisplay(t *testing.T) {
	if Green.String() != "green" || Yellow.String() != "yellow" || Red.String() != "red" {
		t.Error("unexpected level string")
	}
}

func TestHealthLevelRoundtripU8(t *testing.T) {
	cases := map[uint8]Level{0: Green, 1: Yellow, 2: Red}
	for v, want := range cases {
		if FromU8(v) != want {
			t.Errorf("FromU8(%d) != %v", v, want)
		}
	}
	if FromU8(255) != Red {
		t.Error("out-of-range should default to Red")
	}
}

func TestShedableClassification(t *testing.T) {
	for _, name := range []string{"health_check", "whois", "search_messages", "summarize_thread"} {
		if !IsShedableTool(name) {
			t.Errorf("%s should be shedable", name)
		}
	}
	for _, name := range []string{"send_message", "fetch_inbox", "register_agent", "ensure_project", "file_reservation_paths"} {
		if IsShedableTool(name) {
			t.Errorf("%s should not be shedable", name)
		}
	}
}

func TestShouldShedLogic(t *testing.T) {
	if Green.ShouldShed(true) || Green.ShouldShed(false) {
		t.Error("Green should never shed")
	}
	if Yellow.ShouldShed(true) || Yellow.ShouldShed(false) {
		t.Error("Yellow should never shed")
	}
	if !Red.ShouldShed(true) {
		t.Error("Red should shed shedable tools")
	}
	if Red.ShouldShed(false) {
		t.Error("Red should not shed non-shedable tools")
	}
}

func TestDurationSinceZeroIsZero(t *testing.T) {
	if durationSinceS(0, 1_000_000_000) != 0 {
		t.Error("expected 0 when since_us is 0")
	}
}

func TestDurationSinceComputesCorrectly(t *testing.T) {
	if got := durationSinceS(100_000_000, 130_000_000); got != 30 {
		t.Errorf("duration = %d, want 30", got)
	}
}

func TestPctEdgeCases(t *testing.T) {
	cases := []struct{ value, total, want uint64 }{
		{0, 0, 0},
		{50, 100, 50},
		{100, 100, 100},
		{200, 100, 100},
	}
	for _, c := range cases {
		if got := pct(c.value, c.total); got != c.want {
			t.Errorf("pct(%d,%d) = %d, want %d", c.value, c.total, got, c.want)
		}
	}
}

func TestFromSnapshotWithZeroMetrics(t *testing.T) {
	snap := metrics.GlobalSnapshot{
		DB: metrics.DBSnapshot{
			PoolTotalConnections: 100,
			PoolIdleConnections:  100,
		},
		Storage: metrics.StorageSnapshot{
			WbqCapacity:   8192,
			CommitSoftCap: 8192,
		},
	}
	signals := FromSnapshot(snap, 1_000_000_000)
	if signals.Classify() != Green {
		t.Error("expected Green")
	}
	if signals.PoolAcquireP95Us != 0 || signals.WbqDepthPct != 0 || signals.CommitDepthPct != 0 {
		t.Errorf("unexpected non-zero signals: %+v", signals)
	}
}

func TestMultipleSignalsWorstWins(t *testing.T) {
	s := Signals{
		PoolAcquireP95Us: yellowThresholds.poolAcquireP95Us + 1,
		WbqDepthPct:      80,
	}
	if s.Classify() != Red {
		t.Error("expected Red: worst signal should win")
	}
}

func TestMonitorCachedLevelStartsGreen(t *testing.T) {
	g := metrics.NewGlobal()
	m := NewMonitor(g, func() uint64 { return 1_000_000 })
	if m.Cached() != Green {
		t.Error("expected Green before any refresh")
	}
}

func TestMonitorRefreshDetectsChange(t *testing.T) {
	g := metrics.NewGlobal()
	clock := uint64(1_000_000)
	m := NewMonitor(g, func() uint64 { return clock })

	level, changed := m.Refresh()
	if level != Green || changed {
		t.Fatalf("expected (Green, false) on first refresh from healthy state, got (%v, %v)", level, changed)
	}

	g.SetPoolGauges(100, 5, 95, 0, clock)
	level, changed = m.Refresh()
	if level != Red || !changed {
		t.Fatalf("expected (Red, true) after pool exhaustion, got (%v, %v)", level, changed)
	}
	if m.Transitions() != 1 {
		t.Errorf("expected 1 transition, got %d", m.Transitions())
	}
}
