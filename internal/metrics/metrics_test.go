package metrics

import "testing"

func TestHistogramBasic(t *testing.T) {
	h := NewHistogram()
	for _, v := range []uint64{1000, 2000, 3000, 4000, 5000} {
		h.Record(v)
	}
	snap := h.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("count = %d, want 5", snap.Count)
	}
	if snap.Min > 1000 {
		t.Errorf("min %d should be <= 1000", snap.Min)
	}
	if snap.Max < 5000 {
		t.Errorf("max %d should be >= 5000", snap.Max)
	}
}

func TestHistogramEmpty(t *testing.T) {
	h := NewHistogram()
	snap := h.Snapshot()
	if snap.Count != 0 {
		t.Errorf("expected zero count on empty histogram")
	}
}

func TestHistogramReset(t *testing.T) {
	h := NewHistogram()
	h.Record(100)
	h.Reset()
	if h.Snapshot().Count != 0 {
		t.Error("expected count 0 after reset")
	}
}

func TestToolRegistryRecordAndSnapshot(t *testing.T) {
	r := NewToolRegistry()
	r.Record("health_check", false, 1000)
	r.Record("health_check", false, 2000)
	r.Record("send_message", true, 600_000)

	snap := r.Snapshot()
	var hc, sm *ToolSnapshotEntry
	for i := range snap {
		switch snap[i].Name {
		case "health_check":
			hc = &snap[i]
		case "send_message":
			sm = &snap[i]
		}
	}
	if hc == nil || hc.Calls != 2 || hc.Cluster != "infrastructure" {
		t.Fatalf("unexpected health_check entry: %+v", hc)
	}
	if sm == nil || sm.Calls != 1 || sm.Errors != 1 || sm.Cluster != "messaging" {
		t.Fatalf("unexpected send_message entry: %+v", sm)
	}
	if sm.Latency == nil || !sm.Latency.Slow {
		t.Error("expected send_message to be flagged slow at 600ms p95")
	}
}

func TestToolRegistrySnapshotFullIncludesAllTools(t *testing.T) {
	r := NewToolRegistry()
	full := r.SnapshotFull()
	if len(full) != len(toolClusterMap) {
		t.Fatalf("full snapshot len = %d, want %d", len(full), len(toolClusterMap))
	}
	for i := 1; i < len(full); i++ {
		if full[i-1].Name > full[i].Name {
			t.Fatal("full snapshot not sorted")
		}
	}
}

func TestToolRegistryUnknownNameIgnored(t *testing.T) {
	r := NewToolRegistry()
	r.Record("not_a_real_tool", false, 10)
	if len(r.Snapshot()) != 0 {
		t.Error("unknown tool name should not appear in snapshot")
	}
}

func TestGlobalSnapshotZeroValueIsGreenSafe(t *testing.T) {
	g := NewGlobal()
	snap := g.Snapshot()
	if snap.DB.PoolUtilizationPct != 0 {
		t.Errorf("expected zero utilization, got %d", snap.DB.PoolUtilizationPct)
	}
	g.RecordHTTPRequest(200, 500)
	g.RecordHTTPRequest(500, 700)
	snap = g.Snapshot()
	if snap.HTTP.RequestsTotal != 2 || snap.HTTP.Requests2xx != 1 || snap.HTTP.Requests5xx != 1 {
		t.Fatalf("unexpected http snapshot: %+v", snap.HTTP)
	}
}

func TestGlobalPoolGaugesOver80Timer(t *testing.T) {
	g := NewGlobal()
	g.SetPoolGauges(100, 15, 85, 0, 1_000_000)
	snap := g.Snapshot()
	if snap.DB.PoolOver80SinceUs != 1_000_000 {
		t.Errorf("expected over-80 timer set, got %d", snap.DB.PoolOver80SinceUs)
	}
	g.SetPoolGauges(100, 50, 50, 0, 2_000_000)
	snap = g.Snapshot()
	if snap.DB.PoolOver80SinceUs != 0 {
		t.Errorf("expected over-80 timer cleared, got %d", snap.DB.PoolOver80SinceUs)
	}
}
