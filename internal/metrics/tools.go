package metrics

import (
	"sort"
	"sync/atomic"
)

// slowToolP95ThresholdUs flags tools whose p95 exceeds this as slow.
const slowToolP95ThresholdUs = 500_000 // 500ms

// toolCluster pairs a tool name with its registration cluster, mirroring
// the tool surface's TOOL_CLUSTER_MAP.
type toolCluster struct {
	name    string
	cluster string
}

// toolClusterMap is the full 34-tool surface grouped by cluster.
var toolClusterMap = []toolCluster{
	{"health_check", "infrastructure"},
	{"ensure_project", "infrastructure"},
	{"install_precommit_guard", "infrastructure"},
	{"uninstall_precommit_guard", "infrastructure"},

	{"register_agent", "identity"},
	{"create_agent_identity", "identity"},
	{"whois", "identity"},

	{"send_message", "messaging"},
	{"reply_message", "messaging"},
	{"fetch_inbox", "messaging"},
	{"mark_message_read", "messaging"},
	{"acknowledge_message", "messaging"},

	{"request_contact", "contacts"},
	{"respond_contact", "contacts"},
	{"list_contacts", "contacts"},
	{"set_contact_policy", "contacts"},

	{"file_reservation_paths", "file_reservations"},
	{"release_file_reservations", "file_reservations"},
	{"renew_file_reservations", "file_reservations"},
	{"list_file_reservations", "file_reservations"},

	{"search_messages", "search"},
	{"summarize_thread", "search"},

	{"macro_start_session", "workflow_macros"},
	{"macro_prepare_thread", "workflow_macros"},
	{"macro_file_reservation_cycle", "workflow_macros"},
	{"macro_contact_handshake", "workflow_macros"},

	{"ensure_product", "product_bus"},
	{"products_link", "product_bus"},
	{"search_messages_product", "product_bus"},
	{"fetch_inbox_product", "product_bus"},
	{"summarize_thread_product", "product_bus"},

	{"acquire_build_slot", "build_slots"},
	{"renew_build_slot", "build_slots"},
	{"release_build_slot", "build_slots"},
}

func toolIndex(name string) (int, bool) {
	for i, tc := range toolClusterMap {
		if tc.name == name {
			return i, true
		}
	}
	return 0, false
}

// ToolRegistry holds per-tool call/error counters and latency histograms,
// pre-sized to the fixed tool surface.
type ToolRegistry struct {
	calls     []atomic.Uint64
	errors    []atomic.Uint64
	latencies []*Histogram
}

// NewToolRegistry allocates counters for every known tool.
func NewToolRegistry() *ToolRegistry {
	n := len(toolClusterMap)
	r := &ToolRegistry{
		calls:     make([]atomic.Uint64, n),
		errors:    make([]atomic.Uint64, n),
		latencies: make([]*Histogram, n),
	}
	for i := range r.latencies {
		r.latencies[i] = NewHistogram()
	}
	return r
}

// Record registers one call outcome for a known tool name. Unknown names
// are silently ignored (the tool registry validates names at dispatch
// time; this is pure observability).
func (r *ToolRegistry) Record(name string, isError bool, latencyUs uint64) {
	idx, ok := toolIndex(name)
	if !ok {
		return
	}
	r.calls[idx].Add(1)
	if isError {
		r.errors[idx].Add(1)
	}
	r.latencies[idx].Record(latencyUs)
}

// Reset clears every counter and histogram (used by deterministic tests).
func (r *ToolRegistry) Reset() {
	for i := range r.calls {
		r.calls[i].Store(0)
		r.errors[i].Store(0)
		r.latencies[i].Reset()
	}
}

// ToolSnapshotEntry is one row of the per-tool metrics resource.
type ToolSnapshotEntry struct {
	Name    string
	Cluster string
	Calls   uint64
	Errors  uint64
	Latency *LatencySnapshot
}

// LatencySnapshot is the per-tool latency view, in milliseconds.
type LatencySnapshot struct {
	AvgMs float64
	MinMs float64
	MaxMs float64
	P50Ms float64
	P95Ms float64
	P99Ms float64
	Slow  bool
}

func usToMs(us uint64) float64 { return float64(us) / 1000.0 }

func (r *ToolRegistry) latencyFor(idx int) *LatencySnapshot {
	hs := r.latencies[idx].Snapshot()
	if hs.Count == 0 {
		return nil
	}
	var avgUs uint64
	if hs.Count > 0 {
		avgUs = hs.Sum / hs.Count
	}
	return &LatencySnapshot{
		AvgMs: usToMs(avgUs),
		MinMs: usToMs(hs.Min),
		MaxMs: usToMs(hs.Max),
		P50Ms: usToMs(hs.P50),
		P95Ms: usToMs(hs.P95),
		P99Ms: usToMs(hs.P99),
		Slow:  hs.P95 > slowToolP95ThresholdUs,
	}
}

// Snapshot returns all tools that have been called at least once, sorted
// alphabetically by name.
func (r *ToolRegistry) Snapshot() []ToolSnapshotEntry {
	return r.snapshot(false)
}

// SnapshotFull returns every known tool, including those never called.
func (r *ToolRegistry) SnapshotFull() []ToolSnapshotEntry {
	return r.snapshot(true)
}

func (r *ToolRegistry) snapshot(includeZero bool) []ToolSnapshotEntry {
	entries := make([]ToolSnapshotEntry, 0, len(toolClusterMap))
	for i, tc := range toolClusterMap {
		calls := r.calls[i].Load()
		if calls == 0 && !includeZero {
			continue
		}
		entries = append(entries, ToolSnapshotEntry{
			Name:    tc.name,
			Cluster: tc.cluster,
			Calls:   calls,
			Errors:  r.errors[i].Load(),
			Latency: r.latencyFor(i),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// SlowTools returns only the tools currently flagged as slow (p95 above
// the 500ms threshold).
func (r *ToolRegistry) SlowTools() []ToolSnapshotEntry {
	all := r.Snapshot()
	slow := make([]ToolSnapshotEntry, 0)
	for _, e := range all {
		if e.Latency != nil && e.Latency.Slow {
			slow = append(slow, e)
		}
	}
	return slow
}
