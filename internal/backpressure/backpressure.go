// Package backpressure implements the system-wide Green/Yellow/Red health
// classification (C4) used by the dispatch layer to shed non-critical work
// under sustained load.
//
// Design principles carried over from the original implementation:
//   - lock-free: classification reads existing atomic metrics, no new locks
//   - composable: callers decide what to do with the level
//   - observable: exposed via health_check and the metrics resource
package backpressure

import (
	"sync/atomic"

	"github.com/agentmail/agentmail/internal/metrics"
)

// Level is the system health classification used to guide flow-control
// decisions at the server dispatch layer.
type Level uint8

const (
	// Green: all subsystems healthy, accept all requests normally.
	Green Level = iota
	// Yellow: elevated load — defer non-critical archive writes, reduce logging.
	Yellow
	// Red: overload — reject low-priority tool calls.
	Red
)

// FromU8 converts the raw atomic representation back to a Level. Values
// outside the known range conservatively map to Red.
func FromU8(v uint8) Level {
	switch v {
	case 0:
		return Green
	case 1:
		return Yellow
	default:
		return Red
	}
}

// String returns the lowercase label used in JSON responses.
func (l Level) String() string {
	switch l {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	default:
		return "red"
	}
}

// ShouldShed reports whether a tool should be rejected under this level.
func (l Level) ShouldShed(toolIsShedable bool) bool {
	return l == Red && toolIsShedable
}

// Threshold groups, aligned with SLOs. yellowThresholds gate the
// Green→Yellow transition; redThresholds gate Yellow→Red. Every yellow
// value is strictly below its red counterpart.
type thresholds struct {
	poolAcquireP95Us  uint64
	wbqDepthPct       uint64
	commitDepthPct    uint64
	poolUtilPct       uint64
	over80DurationS   uint64
}

var yellowThresholds = thresholds{
	poolAcquireP95Us: 50_000,  // 50ms
	wbqDepthPct:      50,
	commitDepthPct:   50,
	poolUtilPct:      70,
	over80DurationS:  30,
}

var redThresholds = thresholds{
	poolAcquireP95Us: 200_000, // 200ms
	wbqDepthPct:      80,
	commitDepthPct:   80,
	poolUtilPct:      90,
	over80DurationS:  300,
}

// Signals are the intermediate values extracted from a metrics snapshot
// used to classify the health level. Exposing them lets callers see which
// signal triggered a transition.
type Signals struct {
	PoolAcquireP95Us  uint64
	PoolUtilizationPct uint64
	PoolOver80ForS     uint64
	WbqDepthPct        uint64
	WbqOver80ForS      uint64
	CommitDepthPct     uint64
	CommitOver80ForS   uint64
}

// FromSnapshot extracts classification signals from a metrics snapshot.
// nowUs is the current time in microseconds (Unix epoch).
func FromSnapshot(snap metrics.GlobalSnapshot, nowUs uint64) Signals {
	return Signals{
		PoolAcquireP95Us:   snap.DB.PoolAcquireLatencyUs.P95,
		PoolUtilizationPct: snap.DB.PoolUtilizationPct,
		PoolOver80ForS:     durationSinceS(snap.DB.PoolOver80SinceUs, nowUs),
		WbqDepthPct:        pct(snap.Storage.WbqDepth, snap.Storage.WbqCapacity),
		WbqOver80ForS:      durationSinceS(snap.Storage.WbqOver80SinceUs, nowUs),
		CommitDepthPct:     pct(snap.Storage.CommitPendingRequests, snap.Storage.CommitSoftCap),
		CommitOver80ForS:   durationSinceS(snap.Storage.CommitOver80SinceUs, nowUs),
	}
}

// Classify computes the composite health level. Worst signal wins: any
// critical-subsystem breach forces Red regardless of how healthy the
// others are.
func (s Signals) Classify() Level {
	if s.PoolAcquireP95Us > redThresholds.poolAcquireP95Us ||
		s.PoolUtilizationPct >= redThresholds.poolUtilPct ||
		s.PoolOver80ForS >= redThresholds.over80DurationS ||
		s.WbqDepthPct >= redThresholds.wbqDepthPct ||
		s.WbqOver80ForS >= redThresholds.over80DurationS ||
		s.CommitDepthPct >= redThresholds.commitDepthPct ||
		s.CommitOver80ForS >= redThresholds.over80DurationS {
		return Red
	}

	if s.PoolAcquireP95Us > yellowThresholds.poolAcquireP95Us ||
		s.PoolUtilizationPct >= yellowThresholds.poolUtilPct ||
		s.PoolOver80ForS >= yellowThresholds.over80DurationS ||
		s.WbqDepthPct >= yellowThresholds.wbqDepthPct ||
		s.CommitDepthPct >= yellowThresholds.commitDepthPct {
		return Yellow
	}

	return Green
}

func durationSinceS(sinceUs, nowUs uint64) uint64 {
	if sinceUs == 0 || nowUs < sinceUs {
		return 0
	}
	return (nowUs - sinceUs) / 1_000_000
}

func pct(value, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	p := value * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}

// shedableTools is the exact low-priority allow-list that may be rejected
// under Red-level backpressure. High-priority tools (send_message,
// fetch_inbox, register_agent, etc.) are never shed — they are essential
// for agent coordination.
var shedableTools = map[string]struct{}{
	"health_check":               {},
	"whois":                      {},
	"search_messages":            {},
	"summarize_thread":           {},
	"install_precommit_guard":    {},
	"uninstall_precommit_guard":  {},
}

// IsShedableTool reports whether a tool name is on the low-priority list.
func IsShedableTool(toolName string) bool {
	_, ok := shedableTools[toolName]
	return ok
}

// Monitor caches the most recently computed health level and counts level
// transitions, so dispatch-layer checks avoid snapshotting every metric on
// every request. Refresh should be called periodically (e.g. every 250ms
// alongside pool-stats sampling) or on each health_check.
type Monitor struct {
	global      *metrics.Global
	nowUs       func() uint64
	currentLevel atomic.Uint32
	transitions  atomic.Uint32
}

// NewMonitor wires a Monitor to the process's metrics and a clock function
// (injected so tests can supply a deterministic clock).
func NewMonitor(global *metrics.Global, nowUs func() uint64) *Monitor {
	return &Monitor{global: global, nowUs: nowUs}
}

// Cached reads the last-recorded health level (may be slightly stale).
func (m *Monitor) Cached() Level {
	return FromU8(uint8(m.currentLevel.Load()))
}

// Compute recomputes the health level directly from live metrics, without
// touching the cache.
func (m *Monitor) Compute() (Level, Signals) {
	snap := m.global.Snapshot()
	signals := FromSnapshot(snap, m.nowUs())
	return signals.Classify(), signals
}

// Refresh recomputes the health level and updates the cache. Returns the
// new level and whether it changed from the previous cached value.
func (m *Monitor) Refresh() (Level, bool) {
	newLevel, _ := m.Compute()
	prev := m.currentLevel.Swap(uint32(newLevel))
	changed := prev != uint32(newLevel)
	if changed {
		m.transitions.Add(1)
	}
	return newLevel, changed
}

// Transitions is the number of times the cached level has changed.
func (m *Monitor) Transitions() uint32 { return m.transitions.Load() }
