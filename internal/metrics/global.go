package metrics

import "sync/atomic"

// HTTPSnapshot mirrors the HTTP transport counters.
type HTTPSnapshot struct {
	RequestsTotal    uint64
	RequestsInflight uint64
	Requests2xx      uint64
	Requests4xx      uint64
	Requests5xx      uint64
	LatencyUs        HistogramSnapshot
}

// ToolsSnapshot mirrors the aggregate (non-per-tool) tool-call counters.
type ToolsSnapshot struct {
	ToolCallsTotal  uint64
	ToolErrorsTotal uint64
	ToolLatencyUs   HistogramSnapshot
}

// DBSnapshot mirrors the connection pool counters consumed by backpressure
// classification.
type DBSnapshot struct {
	PoolAcquiresTotal          uint64
	PoolAcquireErrorsTotal     uint64
	PoolAcquireLatencyUs       HistogramSnapshot
	PoolTotalConnections       uint64
	PoolIdleConnections        uint64
	PoolActiveConnections      uint64
	PoolPendingRequests        uint64
	PoolPeakActiveConnections  uint64
	PoolUtilizationPct         uint64
	PoolOver80SinceUs          uint64
}

// StorageSnapshot mirrors the write-behind-queue and commit-queue counters.
type StorageSnapshot struct {
	WbqEnqueuedTotal        uint64
	WbqDrainedTotal         uint64
	WbqErrorsTotal          uint64
	WbqFallbacksTotal       uint64
	WbqDepth                uint64
	WbqCapacity             uint64
	WbqPeakDepth            uint64
	WbqOver80SinceUs        uint64
	WbqQueueLatencyUs       HistogramSnapshot
	CommitEnqueuedTotal     uint64
	CommitDrainedTotal      uint64
	CommitErrorsTotal       uint64
	CommitSyncFallbacksTotal uint64
	CommitPendingRequests   uint64
	CommitSoftCap           uint64
	CommitPeakPendingRequests uint64
	CommitOver80SinceUs     uint64
	CommitQueueLatencyUs    HistogramSnapshot
	NeedsReindexTotal       uint64
}

// SystemSnapshot mirrors disk-pressure sampling.
type SystemSnapshot struct {
	DiskStorageFreeBytes    uint64
	DiskDBFreeBytes         uint64
	DiskEffectiveFreeBytes  uint64
	DiskPressureLevel       uint64
	DiskLastSampleUs        uint64
	DiskSampleErrorsTotal   uint64
}

// GlobalSnapshot is the full point-in-time view consumed by backpressure
// classification.
type GlobalSnapshot struct {
	HTTP    HTTPSnapshot
	Tools   ToolsSnapshot
	DB      DBSnapshot
	Storage StorageSnapshot
	System  SystemSnapshot
}

// Global is the process-wide set of lock-free counters. cmd/agentmaild
// constructs a single instance and hands it to the backpressure monitor.
// No package outside tests calls its Record*/Set* methods, so in a running
// server its counters and gauges stay at zero.
type Global struct {
	httpRequestsTotal    atomic.Uint64
	httpRequestsInflight atomic.Int64
	http2xx, http4xx, http5xx atomic.Uint64
	httpLatency *Histogram

	toolCallsTotal, toolErrorsTotal atomic.Uint64
	toolLatency                     *Histogram

	poolAcquiresTotal, poolAcquireErrorsTotal atomic.Uint64
	poolAcquireLatency                        *Histogram
	poolTotalConnections                      atomic.Uint64
	poolIdleConnections                       atomic.Uint64
	poolActiveConnections                     atomic.Uint64
	poolPendingRequests                       atomic.Uint64
	poolPeakActiveConnections                 atomic.Uint64
	poolOver80SinceUs                         atomic.Uint64

	wbqEnqueuedTotal, wbqDrainedTotal, wbqErrorsTotal, wbqFallbacksTotal atomic.Uint64
	wbqDepth, wbqCapacity, wbqPeakDepth, wbqOver80SinceUs               atomic.Uint64
	wbqQueueLatency                                                    *Histogram

	commitEnqueuedTotal, commitDrainedTotal, commitErrorsTotal, commitSyncFallbacksTotal atomic.Uint64
	commitPendingRequests, commitSoftCap, commitPeakPendingRequests, commitOver80SinceUs atomic.Uint64
	commitQueueLatency                                                                  *Histogram
	needsReindexTotal                                                                   atomic.Uint64

	diskStorageFreeBytes, diskDBFreeBytes, diskEffectiveFreeBytes atomic.Uint64
	diskPressureLevel, diskLastSampleUs, diskSampleErrorsTotal    atomic.Uint64

	tools *ToolRegistry
}

// NewGlobal constructs a fresh set of counters.
func NewGlobal() *Global {
	return &Global{
		httpLatency:         NewHistogram(),
		toolLatency:         NewHistogram(),
		poolAcquireLatency:  NewHistogram(),
		wbqQueueLatency:     NewHistogram(),
		commitQueueLatency:  NewHistogram(),
		tools:               NewToolRegistry(),
	}
}

// Tools exposes the per-tool counter registry.
func (g *Global) Tools() *ToolRegistry { return g.tools }

// RecordHTTPRequest records the outcome and latency of one HTTP request.
func (g *Global) RecordHTTPRequest(statusCode int, latencyUs uint64) {
	g.httpRequestsTotal.Add(1)
	g.httpLatency.Record(latencyUs)
	switch {
	case statusCode >= 500:
		g.http5xx.Add(1)
	case statusCode >= 400:
		g.http4xx.Add(1)
	default:
		g.http2xx.Add(1)
	}
}

// IncInflight/DecInflight track concurrently-executing HTTP requests.
func (g *Global) IncInflight() { g.httpRequestsInflight.Add(1) }
func (g *Global) DecInflight() { g.httpRequestsInflight.Add(-1) }

// RecordToolCall records one tool invocation outcome and latency for both
// the aggregate counters and the per-tool registry.
func (g *Global) RecordToolCall(toolName string, isError bool, latencyUs uint64) {
	g.toolCallsTotal.Add(1)
	g.toolLatency.Record(latencyUs)
	if isError {
		g.toolErrorsTotal.Add(1)
	}
	g.tools.Record(toolName, isError, latencyUs)
}

// RecordPoolAcquire records a connection-pool acquisition outcome.
func (g *Global) RecordPoolAcquire(ok bool, latencyUs uint64) {
	g.poolAcquiresTotal.Add(1)
	g.poolAcquireLatency.Record(latencyUs)
	if !ok {
		g.poolAcquireErrorsTotal.Add(1)
	}
}

// SetPoolGauges updates the current pool occupancy gauges and the
// sustained-over-80%-utilization timer.
func (g *Global) SetPoolGauges(total, idle, active, pending uint64, nowUs uint64) {
	g.poolTotalConnections.Store(total)
	g.poolIdleConnections.Store(idle)
	g.poolActiveConnections.Store(active)
	g.poolPendingRequests.Store(pending)
	for {
		peak := g.poolPeakActiveConnections.Load()
		if active <= peak || g.poolPeakActiveConnections.CompareAndSwap(peak, active) {
			break
		}
	}
	updateOver80Timer(&g.poolOver80SinceUs, pct(active, total), nowUs)
}

// SetWBQGauges updates write-behind-queue occupancy gauges.
func (g *Global) SetWBQGauges(depth, capacity uint64, nowUs uint64) {
	g.wbqDepth.Store(depth)
	g.wbqCapacity.Store(capacity)
	for {
		peak := g.wbqPeakDepth.Load()
		if depth <= peak || g.wbqPeakDepth.CompareAndSwap(peak, depth) {
			break
		}
	}
	updateOver80Timer(&g.wbqOver80SinceUs, pct(depth, capacity), nowUs)
}

// SetCommitGauges updates commit-queue occupancy gauges.
func (g *Global) SetCommitGauges(pending, softCap uint64, nowUs uint64) {
	g.commitPendingRequests.Store(pending)
	g.commitSoftCap.Store(softCap)
	for {
		peak := g.commitPeakPendingRequests.Load()
		if pending <= peak || g.commitPeakPendingRequests.CompareAndSwap(peak, pending) {
			break
		}
	}
	updateOver80Timer(&g.commitOver80SinceUs, pct(pending, softCap), nowUs)
}

func updateOver80Timer(since *atomic.Uint64, pct100 uint64, nowUs uint64) {
	if pct100 >= 80 {
		if since.Load() == 0 {
			since.CompareAndSwap(0, nowUs)
		}
	} else {
		since.Store(0)
	}
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

// SetDiskGauges records the latest disk-pressure sample.
func (g *Global) SetDiskGauges(storageFree, dbFree, effectiveFree, pressureLevel, nowUs uint64) {
	g.diskStorageFreeBytes.Store(storageFree)
	g.diskDBFreeBytes.Store(dbFree)
	g.diskEffectiveFreeBytes.Store(effectiveFree)
	g.diskPressureLevel.Store(pressureLevel)
	g.diskLastSampleUs.Store(nowUs)
}

// RecordDiskSampleError increments the disk-sampling failure counter.
func (g *Global) RecordDiskSampleError() { g.diskSampleErrorsTotal.Add(1) }

// RecordWBQEnqueue/Drain/Error/Fallback track write-behind-queue lifecycle events.
func (g *Global) RecordWBQEnqueue()  { g.wbqEnqueuedTotal.Add(1) }
func (g *Global) RecordWBQDrain(latencyUs uint64) {
	g.wbqDrainedTotal.Add(1)
	g.wbqQueueLatency.Record(latencyUs)
}
func (g *Global) RecordWBQError()    { g.wbqErrorsTotal.Add(1) }
func (g *Global) RecordWBQFallback() { g.wbqFallbacksTotal.Add(1) }

// RecordCommitEnqueue/Drain/Error/Fallback track commit-queue lifecycle events.
func (g *Global) RecordCommitEnqueue() { g.commitEnqueuedTotal.Add(1) }
func (g *Global) RecordCommitDrain(latencyUs uint64) {
	g.commitDrainedTotal.Add(1)
	g.commitQueueLatency.Record(latencyUs)
}
func (g *Global) RecordCommitError()        { g.commitErrorsTotal.Add(1) }
func (g *Global) RecordCommitSyncFallback()  { g.commitSyncFallbacksTotal.Add(1) }
func (g *Global) RecordNeedsReindex()        { g.needsReindexTotal.Add(1) }

// Snapshot reads every counter into a consistent-enough point-in-time view.
// Individual fields may be off by a few increments relative to each other
// under concurrent load; this is acceptable for health classification and
// observability, never for correctness-critical decisions.
func (g *Global) Snapshot() GlobalSnapshot {
	inflight := g.httpRequestsInflight.Load()
	if inflight < 0 {
		inflight = 0
	}
	return GlobalSnapshot{
		HTTP: HTTPSnapshot{
			RequestsTotal:    g.httpRequestsTotal.Load(),
			RequestsInflight: uint64(inflight),
			Requests2xx:      g.http2xx.Load(),
			Requests4xx:      g.http4xx.Load(),
			Requests5xx:      g.http5xx.Load(),
			LatencyUs:        g.httpLatency.Snapshot(),
		},
		Tools: ToolsSnapshot{
			ToolCallsTotal:  g.toolCallsTotal.Load(),
			ToolErrorsTotal: g.toolErrorsTotal.Load(),
			ToolLatencyUs:   g.toolLatency.Snapshot(),
		},
		DB: DBSnapshot{
			PoolAcquiresTotal:         g.poolAcquiresTotal.Load(),
			PoolAcquireErrorsTotal:    g.poolAcquireErrorsTotal.Load(),
			PoolAcquireLatencyUs:      g.poolAcquireLatency.Snapshot(),
			PoolTotalConnections:      g.poolTotalConnections.Load(),
			PoolIdleConnections:       g.poolIdleConnections.Load(),
			PoolActiveConnections:     g.poolActiveConnections.Load(),
			PoolPendingRequests:       g.poolPendingRequests.Load(),
			PoolPeakActiveConnections: g.poolPeakActiveConnections.Load(),
			PoolUtilizationPct:        pct(g.poolActiveConnections.Load(), g.poolTotalConnections.Load()),
			PoolOver80SinceUs:         g.poolOver80SinceUs.Load(),
		},
		Storage: StorageSnapshot{
			WbqEnqueuedTotal:          g.wbqEnqueuedTotal.Load(),
			WbqDrainedTotal:           g.wbqDrainedTotal.Load(),
			WbqErrorsTotal:            g.wbqErrorsTotal.Load(),
			WbqFallbacksTotal:         g.wbqFallbacksTotal.Load(),
			WbqDepth:                  g.wbqDepth.Load(),
			WbqCapacity:               g.wbqCapacity.Load(),
			WbqPeakDepth:              g.wbqPeakDepth.Load(),
			WbqOver80SinceUs:          g.wbqOver80SinceUs.Load(),
			WbqQueueLatencyUs:         g.wbqQueueLatency.Snapshot(),
			CommitEnqueuedTotal:       g.commitEnqueuedTotal.Load(),
			CommitDrainedTotal:        g.commitDrainedTotal.Load(),
			CommitErrorsTotal:         g.commitErrorsTotal.Load(),
			CommitSyncFallbacksTotal:  g.commitSyncFallbacksTotal.Load(),
			CommitPendingRequests:     g.commitPendingRequests.Load(),
			CommitSoftCap:             g.commitSoftCap.Load(),
			CommitPeakPendingRequests: g.commitPeakPendingRequests.Load(),
			CommitOver80SinceUs:       g.commitOver80SinceUs.Load(),
			CommitQueueLatencyUs:      g.commitQueueLatency.Snapshot(),
			NeedsReindexTotal:         g.needsReindexTotal.Load(),
		},
		System: SystemSnapshot{
			DiskStorageFreeBytes:   g.diskStorageFreeBytes.Load(),
			DiskDBFreeBytes:        g.diskDBFreeBytes.Load(),
			DiskEffectiveFreeBytes: g.diskEffectiveFreeBytes.Load(),
			DiskPressureLevel:      g.diskPressureLevel.Load(),
			DiskLastSampleUs:       g.diskLastSampleUs.Load(),
			DiskSampleErrorsTotal:  g.diskSampleErrorsTotal.Load(),
		},
	}
}
