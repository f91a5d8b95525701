package archive

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// job is one pending archive write, already expanded to concrete files.
type job struct {
	projectSlug string
	writes      []writeRequest
}

// writeBehindQueue is the bounded channel bursts of domain writes absorb
// into, drained by a single worker goroutine that groups pending jobs by
// project before each git commit batch. Modeled on the teacher pack's
// single-worker channel drainer (internal/events.EventEmitter in the
// terraphim-ntm example), adapted from "drop on overflow" to "synchronous
// fallback on overflow" since archive durability, unlike event delivery,
// is a correctness requirement (spec §4.8: "commit failures ... route to a
// sync fallback path for durability").
type writeBehindQueue struct {
	ch        chan job
	flushFn   func(jobs []job)
	batchCap  int
	flushWait time.Duration

	depth         atomic.Int64
	syncFallbacks atomic.Uint64
	commitErrors  atomic.Uint64

	startOnce sync.Once
	done      chan struct{}
}

func newWriteBehindQueue(capacity, batchCap int, flushWait time.Duration, flushFn func(jobs []job)) *writeBehindQueue {
	if capacity < 1 {
		capacity = 1024
	}
	if batchCap < 1 {
		batchCap = 64
	}
	if flushWait <= 0 {
		flushWait = 200 * time.Millisecond
	}
	return &writeBehindQueue{
		ch: make(chan job, capacity), flushFn: flushFn,
		batchCap: batchCap, flushWait: flushWait, done: make(chan struct{}),
	}
}

// Start launches the drainer goroutine (idempotent).
func (q *writeBehindQueue) Start() {
	q.startOnce.Do(func() { go q.run() })
}

// Depth reports the queue's approximate current backlog, consumed by the
// backpressure classifier's >80%-of-capacity signal.
func (q *writeBehindQueue) Depth() int64 { return q.depth.Load() }

// Capacity is the queue's configured buffer size.
func (q *writeBehindQueue) Capacity() int { return cap(q.ch) }

// SyncFallbacks counts enqueue attempts that hit a full queue and were
// applied synchronously on the caller's goroutine instead.
func (q *writeBehindQueue) SyncFallbacks() uint64 { return q.syncFallbacks.Load() }

// CommitErrors counts git commit failures encountered by the drainer.
func (q *writeBehindQueue) CommitErrors() uint64 { return q.commitErrors.Load() }

// Enqueue submits j for async write-behind. If the queue is full, j is
// flushed synchronously on the caller's goroutine instead of being dropped
// or blocking indefinitely.
func (q *writeBehindQueue) Enqueue(j job) {
	q.Start()
	select {
	case q.ch <- j:
		q.depth.Add(1)
	default:
		q.syncFallbacks.Add(1)
		slog.Warn("archive write-behind queue full, applying synchronously", "project", j.projectSlug)
		q.flushFn([]job{j})
	}
}

func (q *writeBehindQueue) run() {
	pending := make([]job, 0, q.batchCap)
	ticker := time.NewTicker(q.flushWait)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		q.flushFn(pending)
		q.depth.Add(-int64(len(pending)))
		pending = pending[:0]
	}

	for {
		select {
		case j, ok := <-q.ch:
			if !ok {
				flush()
				close(q.done)
				return
			}
			pending = append(pending, j)
			if len(pending) >= q.batchCap {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close stops accepting new jobs and waits for the drainer to flush
// whatever is still pending.
func (q *writeBehindQueue) Close() {
	close(q.ch)
	<-q.done
}
