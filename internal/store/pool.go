package store

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/agentmail/agentmail/internal/apperr"
)

// PoolStats is a point-in-time view of pool occupancy, passed to
// PoolConfig.OnGauge when one is set.
type PoolStats struct {
	Total, Idle, Active, Pending uint64
}

// AcquireFunc is notified after every acquire attempt (success or failure)
// with the observed latency in microseconds.
type AcquireFunc func(ok bool, latencyUs uint64)

// GaugeFunc receives refreshed pool occupancy gauges.
type GaugeFunc func(stats PoolStats, nowUs uint64)

// PoolConfig configures a Pool.
type PoolConfig struct {
	MaxConns       int
	AcquireTimeout time.Duration
	BreakerName    string
	NowUs          func() uint64
	OnAcquire      AcquireFunc
	OnGauge        GaugeFunc
}

// Pool wraps database/sql's own connection pool with an explicit bounded
// semaphore (so acquire can time out deterministically and distinguish
// exhaustion from a context cancellation) and a circuit breaker around the
// underlying Conn() call, tripping to CircuitBreakerOpen after sustained
// acquire failures rather than letting callers retry into a dying database.
type Pool struct {
	db             *sql.DB
	maxConns       int
	sem            chan struct{}
	acquireTimeout time.Duration
	breaker        *gobreaker.CircuitBreaker
	waiting        atomic.Int64
	active         atomic.Int64
	nowUs          func() uint64
	onAcquire      AcquireFunc
	onGauge        GaugeFunc
}

// NewPool builds a Pool over db. db.SetMaxOpenConns is aligned to
// cfg.MaxConns so the semaphore and the underlying driver pool never
// disagree about capacity.
func NewPool(db *sql.DB, cfg PoolConfig) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}
	if cfg.NowUs == nil {
		cfg.NowUs = func() uint64 { return uint64(time.Now().UnixMicro()) }
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Pool{
		db:             db,
		maxConns:       cfg.MaxConns,
		sem:            make(chan struct{}, cfg.MaxConns),
		acquireTimeout: cfg.AcquireTimeout,
		breaker:        breaker,
		nowUs:          cfg.NowUs,
		onAcquire:      cfg.OnAcquire,
		onGauge:        cfg.OnGauge,
	}
}

// Conn is a pool-acquired handle. Callers must call Release exactly once.
type Conn struct {
	pool *Pool
	raw  *sql.Conn
}

// Acquire waits for a free slot (FIFO via the buffered channel), then opens
// an underlying connection through the circuit breaker. Returns
// apperr.ResourceBusy on acquire timeout, apperr.Cancelled if ctx is done
// first, and apperr.CircuitBreakerOpen if the breaker has tripped.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := p.nowUs()
	p.waiting.Add(1)
	defer p.waiting.Add(-1)

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case p.sem <- struct{}{}:
	case <-timer.C:
		p.recordAcquire(false, start)
		return nil, apperr.ResourceBusy("connection pool acquire timed out")
	case <-ctx.Done():
		p.recordAcquire(false, start)
		return nil, apperr.Cancelled()
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.db.Conn(ctx)
	})
	if err != nil {
		<-p.sem
		p.recordAcquire(false, start)
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			counts := p.breaker.Counts()
			return nil, apperr.CircuitBreakerOpen(int(counts.ConsecutiveFailures), 10.0)
		}
		return nil, apperr.DatabaseError(err.Error())
	}

	p.active.Add(1)
	p.recordAcquire(true, start)
	p.refreshGauges()
	return &Conn{pool: p, raw: result.(*sql.Conn)}, nil
}

// Release returns the underlying connection and frees the semaphore slot.
func (c *Conn) Release() {
	c.raw.Close()
	c.pool.active.Add(-1)
	<-c.pool.sem
	c.pool.refreshGauges()
}

func (p *Pool) recordAcquire(ok bool, startUs uint64) {
	if p.onAcquire != nil {
		p.onAcquire(ok, p.nowUs()-startUs)
	}
}

func (p *Pool) refreshGauges() {
	if p.onGauge == nil {
		return
	}
	stats := p.db.Stats()
	p.onGauge(PoolStats{
		Total:   uint64(stats.OpenConnections),
		Idle:    uint64(stats.Idle),
		Active:  uint64(p.active.Load()),
		Pending: uint64(p.waiting.Load()),
	}, p.nowUs())
}

// Close closes the underlying *sql.DB.
func (p *Pool) Close() error { return p.db.Close() }
