// Package store implements the embedded relational store (C5): SQLite
// schema and migrations, a bounded connection pool with FIFO wait-queue and
// circuit breaker, read-through LRU caches, and the transactional
// operations (BEGIN IMMEDIATE) every domain mutation is built on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentmail/agentmail/internal/apperr"
)

// Config configures a Store.
type Config struct {
	// Path is the SQLite file path, or ":memory:"-style DSN fragment for
	// tests. Passed through to the modernc.org/sqlite driver.
	Path           string
	MaxConns       int
	AcquireTimeout time.Duration
	NowUs          func() uint64
	OnAcquire      AcquireFunc
	OnGauge        GaugeFunc
}

// Store is the coordination data plane's storage handle.
type Store struct {
	db    *sql.DB
	pool  *Pool
	nowUs func() uint64

	projectCache *shardedLRU
	agentCache   *shardedLRU
}

// Open opens (creating if absent) the SQLite database at cfg.Path, applies
// pending migrations, and wires the connection pool.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 5 * time.Second
	}
	if cfg.NowUs == nil {
		cfg.NowUs = func() uint64 { return uint64(time.Now().UnixMicro()) }
	}

	dsn := cfg.Path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := Migrate(ctx, db, cfg.NowUs); err != nil {
		db.Close()
		return nil, err
	}

	pool := NewPool(db, PoolConfig{
		MaxConns:       cfg.MaxConns,
		AcquireTimeout: cfg.AcquireTimeout,
		BreakerName:    "store",
		NowUs:          cfg.NowUs,
		OnAcquire:      cfg.OnAcquire,
		OnGauge:        cfg.OnGauge,
	})

	return &Store{
		db:           db,
		pool:         pool,
		nowUs:        cfg.NowUs,
		projectCache: newShardedLRU(64),
		agentCache:   newShardedLRU(256),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.pool.Close() }

// Now returns the store's injected clock, in microseconds.
func (s *Store) Now() uint64 { return s.nowUs() }

// withConn acquires a pooled connection for the duration of fn.
func (s *Store) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn.raw)
}

// withTx runs fn between BEGIN IMMEDIATE and COMMIT on a pooled connection,
// rolling back on any error fn returns. BEGIN IMMEDIATE takes the SQLite
// write lock up front rather than on first write, so two concurrent callers
// racing to check-then-insert (e.g. reservation overlap, contact state
// transitions) serialize instead of both observing a stale read.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Conn) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return apperr.DatabaseError(err.Error())
		}
		if err := fn(conn); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return err
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return apperr.DatabaseError(err.Error())
		}
		return nil
	})
}

// QuickCheck runs SQLite's own integrity check (PRAGMA quick_check),
// surfacing any corruption as apperr.IntegrityCorruption. Intended to be
// called once at startup before the server accepts traffic.
func (s *Store) QuickCheck(ctx context.Context) error {
	var result string
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result)
	})
	if err != nil {
		return apperr.DatabaseError(fmt.Sprintf("quick_check query failed: %v", err))
	}
	if result != "ok" {
		return apperr.IntegrityCorruption("sqlite quick_check failed", result)
	}
	return nil
}
