// Package testutil provides deterministic test scaffolding — a seeded PRNG,
// a deterministic clock, a stable id generator, and a reproduction context —
// so that flaky-looking failures in concurrent domain tests can be
// replayed from a single seed value.
package testutil

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Rng64 is a deterministic xorshift64 PRNG. Not cryptographically secure;
// intended purely for reproducible test data generation.
type Rng64 struct {
	state uint64
}

// zeroSeedRemap avoids the xorshift64 degenerate fixed point at state==0.
const zeroSeedRemap = 0x517c_c1b7_2722_0a95

// NewRng64 creates a PRNG from seed. A zero seed is remapped to a fixed
// non-zero value.
func NewRng64(seed uint64) *Rng64 {
	if seed == 0 {
		seed = zeroSeedRemap
	}
	return &Rng64{state: seed}
}

// NextUint64 advances the generator and returns the next value.
func (r *Rng64) NextUint64() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x
}

// NextBounded returns a value in [0, bound). Returns 0 when bound == 0.
func (r *Rng64) NextBounded(bound uint64) uint64 {
	if bound == 0 {
		return 0
	}
	return r.NextUint64() % bound
}

// NextRange returns a value in [lo, hi). Panics if lo >= hi.
func (r *Rng64) NextRange(lo, hi uint64) uint64 {
	if lo >= hi {
		panic("testutil: NextRange requires lo < hi")
	}
	return lo + r.NextBounded(hi-lo)
}

// Choose picks a deterministic random element from items. Panics on an
// empty slice.
func Choose[T any](r *Rng64, items []T) T {
	if len(items) == 0 {
		panic("testutil: Choose requires a non-empty slice")
	}
	return items[r.NextBounded(uint64(len(items)))]
}

// Fork derives a child PRNG from the current state plus a discriminator
// (e.g. a worker index), so concurrent goroutines can each draw an
// independent-looking but still reproducible sequence.
func (r *Rng64) Fork(discriminator uint64) *Rng64 {
	return NewRng64(r.NextUint64() + discriminator)
}

// DeterministicClock produces monotonically increasing microsecond
// timestamps from a configurable base and step, for tests that need
// reproducible ordering regardless of wall-clock timing.
type DeterministicClock struct {
	current atomic.Int64
	stepUs  int64
}

// defaultBaseMicros is 2024-01-01T00:00:00Z in microseconds since epoch.
const defaultBaseMicros = 1_704_067_200_000_000

// NewDeterministicClock creates a clock starting at baseUs with stepUs
// advanced on every NowMicros call.
func NewDeterministicClock(baseUs, stepUs int64) *DeterministicClock {
	c := &DeterministicClock{stepUs: stepUs}
	c.current.Store(baseUs)
	return c
}

// NewDefaultClock returns a clock starting at 2024-01-01T00:00:00Z with
// 1-second steps.
func NewDefaultClock() *DeterministicClock {
	return NewDeterministicClock(defaultBaseMicros, 1_000_000)
}

// NowMicros returns the current timestamp and advances by stepUs.
func (c *DeterministicClock) NowMicros() int64 {
	return c.current.Add(c.stepUs) - c.stepUs
}

// PeekMicros returns the current timestamp without advancing it.
func (c *DeterministicClock) PeekMicros() int64 {
	return c.current.Load()
}

// SetMicros overwrites the current timestamp.
func (c *DeterministicClock) SetMicros(us int64) {
	c.current.Store(us)
}

// Advance moves the clock forward by an arbitrary amount, independent of
// the configured step.
func (c *DeterministicClock) Advance(us int64) {
	c.current.Add(us)
}

// NowUsFunc adapts the clock to the `func() uint64` signature used by
// internal/store and internal/backpressure for injected clocks.
func (c *DeterministicClock) NowUsFunc() func() uint64 {
	return func() uint64 { return uint64(c.NowMicros()) }
}

// StableIdGen produces stable, monotonically increasing ids from a
// configurable base, independent of database auto-increment state.
type StableIdGen struct {
	counter atomic.Int64
}

// NewStableIdGen creates a generator starting at base.
func NewStableIdGen(base int64) *StableIdGen {
	g := &StableIdGen{}
	g.counter.Store(base)
	return g
}

// NextID returns the next id and advances the counter.
func (g *StableIdGen) NextID() int64 { return g.counter.Add(1) - 1 }

// Peek returns the next id without consuming it.
func (g *StableIdGen) Peek() int64 { return g.counter.Load() }

// Reset overwrites the counter.
func (g *StableIdGen) Reset(base int64) { g.counter.Store(base) }

// ReproContext captures everything needed to replay a test run: seed,
// clock parameters, id base, and free-form extras. Serialized to JSON and
// embedded in CI failure artifacts.
type ReproContext struct {
	Seed             uint64            `json:"seed"`
	ClockBaseMicros  int64             `json:"clock_base_micros"`
	ClockStepMicros  int64             `json:"clock_step_micros"`
	IDBase           int64             `json:"id_base"`
	TestName         string            `json:"test_name"`
	CreatedAt        string            `json:"created_at"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// ReproCommand formats a single-line reproduction command suitable for
// pasting into a terminal.
func (r ReproContext) ReproCommand() string {
	cmd := "AGENTMAIL_TEST_SEED=" + strconv.FormatUint(r.Seed, 10)
	for k, v := range r.Extra {
		cmd += " " + k + "=" + v
	}
	cmd += " go test -run " + r.TestName
	return cmd
}

// HarnessConfig configures a Harness.
type HarnessConfig struct {
	// Seed for the PRNG (NewRng64 remaps 0). DefaultHarnessConfig fills it
	// from AGENTMAIL_TEST_SEED; NewHarness uses it as given.
	Seed uint64
	// ClockBaseMicros is the deterministic clock's starting timestamp.
	ClockBaseMicros int64
	// ClockStepMicros is advanced per NowMicros call.
	ClockStepMicros int64
	// IDBase is the stable id generator's starting value.
	IDBase int64
	// TestName is embedded in the reproduction context.
	TestName string
}

// DefaultHarnessConfig reads AGENTMAIL_TEST_SEED from the environment (0 if
// unset or unparsable) and otherwise matches the teacher's harness
// defaults: 2024-01-01T00:00:00Z base, 1-second step, id base 1.
func DefaultHarnessConfig() HarnessConfig {
	seed, _ := strconv.ParseUint(os.Getenv("AGENTMAIL_TEST_SEED"), 10, 64)
	return HarnessConfig{
		Seed:            seed,
		ClockBaseMicros: defaultBaseMicros,
		ClockStepMicros: 1_000_000,
		IDBase:          1,
	}
}

// Harness bundles a deterministic clock, id generator, seeded PRNG, and
// reproduction context into one reusable object for domain and dispatch
// tests that need reproducible concurrent scenarios.
type Harness struct {
	Clock  *DeterministicClock
	IDs    *StableIdGen
	Repro  ReproContext
	ops    atomic.Uint64
	rngMu  sync.Mutex
	rng    *Rng64
}

// NewHarness builds a Harness from cfg.
func NewHarness(cfg HarnessConfig) *Harness {
	if cfg.ClockStepMicros == 0 {
		cfg.ClockStepMicros = 1_000_000
	}
	if cfg.IDBase == 0 {
		cfg.IDBase = 1
	}
	if cfg.ClockBaseMicros == 0 {
		cfg.ClockBaseMicros = defaultBaseMicros
	}
	return &Harness{
		Clock: NewDeterministicClock(cfg.ClockBaseMicros, cfg.ClockStepMicros),
		IDs:   NewStableIdGen(cfg.IDBase),
		rng:   NewRng64(cfg.Seed),
		Repro: ReproContext{
			Seed:            cfg.Seed,
			ClockBaseMicros: cfg.ClockBaseMicros,
			ClockStepMicros: cfg.ClockStepMicros,
			IDBase:          cfg.IDBase,
			TestName:        cfg.TestName,
			CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// WithSeed builds a Harness with a specific seed and test name, otherwise
// using the package defaults.
func WithSeed(seed uint64, testName string) *Harness {
	cfg := DefaultHarnessConfig()
	cfg.Seed = seed
	cfg.TestName = testName
	return NewHarness(cfg)
}

// Rng runs fn against the harness's mutex-protected PRNG.
func (h *Harness) Rng(fn func(*Rng64)) {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	fn(h.rng)
}

// ForkRng derives an independent child PRNG, for handing to a concurrent
// worker without contending on the harness's own lock.
func (h *Harness) ForkRng(discriminator uint64) *Rng64 {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return h.rng.Fork(discriminator)
}

// RecordOp increments and returns the harness's operation counter,
// starting from 0.
func (h *Harness) RecordOp() uint64 { return h.ops.Add(1) - 1 }

// AddExtra attaches a suite-specific key/value pair to the reproduction
// context.
func (h *Harness) AddExtra(key, value string) {
	if h.Repro.Extra == nil {
		h.Repro.Extra = make(map[string]string)
	}
	h.Repro.Extra[key] = value
}

// ReproJSON serializes the reproduction context to pretty JSON.
func (h *Harness) ReproJSON() ([]byte, error) {
	return json.MarshalIndent(h.Repro, "", "  ")
}

// WriteRepro writes the reproduction context to path.
func (h *Harness) WriteRepro(path string) error {
	data, err := h.ReproJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
