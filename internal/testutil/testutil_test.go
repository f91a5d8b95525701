package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRngDeterministic(t *testing.T) {
	a := NewRng64(42)
	b := NewRng64(42)
	for i := 0; i < 100; i++ {
		if a.NextUint64() != b.NextUint64() {
			t.Fatalf("sequences diverged at step %d", i)
		}
	}
}

func TestRngZeroSeedRemapped(t *testing.T) {
	r := NewRng64(0)
	if r.NextUint64() == 0 {
		t.Error("zero seed should be remapped away from the degenerate state")
	}
}

func TestRngBounded(t *testing.T) {
	r := NewRng64(1)
	for i := 0; i < 1000; i++ {
		if v := r.NextBounded(10); v >= 10 {
			t.Fatalf("NextBounded(10) = %d, out of range", v)
		}
	}
}

func TestRngRange(t *testing.T) {
	r := NewRng64(7)
	for i := 0; i < 1000; i++ {
		v := r.NextRange(5, 15)
		if v < 5 || v >= 15 {
			t.Fatalf("NextRange(5,15) = %d, out of range", v)
		}
	}
}

func TestRngChoose(t *testing.T) {
	items := []string{"a", "b", "c"}
	r := NewRng64(99)
	for i := 0; i < 100; i++ {
		pick := Choose(r, items)
		found := false
		for _, it := range items {
			if it == pick {
				found = true
			}
		}
		if !found {
			t.Fatalf("Choose returned an item not in the slice: %s", pick)
		}
	}
}

func TestRngForkProducesDifferentSequence(t *testing.T) {
	parent := NewRng64(42)
	child := parent.Fork(1)
	same := true
	for i := 0; i < 10; i++ {
		if parent.NextUint64() != child.NextUint64() {
			same = false
		}
	}
	if same {
		t.Error("forked child should diverge from the parent sequence")
	}
}

func TestClockDeterministic(t *testing.T) {
	c := NewDeterministicClock(1_000_000, 500)
	if v := c.NowMicros(); v != 1_000_000 {
		t.Fatalf("got %d, want 1000000", v)
	}
	if v := c.NowMicros(); v != 1_000_500 {
		t.Fatalf("got %d, want 1000500", v)
	}
	if v := c.NowMicros(); v != 1_001_000 {
		t.Fatalf("got %d, want 1001000", v)
	}
}

func TestClockPeekNoAdvance(t *testing.T) {
	c := NewDeterministicClock(100, 10)
	if c.PeekMicros() != 100 || c.PeekMicros() != 100 {
		t.Fatal("peek should not advance")
	}
	if c.NowMicros() != 100 {
		t.Fatal("first NowMicros should return the base")
	}
	if c.PeekMicros() != 110 {
		t.Fatal("peek after one tick should reflect the advance")
	}
}

func TestClockSetAndAdvance(t *testing.T) {
	c := NewDefaultClock()
	c.SetMicros(5_000_000)
	if c.PeekMicros() != 5_000_000 {
		t.Fatal("SetMicros did not take effect")
	}
	c.Advance(2_000_000)
	if c.PeekMicros() != 7_000_000 {
		t.Fatal("Advance did not accumulate")
	}
}

func TestIDGenSequential(t *testing.T) {
	g := NewStableIdGen(100)
	if g.NextID() != 100 || g.NextID() != 101 || g.NextID() != 102 {
		t.Fatal("ids should be sequential from the base")
	}
}

func TestIDGenReset(t *testing.T) {
	g := NewStableIdGen(1)
	g.NextID()
	g.NextID()
	g.Reset(50)
	if g.NextID() != 50 {
		t.Fatal("Reset should restart the sequence")
	}
}

func TestHarnessCreation(t *testing.T) {
	h := WithSeed(42, "TestHarnessCreation")
	if h.Repro.Seed != 42 || h.Repro.TestName != "TestHarnessCreation" {
		t.Fatalf("unexpected repro context: %+v", h.Repro)
	}
}

func TestHarnessRngAccess(t *testing.T) {
	h := WithSeed(42, "rng")
	var a, b uint64
	h.Rng(func(r *Rng64) { a = r.NextUint64() })
	h.Rng(func(r *Rng64) { b = r.NextUint64() })
	if a == b {
		t.Error("successive draws should differ")
	}
}

func TestHarnessForkRng(t *testing.T) {
	h := WithSeed(42, "fork")
	r1 := h.ForkRng(1)
	r2 := h.ForkRng(2)
	same := true
	for i := 0; i < 5; i++ {
		if r1.NextUint64() != r2.NextUint64() {
			same = false
		}
	}
	if same {
		t.Error("differently-discriminated forks should diverge")
	}
}

func TestHarnessOpsCounter(t *testing.T) {
	h := WithSeed(0, "ops")
	if h.RecordOp() != 0 || h.RecordOp() != 1 || h.RecordOp() != 2 {
		t.Fatal("RecordOp should count from 0")
	}
}

func TestHarnessReproJSON(t *testing.T) {
	h := WithSeed(42, "repro")
	data, err := h.ReproJSON()
	if err != nil {
		t.Fatalf("ReproJSON: %v", err)
	}
	s := string(data)
	if !contains(s, `"seed": 42`) || !contains(s, "repro") {
		t.Fatalf("unexpected repro JSON: %s", s)
	}
}

func TestHarnessReproCommand(t *testing.T) {
	h := WithSeed(42, "my_test")
	h.AddExtra("SOAK_PROJECTS", "10")
	cmd := h.Repro.ReproCommand()
	if !contains(cmd, "AGENTMAIL_TEST_SEED=42") || !contains(cmd, "SOAK_PROJECTS=10") || !contains(cmd, "my_test") {
		t.Fatalf("unexpected repro command: %s", cmd)
	}
}

func TestHarnessDeterministicAcrossRuns(t *testing.T) {
	h1 := WithSeed(999, "repro_test")
	h2 := WithSeed(999, "repro_test")

	for i := 0; i < 5; i++ {
		if h1.Clock.NowMicros() != h2.Clock.NowMicros() {
			t.Fatal("clocks diverged")
		}
		if h1.IDs.NextID() != h2.IDs.NextID() {
			t.Fatal("id generators diverged")
		}
		var a, b uint64
		h1.Rng(func(r *Rng64) { a = r.NextUint64() })
		h2.Rng(func(r *Rng64) { b = r.NextUint64() })
		if a != b {
			t.Fatal("rngs diverged")
		}
	}
}

func TestWriteAndReadReproArtifact(t *testing.T) {
	h := WithSeed(42, "artifact_test")
	path := filepath.Join(t.TempDir(), "repro.json")
	if err := h.WriteRepro(path); err != nil {
		t.Fatalf("WriteRepro: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !contains(string(data), `"seed": 42`) {
		t.Fatalf("artifact missing seed: %s", data)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
