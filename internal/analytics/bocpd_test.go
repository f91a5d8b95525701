package analytics

import (
	"math"
	"testing"
)

func TestBOCPDDetectsMeanShift(t *testing.T) {
	d := NewBOCPDDetector(1.0/100.0, 0.5, 300)

	var found *ChangePoint
	for i := 0; i < 100; i++ {
		if cp := d.Observe(0.0); cp != nil && found == nil {
			found = cp
		}
	}
	for i := 0; i < 100; i++ {
		if cp := d.Observe(5.0); cp != nil && found == nil {
			found = cp
		}
	}

	if found == nil {
		t.Fatal("expected a change point after mean shift")
	}
	if found.Index < 98 || found.Index > 130 {
		t.Errorf("change point index %d out of expected range [98,130]", found.Index)
	}
	if found.Probability <= 0.5 {
		t.Errorf("change point probability %f not > 0.5", found.Probability)
	}
}

func TestBOCPDNoFalsePositiveStable(t *testing.T) {
	d := NewBOCPDDetector(1.0/100.0, 0.5, 600)
	count := 0
	for i := 0; i < 500; i++ {
		if cp := d.Observe(10.0); cp != nil {
			count++
		}
	}
	if count != 0 {
		t.Errorf("expected zero change points on stable data, got %d", count)
	}
}

func TestBOCPDDetectsVarianceShift(t *testing.T) {
	d := NewBOCPDDetector(1.0/50.0, 0.5, 300)
	count := 0
	for i := 0; i < 100; i++ {
		v := 0.1
		if i%2 == 0 {
			v = -0.1
		}
		if cp := d.Observe(v); cp != nil {
			count++
		}
	}
	for i := 0; i < 100; i++ {
		v := 8.0
		if i%2 == 0 {
			v = -8.0
		}
		if cp := d.Observe(v); cp != nil {
			count++
		}
	}
	if count == 0 {
		t.Error("expected at least one change point after variance shift")
	}
}

func TestBOCPDMultipleChangePoints(t *testing.T) {
	d := NewBOCPDDetector(1.0/50.0, 0.5, 300)
	count := 0
	means := []float64{0.0, 10.0, -5.0}
	for _, m := range means {
		for i := 0; i < 80; i++ {
			if cp := d.Observe(m); cp != nil {
				count++
			}
		}
	}
	if count < 2 {
		t.Errorf("expected at least 2 change points, got %d", count)
	}
}

func TestBOCPDRunLengthDistributionSumsToOne(t *testing.T) {
	d := NewBOCPDDetector(1.0/100.0, 0.5, 300)
	for i := 0; i < 100; i++ {
		d.Observe(0.0)
	}
	for i := 0; i < 100; i++ {
		d.Observe(5.0)
		sum := 0.0
		for _, p := range d.RunLengthDistribution() {
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Fatalf("run length distribution sums to %f, want ~1.0", sum)
		}
	}
}

func TestBOCPDMaxRunLengthTruncation(t *testing.T) {
	d := NewBOCPDDetector(1.0/250.0, 0.5, 50)
	for i := 0; i < 200; i++ {
		d.Observe(1.0)
	}
	dist := d.RunLengthDistribution()
	if len(dist) > 50 {
		t.Fatalf("run length distribution len %d exceeds max 50", len(dist))
	}
	sum := 0.0
	for _, p := range dist {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("non-finite probability %f", p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("truncated distribution sums to %f, want ~1.0", sum)
	}
}

func TestLogSumExpStable(t *testing.T) {
	got := logSumExp([]float64{1000, 1001, 999})
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("logSumExp not stable for large values: %f", got)
	}
	if logSumExp(nil) != math.Inf(-1) {
		t.Error("logSumExp(empty) should be -Inf")
	}
	if got := logSumExp([]float64{3.5}); got != 3.5 {
		t.Errorf("logSumExp(singleton) = %f, want 3.5", got)
	}
}

func TestLnGammaKnownValues(t *testing.T) {
	cases := map[float64]float64{
		1.0: 0.0,
		2.0: 0.0,
		3.0: math.Log(2.0),
		0.5: 0.5 * math.Log(math.Pi),
	}
	for x, want := range cases {
		got := lnGamma(x)
		if math.Abs(got-want) > 1e-8 {
			t.Errorf("lnGamma(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestMostProbableRunLengthGrows(t *testing.T) {
	d := NewBOCPDDetector(1.0/250.0, 0.5, 300)
	for i := 0; i < 50; i++ {
		d.Observe(1.0)
	}
	if d.MostProbableRunLength() < 30 {
		t.Errorf("most probable run length %d < 30 after 50 stable observations", d.MostProbableRunLength())
	}
}

func TestObservationCountTracks(t *testing.T) {
	d := NewBOCPDDetector(1.0/250.0, 0.5, 300)
	if d.ObservationCount() != 0 {
		t.Fatalf("expected 0 observations initially, got %d", d.ObservationCount())
	}
	for i := 1; i <= 10; i++ {
		d.Observe(float64(i))
		if d.ObservationCount() != i {
			t.Fatalf("after %d observe calls, count = %d", i, d.ObservationCount())
		}
	}
}
