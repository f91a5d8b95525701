package analytics

import (
	"math"
	"testing"
)

func mustPredict(t *testing.T, p *ConformalPredictor) PredictionInterval {
	t.Helper()
	iv, ok := p.Predict()
	if !ok {
		t.Fatal("expected a prediction interval")
	}
	return iv
}

func TestConformalCoverageGuarantee(t *testing.T) {
	p := NewConformalPredictor(200, 0.90)
	for i := 0; i < 10000; i++ {
		phase := float64(i) * 0.1
		p.Observe(math.Sin(phase) * 2.0)
	}
	cov, ok := p.EmpiricalCoverage()
	if !ok {
		t.Fatal("expected empirical coverage")
	}
	if cov < 0.88 {
		t.Errorf("empirical coverage %.3f should be >= 0.88", cov)
	}
}

func TestConformalWindowSizeRespected(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 200; i++ {
		p.Observe(float64(i))
	}
	if p.CalibrationSize() != 100 {
		t.Errorf("calibration size = %d, want 100", p.CalibrationSize())
	}
	if p.TotalObservations() != 200 {
		t.Errorf("total observations = %d, want 200", p.TotalObservations())
	}
}

func TestConformalNoneWhenInsufficient(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 29; i++ {
		p.Observe(float64(i))
	}
	if _, ok := p.Predict(); ok {
		t.Error("should return not-ok with only 29 observations")
	}
	p.Observe(29.0)
	if _, ok := p.Predict(); !ok {
		t.Error("should return ok with 30 observations")
	}
}

func TestConformalAdaptsToDistributionShift(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 100; i++ {
		p.Observe(math.Sin(float64(i) * 0.5))
	}
	before := mustPredict(t, p)

	for i := 0; i < 100; i++ {
		p.Observe(10.0 + math.Sin(float64(i)*0.5))
	}
	after := mustPredict(t, p)

	centerBefore := (before.Lower + before.Upper) / 2.0
	centerAfter := (after.Lower + after.Upper) / 2.0
	if centerAfter <= centerBefore+5.0 {
		t.Errorf("interval center should shift: before=%.2f after=%.2f", centerBefore, centerAfter)
	}
}

func TestConformalConstantDataNarrowInterval(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 50; i++ {
		p.Observe(42.0)
	}
	iv := mustPredict(t, p)
	width := iv.Upper - iv.Lower
	if width >= 1e-10 {
		t.Errorf("constant data should produce near-zero width, got %v", width)
	}
}

func TestConformalEmpiricalCoverageNoneBeforePredictions(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	if _, ok := p.EmpiricalCoverage(); ok {
		t.Error("expected no empirical coverage before predictions")
	}
}

func TestConformalGetters(t *testing.T) {
	p := NewConformalPredictor(50, 0.90)
	if p.CalibrationSize() != 0 || p.TotalObservations() != 0 {
		t.Fatal("expected zero getters initially")
	}
	for i := 0; i < 75; i++ {
		p.Observe(float64(i))
	}
	if p.CalibrationSize() != 50 {
		t.Errorf("calibration size = %d, want 50", p.CalibrationSize())
	}
	if p.TotalObservations() != 75 {
		t.Errorf("total observations = %d, want 75", p.TotalObservations())
	}
}

func TestConformalEvenCalibrationCount(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 30; i++ {
		p.Observe(float64(i))
	}
	iv := mustPredict(t, p)
	if iv.CalibrationSize != 30 {
		t.Errorf("calibration size = %d, want 30", iv.CalibrationSize)
	}
	if !(iv.Lower < iv.Upper) {
		t.Error("expected lower < upper")
	}
}

func TestConformalCoverageForHeavyTailed(t *testing.T) {
	p := NewConformalPredictor(200, 0.90)
	n := 5000
	for i := 0; i < n; i++ {
		h := (uint64(i) * 2654435761 + 13) % 10000
		u := (float64(h) + 0.5) / 10001.0
		angle := (u - 0.5) * math.Pi * 0.95
		p.Observe(math.Tan(angle))
	}
	cov, ok := p.EmpiricalCoverage()
	if !ok {
		t.Fatal("expected empirical coverage")
	}
	if cov < 0.85 {
		t.Errorf("empirical coverage %.3f on heavy-tailed data should be >= 0.85", cov)
	}
}

func TestConformalIntervalMetadata(t *testing.T) {
	p := NewConformalPredictor(500, 0.90)
	for i := 0; i < 100; i++ {
		h := (uint64(i) * 2654435761) % 1000
		p.Observe((float64(h)/1000.0)*0.2 + 5.0 - 0.1)
	}
	iv := mustPredict(t, p)
	if math.Abs(iv.Coverage-0.90) > 1e-10 {
		t.Errorf("coverage = %v, want 0.90", iv.Coverage)
	}
	if iv.CalibrationSize != 100 {
		t.Errorf("calibration size = %d, want 100", iv.CalibrationSize)
	}
	if !(iv.Lower < iv.Upper) {
		t.Errorf("lower (%v) should be < upper (%v)", iv.Lower, iv.Upper)
	}
	center := (iv.Lower + iv.Upper) / 2.0
	if math.Abs(center-5.0) > 0.5 {
		t.Errorf("center should be near 5.0, got %v", center)
	}
}

func TestConformalMedianOddCount(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 31; i++ {
		p.Observe(float64(i))
	}
	iv := mustPredict(t, p)
	center := (iv.Lower + iv.Upper) / 2.0
	if math.Abs(center-15.0) > 1e-10 {
		t.Errorf("center should be 15.0, got %v", center)
	}
}

func TestConformalHighCoverageWiderIntervals(t *testing.T) {
	p90 := NewConformalPredictor(200, 0.90)
	p99 := NewConformalPredictor(200, 0.99)
	for i := 0; i < 100; i++ {
		x := float64(i) * 0.1
		p90.Observe(x)
		p99.Observe(x)
	}
	iv90 := mustPredict(t, p90)
	iv99 := mustPredict(t, p99)
	w90 := iv90.Upper - iv90.Lower
	w99 := iv99.Upper - iv99.Lower
	if w99 < w90 {
		t.Errorf("99%% interval (%.4f) should be >= 90%% interval (%.4f)", w99, w90)
	}
}

func TestConformalLowCoverageNarrowIntervals(t *testing.T) {
	p90 := NewConformalPredictor(200, 0.90)
	p10 := NewConformalPredictor(200, 0.10)
	for i := 0; i < 100; i++ {
		x := float64(i) * 0.1
		p90.Observe(x)
		p10.Observe(x)
	}
	iv90 := mustPredict(t, p90)
	iv10 := mustPredict(t, p10)
	w90 := iv90.Upper - iv90.Lower
	w10 := iv10.Upper - iv10.Lower
	if w10 > w90 {
		t.Errorf("10%% interval (%.4f) should be <= 90%% interval (%.4f)", w10, w90)
	}
}

func TestConformalNegativeData(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < 50; i++ {
		p.Observe(-100.0 + float64(i))
	}
	iv := mustPredict(t, p)
	center := (iv.Lower + iv.Upper) / 2.0
	if center >= 0.0 {
		t.Errorf("center should be negative, got %v", center)
	}
	if !(iv.Lower < iv.Upper) {
		t.Error("interval should have positive width")
	}
}

func TestConformalExactlyMinCalibration(t *testing.T) {
	p := NewConformalPredictor(100, 0.90)
	for i := 0; i < minCalibration; i++ {
		p.Observe(float64(i))
	}
	if p.CalibrationSize() != minCalibration {
		t.Fatalf("calibration size = %d, want %d", p.CalibrationSize(), minCalibration)
	}
	iv := mustPredict(t, p)
	if iv.CalibrationSize != minCalibration {
		t.Errorf("interval calibration size = %d, want %d", iv.CalibrationSize, minCalibration)
	}
}

func TestConformalTinyWindow(t *testing.T) {
	p := NewConformalPredictor(1, 0.90)
	for i := 0; i < 1000; i++ {
		p.Observe(float64(i))
	}
	if p.CalibrationSize() != 1 {
		t.Fatalf("calibration size = %d, want 1", p.CalibrationSize())
	}
	if _, ok := p.Predict(); ok {
		t.Error("expected no prediction with window=1")
	}
	if _, ok := p.EmpiricalCoverage(); ok {
		t.Error("expected no empirical coverage with window=1")
	}
}

func TestConformalRepeatedValuesHighCoverage(t *testing.T) {
	p := NewConformalPredictor(200, 0.90)
	for i := 0; i < 50; i++ {
		p.Observe(5.0)
	}
	p.Observe(5.0)
	cov, ok := p.EmpiricalCoverage()
	if !ok {
		t.Fatal("expected empirical coverage")
	}
	if math.Abs(cov-1.0) > 1e-10 {
		t.Errorf("constant data should have 100%% coverage, got %v", cov)
	}
}

func TestConformalLargeWindowSmallData(t *testing.T) {
	p := NewConformalPredictor(10000, 0.90)
	for i := 0; i < 35; i++ {
		p.Observe(float64(i))
	}
	if p.CalibrationSize() != 35 {
		t.Errorf("calibration size = %d, want 35", p.CalibrationSize())
	}
	if p.TotalObservations() != 35 {
		t.Errorf("total observations = %d, want 35", p.TotalObservations())
	}
	if _, ok := p.Predict(); !ok {
		t.Error("expected a prediction with 35 observations")
	}
}

func TestConformalEmpiricalCoverageBounds(t *testing.T) {
	p := NewConformalPredictor(50, 0.90)
	for i := 0; i < 40; i++ {
		p.Observe(float64(i))
	}
	for i := 0; i < 20; i++ {
		p.Observe(99999.0)
	}
	if cov, ok := p.EmpiricalCoverage(); ok {
		if cov < 0.0 || cov > 1.0 {
			t.Errorf("coverage should be in [0,1], got %v", cov)
		}
	}
}
