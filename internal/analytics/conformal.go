package analytics

import (
	"math"
	"sort"
)

// minCalibration is the minimum calibration window size before predictions
// are emitted.
const minCalibration = 30

// PredictionInterval is a distribution-free prediction interval with a
// finite-sample coverage guarantee.
type PredictionInterval struct {
	Lower           float64
	Upper           float64
	Coverage        float64
	CalibrationSize int
}

// ConformalPredictor is a distribution-free conformal predictor using
// nonconformity scores over a sliding calibration window.
type ConformalPredictor struct {
	observations    []float64 // calibration window, oldest first; Observe drops the oldest when full
	head            int
	window          int
	coverage        float64
	totalCount      int
	hits            int
	predictionsMade int
}

// NewConformalPredictor creates a predictor. window bounds the calibration
// set size; coverage is the nominal coverage level (e.g. 0.90), clamped to
// (0, 1).
func NewConformalPredictor(window int, coverage float64) *ConformalPredictor {
	if coverage < minNormal {
		coverage = minNormal
	}
	if coverage > 1.0-epsilon {
		coverage = 1.0 - epsilon
	}
	return &ConformalPredictor{window: window, coverage: coverage}
}

const minNormal = 2.2250738585072014e-308 // math.SmallestNonzeroFloat64
const epsilon = 2.220446049250313e-16     // math.Nextafter(1,2)-1, f64::EPSILON

// Observe adds a new data point to the calibration window, first checking
// whether it falls inside the interval predicted before this observation
// (for empirical coverage tracking).
func (p *ConformalPredictor) Observe(x float64) {
	if interval, ok := p.Predict(); ok {
		p.predictionsMade++
		if x >= interval.Lower && x <= interval.Upper {
			p.hits++
		}
	}

	if len(p.observations) >= p.window {
		p.observations = p.observations[1:]
	}
	p.observations = append(p.observations, x)
	p.totalCount++
}

// Predict computes a prediction interval for the next observation. Returns
// ok=false if the calibration window has fewer than minCalibration
// observations.
func (p *ConformalPredictor) Predict() (PredictionInterval, bool) {
	n := len(p.observations)
	if n < minCalibration {
		return PredictionInterval{}, false
	}

	median := p.median()

	scores := make([]float64, n)
	for i, x := range p.observations {
		scores[i] = math.Abs(x - median)
	}
	sort.Float64s(scores)

	quantileIdx := int(math.Ceil((float64(n) + 1.0) * p.coverage))
	if quantileIdx > n {
		quantileIdx = n
	}
	quantileIdx-- // 0-indexed, capped at n-1
	if quantileIdx < 0 {
		quantileIdx = 0
	}
	q := scores[quantileIdx]

	return PredictionInterval{
		Lower:           median - q,
		Upper:           median + q,
		Coverage:        p.coverage,
		CalibrationSize: n,
	}, true
}

func (p *ConformalPredictor) median() float64 {
	n := len(p.observations)
	if n == 0 {
		return 0.0
	}
	values := make([]float64, n)
	copy(values, p.observations)
	sort.Float64s(values)

	mid := n / 2
	if n%2 == 0 {
		return (values[mid-1] + values[mid]) / 2.0
	}
	return values[mid]
}

// CalibrationSize is the number of observations currently in the window.
func (p *ConformalPredictor) CalibrationSize() int { return len(p.observations) }

// TotalObservations is the total number of observations seen, including
// those evicted from the window.
func (p *ConformalPredictor) TotalObservations() int { return p.totalCount }

// EmpiricalCoverage is the fraction of predictions that contained the
// following observation. Returns ok=false if no predictions have been made.
func (p *ConformalPredictor) EmpiricalCoverage() (float64, bool) {
	if p.predictionsMade == 0 {
		return 0, false
	}
	return float64(p.hits) / float64(p.predictionsMade), true
}
