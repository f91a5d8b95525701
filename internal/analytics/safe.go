package analytics

import "sync"

// Snapshot is a point-in-time view of the commit-latency estimators,
// safe to copy and log.
type Snapshot struct {
	RunLengthDistribution []float64
	MostProbableRunLength int
	ObservationCount      int
	LastChangePoint       *ChangePoint
	Interval              *PredictionInterval
	EmpiricalCoverage     float64
	HasEmpiricalCoverage  bool
}

// CommitLatencyEstimator combines BOCPD and conformal prediction behind a
// single mutex, fed by the one commit-latency sampler goroutine and read by
// health reporting and tool handlers from arbitrary goroutines.
type CommitLatencyEstimator struct {
	mu        sync.Mutex
	detector  *BOCPDDetector
	predictor *ConformalPredictor
	lastCP    *ChangePoint
}

// NewCommitLatencyEstimator wires a BOCPD detector and a conformal
// predictor tuned for commit-latency observations (seconds).
func NewCommitLatencyEstimator(hazard, cpThreshold float64, maxRunLength int, calibrationWindow int, coverage float64) *CommitLatencyEstimator {
	return &CommitLatencyEstimator{
		detector:  NewBOCPDDetector(hazard, cpThreshold, maxRunLength),
		predictor: NewConformalPredictor(calibrationWindow, coverage),
	}
}

// Observe feeds a new latency sample to both estimators atomically.
func (e *CommitLatencyEstimator) Observe(x float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cp := e.detector.Observe(x); cp != nil {
		e.lastCP = cp
	}
	e.predictor.Observe(x)
}

// Snapshot returns a consistent point-in-time view of both estimators.
func (e *CommitLatencyEstimator) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		RunLengthDistribution: e.detector.RunLengthDistribution(),
		MostProbableRunLength: e.detector.MostProbableRunLength(),
		ObservationCount:      e.detector.ObservationCount(),
		LastChangePoint:       e.lastCP,
	}
	if iv, ok := e.predictor.Predict(); ok {
		ivCopy := iv
		snap.Interval = &ivCopy
	}
	if cov, ok := e.predictor.EmpiricalCoverage(); ok {
		snap.EmpiricalCoverage = cov
		snap.HasEmpiricalCoverage = true
	}
	return snap
}
