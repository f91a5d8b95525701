// Package analytics implements the online estimators (C2): Bayesian online
// change-point detection and distribution-free conformal prediction, used
// to drive health and anomaly signals. Both structures are pure and
// single-threaded; see safe.go for a synchronized wrapper.
package analytics

import (
	"math"
)

// ChangePoint is a detected change point in an observation stream.
type ChangePoint struct {
	Index       int
	Probability float64
	PreMean     float64
	PostMean    float64
}

// nigStats are sufficient statistics for a Normal-Inverse-Gamma conjugate
// model at a given run length.
type nigStats struct {
	mu, kappa, alpha, beta float64
}

func defaultPrior() nigStats {
	return nigStats{mu: 0.0, kappa: 0.1, alpha: 1.0, beta: 1.0}
}

func (s nigStats) update(x float64) nigStats {
	kappaNew := s.kappa + 1.0
	muNew := (s.kappa*s.mu + x) / kappaNew
	alphaNew := s.alpha + 0.5
	betaNew := s.beta + 0.5*s.kappa*(x-s.mu)*(x-s.mu)/kappaNew
	return nigStats{mu: muNew, kappa: kappaNew, alpha: alphaNew, beta: betaNew}
}

// logPredictive is the Student-t predictive log-probability for a new
// observation under this NIG posterior.
func (s nigStats) logPredictive(x float64) float64 {
	df := 2.0 * s.alpha
	scaleSq := s.beta * (s.kappa + 1.0) / (s.alpha * s.kappa)
	scale := math.Sqrt(scaleSq)

	z := (x - s.mu) / scale
	halfDF := df / 2.0
	halfDFPlusHalf := (df + 1.0) / 2.0

	return -0.5*math.Log(df*math.Pi*scaleSq) + lnGamma(halfDFPlusHalf) - lnGamma(halfDF) -
		halfDFPlusHalf*math.Log1p(z*z/df)
}

func (s nigStats) predictiveMean() float64 { return s.mu }

// lnGamma is the Lanczos approximation (g=7, n=9) of the log-gamma function.
func lnGamma(x float64) float64 {
	if x <= 0.0 {
		return math.Inf(1)
	}

	coeffs := [9]float64{
		0.9999999999998099,
		676.5203681218851,
		-1259.1392167224028,
		771.3234287776530,
		-176.6150291621406,
		12.507343278686905,
		-0.13857109526572012,
		9.984369578019572e-6,
		1.5056327351493116e-7,
	}

	xm1 := x - 1.0
	sum := coeffs[0]
	for i, c := range coeffs[1:] {
		sum += c / (xm1 + float64(i) + 1.0)
	}

	t := xm1 + 7.5
	return 0.5*math.Log(2.0*math.Pi) + (xm1+0.5)*math.Log(t) - t + math.Log(sum)
}

// changeWindow is the window size for computing the "short run length"
// posterior mass used in change-point detection.
const changeWindow = 15

// BOCPDDetector is a Bayesian Online Change-Point Detector.
type BOCPDDetector struct {
	hazard       float64
	logRunDist   []float64
	stats        []nigStats
	maxRunLength int
	threshold    float64
	index        int
	prior        nigStats
	inChange     bool
	prevMaxRL    int
}

// NewBOCPDDetector creates a detector. hazard is the probability of a
// change point at each step (e.g. 1/250); threshold is the cumulative
// probability on short run lengths that declares a change point (e.g.
// 0.5); maxRunLength truncates the run-length distribution.
func NewBOCPDDetector(hazard, threshold float64, maxRunLength int) *BOCPDDetector {
	prior := defaultPrior()
	return &BOCPDDetector{
		hazard:       hazard,
		logRunDist:   []float64{0.0},
		stats:        []nigStats{prior},
		maxRunLength: maxRunLength,
		threshold:    threshold,
		prior:        prior,
		inChange:     true, // suppress detection at startup
	}
}

// Observe feeds a new data point and returns a detected ChangePoint, if any.
func (d *BOCPDDetector) Observe(x float64) *ChangePoint {
	n := len(d.logRunDist)
	logHazard := math.Log(d.hazard)
	log1mHazard := math.Log(1.0 - d.hazard)

	logPred := make([]float64, n)
	for i, s := range d.stats {
		logPred[i] = s.logPredictive(x)
	}

	newLogRunDist := make([]float64, 0, n+1)

	cpTerms := make([]float64, n)
	for r := 0; r < n; r++ {
		cpTerms[r] = d.logRunDist[r] + logPred[r] + logHazard
	}
	newLogRunDist = append(newLogRunDist, logSumExp(cpTerms))

	for r := 0; r < n; r++ {
		newLogRunDist = append(newLogRunDist, d.logRunDist[r]+logPred[r]+log1mHazard)
	}

	logEvidence := logSumExp(newLogRunDist)
	for i := range newLogRunDist {
		newLogRunDist[i] -= logEvidence
	}

	var preMean float64
	if n >= 2 {
		maxR := 1
		best := math.Inf(-1)
		for r := 1; r < len(d.logRunDist); r++ {
			if d.logRunDist[r] > best {
				best = d.logRunDist[r]
				maxR = r
			}
		}
		if maxR >= len(d.stats) {
			maxR = len(d.stats) - 1
		}
		preMean = d.stats[maxR].predictiveMean()
	} else {
		preMean = d.stats[0].predictiveMean()
	}

	newStats := make([]nigStats, 0, len(newLogRunDist))
	newStats = append(newStats, d.prior.update(x))
	for _, s := range d.stats {
		newStats = append(newStats, s.update(x))
	}

	if len(newLogRunDist) > d.maxRunLength {
		newLogRunDist = newLogRunDist[:d.maxRunLength]
		newStats = newStats[:d.maxRunLength]
		logTotal := logSumExp(newLogRunDist)
		for i := range newLogRunDist {
			newLogRunDist[i] -= logTotal
		}
	}

	window := changeWindow
	if window > len(newLogRunDist) {
		window = len(newLogRunDist)
	}
	var postMean float64
	if window > 0 {
		bestShort := 0
		best := math.Inf(-1)
		for r := 0; r < window; r++ {
			if newLogRunDist[r] > best {
				best = newLogRunDist[r]
				bestShort = r
			}
		}
		postMean = newStats[bestShort].predictiveMean()
	} else {
		postMean = newStats[0].predictiveMean()
	}

	d.logRunDist = newLogRunDist
	d.stats = newStats
	d.index++

	shortMass := d.shortRunMass()
	curMaxRL := d.MostProbableRunLength()

	if curMaxRL >= changeWindow {
		d.inChange = false
	}

	if shortMass > d.threshold && !d.inChange && d.prevMaxRL >= changeWindow {
		d.inChange = true
		d.prevMaxRL = curMaxRL
		return &ChangePoint{
			Index:       d.index - 1,
			Probability: shortMass,
			PreMean:     preMean,
			PostMean:    postMean,
		}
	}
	d.prevMaxRL = curMaxRL
	return nil
}

func (d *BOCPDDetector) shortRunMass() float64 {
	window := changeWindow
	if window > len(d.logRunDist) {
		window = len(d.logRunDist)
	}
	sum := 0.0
	for _, v := range d.logRunDist[:window] {
		sum += math.Exp(v)
	}
	return sum
}

// RunLengthDistribution returns the current run-length posterior as
// probabilities (not log).
func (d *BOCPDDetector) RunLengthDistribution() []float64 {
	out := make([]float64, len(d.logRunDist))
	for i, v := range d.logRunDist {
		out[i] = math.Exp(v)
	}
	return out
}

// ObservationCount is the number of observations processed so far.
func (d *BOCPDDetector) ObservationCount() int { return d.index }

// MostProbableRunLength returns the current argmax of the run-length
// posterior.
func (d *BOCPDDetector) MostProbableRunLength() int {
	best := 0
	bestVal := math.Inf(-1)
	for r, v := range d.logRunDist {
		if v > bestVal {
			bestVal = v
			best = r
		}
	}
	return best
}

// logSumExp is a numerically stable log-sum-exp.
func logSumExp(logVals []float64) float64 {
	if len(logVals) == 0 {
		return math.Inf(-1)
	}
	max := math.Inf(-1)
	for _, v := range logVals {
		if v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, v := range logVals {
		sum += math.Exp(v - max)
	}
	return max + math.Log(sum)
}
