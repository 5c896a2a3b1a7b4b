package ensemble

import (
	"math"
	"sync"
	"time"

	"QuantBench/internal/domain/models"
)

// Regime detection thresholds. These are explicit heuristics carried over
// from the production calibration, not a statistically validated model.
const (
	DefaultLookback            = 50
	DefaultVolatilityThreshold = 0.015
	DefaultTrendThreshold      = 0.02

	crisisVIXLevel        = 0.3 // normalized VIX (raw / 100)
	riskOffVIXLevel       = 0.15
	interventionProbLevel = 0.7
	carryRateDiffLevel    = 0.02
)

// RegimeDetector classifies the most recent price window into one of ten
// market regimes using realized volatility, trend magnitude, moving-average
// divergence, price range and optional macro inputs. Crisis and intervention
// take priority over trend/range classification.
type RegimeDetector struct {
	lookback      int
	volThreshold  float64
	trendThreshold float64

	mu      sync.Mutex
	history []regimeObservation
}

type regimeObservation struct {
	at      time.Time
	reading models.RegimeReading
}

// RegimeOption configures a detector.
type RegimeOption func(*RegimeDetector)

// WithLookback sets the observation window.
func WithLookback(n int) RegimeOption {
	return func(d *RegimeDetector) {
		if n > 1 {
			d.lookback = n
		}
	}
}

// WithThresholds sets the volatility and trend thresholds.
func WithThresholds(vol, trend float64) RegimeOption {
	return func(d *RegimeDetector) {
		if vol > 0 {
			d.volThreshold = vol
		}
		if trend > 0 {
			d.trendThreshold = trend
		}
	}
}

// NewRegimeDetector creates a detector with default thresholds.
func NewRegimeDetector(opts ...RegimeOption) *RegimeDetector {
	d := &RegimeDetector{
		lookback:       DefaultLookback,
		volThreshold:   DefaultVolatilityThreshold,
		trendThreshold: DefaultTrendThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect classifies the last lookback prices. With fewer observations than
// the lookback it returns the low-volatility ranging regime at neutral
// confidence. Confidence is a bounded heuristic in [0,1] derived from how far
// the deciding metric exceeds its threshold.
func (d *RegimeDetector) Detect(prices []float64, macro models.MacroInputs) models.RegimeReading {
	if len(prices) < d.lookback {
		return d.record(models.RegimeReading{Regime: models.RegimeRangingLoVol, Confidence: 0.5})
	}
	window := prices[len(prices)-d.lookback:]

	vol := windowVolatility(window)

	first, last := window[0], window[len(window)-1]
	priceChange := 0.0
	if first != 0 {
		priceChange = (last - first) / first
	}
	trendStrength := math.Abs(priceChange)

	shortMA := tailMean(window, 10)
	longMA := tailMean(window, 30)
	maDivergence := 0.0
	if longMA != 0 {
		maDivergence = (shortMA - longMA) / longMA
	}

	lo, hi := window[0], window[0]
	sum := 0.0
	for _, p := range window {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
		sum += p
	}
	priceRange := 0.0
	if avg := sum / float64(len(window)); avg != 0 {
		priceRange = (hi - lo) / avg
	}

	crisis := macro.VIX / 100
	reading := models.RegimeReading{Regime: models.RegimeRangingLoVol, Confidence: 0.5}

	switch {
	case crisis > crisisVIXLevel || vol > d.volThreshold*2:
		reading.Regime = models.RegimeCrisis
		reading.Confidence = clamp01(math.Min(0.9, 0.5+crisis+vol/d.volThreshold))

	case macro.InterventionProb > interventionProbLevel:
		reading.Regime = models.RegimeIntervention
		reading.Confidence = clamp01(macro.InterventionProb)

	case trendStrength > d.trendThreshold && math.Abs(maDivergence) > 0.01:
		if priceChange > 0 {
			reading.Regime = models.RegimeTrendingBull
		} else {
			reading.Regime = models.RegimeTrendingBear
		}
		reading.Confidence = clamp01(math.Min(0.9, 0.5+trendStrength/d.trendThreshold))

	case priceRange > d.trendThreshold*1.5 && vol > d.volThreshold:
		reading.Regime = models.RegimeBreakout
		reading.Confidence = clamp01(math.Min(0.8, 0.5+priceRange/d.trendThreshold))

	case math.Abs(macro.RateDifferential) > carryRateDiffLevel && vol < d.volThreshold:
		reading.Regime = models.RegimeCarryTrade
		reading.Confidence = clamp01(math.Min(0.8, 0.5+math.Abs(macro.RateDifferential)/(2*carryRateDiffLevel)))

	case crisis > riskOffVIXLevel && vol > d.volThreshold*0.8:
		reading.Regime = models.RegimeRiskOff
		reading.Confidence = clamp01(math.Min(0.8, 0.4+crisis+vol/d.volThreshold))

	case vol > d.volThreshold:
		reading.Regime = models.RegimeRangingHiVol
		reading.Confidence = clamp01(math.Min(0.7, 0.5+vol/d.volThreshold))

	default:
		reading.Regime = models.RegimeRangingLoVol
		reading.Confidence = clamp01(math.Min(0.7, 0.6-vol/d.volThreshold))
	}

	return d.record(reading)
}

func (d *RegimeDetector) record(r models.RegimeReading) models.RegimeReading {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, regimeObservation{at: time.Now(), reading: r})
	if len(d.history) > 100 {
		d.history = d.history[len(d.history)-100:]
	}
	return r
}

// Stability is the share of the last n readings agreeing with the most common
// one. Below n observations it reports the neutral 0.5.
func (d *RegimeDetector) Stability(n int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n <= 0 || len(d.history) < n {
		return 0.5
	}
	counts := make(map[models.Regime]int)
	for _, obs := range d.history[len(d.history)-n:] {
		counts[obs.reading.Regime]++
	}
	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	return float64(best) / float64(n)
}

// TransitionProbs returns a normalized heuristic distribution over the next
// regime given the current one.
func (d *RegimeDetector) TransitionProbs(current models.Regime) map[models.Regime]float64 {
	probs := map[models.Regime]float64{
		models.RegimeTrendingBull: 0.1,
		models.RegimeTrendingBear: 0.1,
		models.RegimeRangingHiVol: 0.2,
		models.RegimeRangingLoVol: 0.3,
		models.RegimeBreakout:     0.1,
		models.RegimeReversal:     0.05,
		models.RegimeCrisis:       0.02,
		models.RegimeCarryTrade:   0.08,
		models.RegimeRiskOff:      0.03,
		models.RegimeIntervention: 0.02,
	}
	switch current {
	case models.RegimeTrendingBull:
		probs[models.RegimeTrendingBull] = 0.4
		probs[models.RegimeReversal] = 0.15
		probs[models.RegimeRangingHiVol] = 0.25
	case models.RegimeCrisis:
		probs[models.RegimeCrisis] = 0.5
		probs[models.RegimeRiskOff] = 0.3
		probs[models.RegimeRangingHiVol] = 0.15
	}
	total := 0.0
	for _, p := range probs {
		total += p
	}
	for k, p := range probs {
		probs[k] = p / total
	}
	return probs
}

// windowVolatility is the population stddev of simple returns in the window.
func windowVolatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, (prices[i]-prices[i-1])/prices[i-1])
	}
	m := 0.0
	for _, r := range rets {
		m += r
	}
	m /= float64(len(rets))
	v := 0.0
	for _, r := range rets {
		v += (r - m) * (r - m)
	}
	return math.Sqrt(v / float64(len(rets)))
}

// tailMean averages the last n elements (or all of them when fewer exist).
func tailMean(xs []float64, n int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if n > len(xs) {
		n = len(xs)
	}
	sum := 0.0
	for _, x := range xs[len(xs)-n:] {
		sum += x
	}
	return sum / float64(n)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
