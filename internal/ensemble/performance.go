package ensemble

import (
	"math"
	"sync"
	"time"

	"QuantBench/internal/domain/models"
)

// rollingWindow caps the per-model outcome history used for the 7d/30d
// accuracy figures and the consistency score.
const rollingWindow = 256

// PerformanceTracker keeps per-model rolling outcome history for adaptive
// weighting. It is the only mutable state shared between backtest runs;
// Snapshot returns deep copies so parallel runs read without coordination.
type PerformanceTracker struct {
	mu       sync.RWMutex
	perf     map[string]*models.ModelPerformance
	outcomes map[string][]outcome
}

type outcome struct {
	at      time.Time
	correct bool
	err     float64
}

// NewPerformanceTracker creates an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		perf:     make(map[string]*models.ModelPerformance),
		outcomes: make(map[string][]outcome),
	}
}

// Observe records the outcome of one prediction against the realized price
// and updates the model's rolling and regime-specific accuracy.
func (t *PerformanceTracker) Observe(model string, predicted, actual, prior float64, at time.Time, regime models.Regime) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.perf[model]
	if !ok {
		p = &models.ModelPerformance{
			Model:              model,
			Accuracy:           0.5,
			RecentAccuracy30d:  0.5,
			RecentAccuracy7d:   0.5,
			RegimeAccuracy:     make(map[models.Regime]float64),
			RegimeObservations: make(map[models.Regime]int),
			Consistency:        1.0,
		}
		t.perf[model] = p
	}

	// Direction relative to the price the prediction was made from.
	correct := (actual > prior) == (predicted > prior)
	relErr := 0.0
	if actual != 0 {
		relErr = math.Abs(actual-predicted) / math.Abs(actual)
	}

	p.TotalPredictions++
	if correct {
		p.CorrectPredictions++
	}
	p.Accuracy = float64(p.CorrectPredictions) / float64(p.TotalPredictions)

	if regime != "" {
		n := p.RegimeObservations[regime]
		acc := p.RegimeAccuracy[regime]
		hit := 0.0
		if correct {
			hit = 1.0
		}
		p.RegimeAccuracy[regime] = (acc*float64(n) + hit) / float64(n+1)
		p.RegimeObservations[regime] = n + 1
	}

	os := append(t.outcomes[model], outcome{at: at, correct: correct, err: relErr})
	if len(os) > rollingWindow {
		os = os[len(os)-rollingWindow:]
	}
	t.outcomes[model] = os

	p.RecentAccuracy30d = windowAccuracy(os, at, 30*24*time.Hour)
	p.RecentAccuracy7d = windowAccuracy(os, at, 7*24*time.Hour)
	p.Consistency = consistency(os)
	p.LastUpdated = at
}

func windowAccuracy(os []outcome, now time.Time, window time.Duration) float64 {
	var hits, n int
	cutoff := now.Add(-window)
	for _, o := range os {
		if o.at.Before(cutoff) {
			continue
		}
		n++
		if o.correct {
			hits++
		}
	}
	if n == 0 {
		return 0.5
	}
	return float64(hits) / float64(n)
}

// consistency maps the stddev of relative errors into [0,1]; tight error
// distributions score near 1.
func consistency(os []outcome) float64 {
	if len(os) < 2 {
		return 1.0
	}
	m := 0.0
	for _, o := range os {
		m += o.err
	}
	m /= float64(len(os))
	v := 0.0
	for _, o := range os {
		v += (o.err - m) * (o.err - m)
	}
	sd := math.Sqrt(v / float64(len(os)-1))
	return clamp01(1 - sd)
}

// Snapshot returns a deep copy of all tracked model histories.
func (t *PerformanceTracker) Snapshot() map[string]models.ModelPerformance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.ModelPerformance, len(t.perf))
	for name, p := range t.perf {
		out[name] = p.Clone()
	}
	return out
}

// Get returns a copy of one model's history.
func (t *PerformanceTracker) Get(model string) (models.ModelPerformance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.perf[model]
	if !ok {
		return models.ModelPerformance{}, false
	}
	return p.Clone(), true
}
