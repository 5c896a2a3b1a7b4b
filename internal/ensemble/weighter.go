package ensemble

import (
	"QuantBench/internal/domain/models"
	applogger "QuantBench/pkg/logger"
)

// Weighter combines model predictions into one weight map using a selectable
// strategy. A failing strategy never surfaces to the caller: the weighter
// cascades chosen strategy -> performance_weighted -> equal_weight.
type Weighter struct {
	strategies map[Strategy]strategyFunc
	tracker    *PerformanceTracker
	log        *applogger.Logger

	minModels int
	maxModels int

	strategyPerf map[Strategy]float64
}

// WeighterOption configures a Weighter.
type WeighterOption func(*Weighter)

// WithModelBounds sets the min/max models dynamic_selection may keep.
func WithModelBounds(min, max int) WeighterOption {
	return func(w *Weighter) {
		if min > 0 {
			w.minModels = min
		}
		if max > 0 {
			w.maxModels = max
		}
	}
}

// WithLogger attaches a logger for fallback warnings.
func WithLogger(l *applogger.Logger) WeighterOption {
	return func(w *Weighter) { w.log = l }
}

// NewWeighter creates a Weighter backed by the given performance tracker.
func NewWeighter(tracker *PerformanceTracker, opts ...WeighterOption) *Weighter {
	w := &Weighter{
		tracker:      tracker,
		minModels:    2,
		maxModels:    10,
		strategyPerf: make(map[Strategy]float64),
	}
	w.strategies = map[Strategy]strategyFunc{
		StrategyEqualWeight:         equalWeight,
		StrategyPerformanceWeighted: performanceWeighted,
		StrategyVolatilityAdjusted:  volatilityAdjusted,
		StrategyRegimeAware:         regimeAware,
		StrategyConfidenceWeighted:  confidenceWeighted,
		StrategyDynamicSelection:    dynamicSelection,
		StrategyCorrelationAdjusted: correlationAdjusted,
		StrategyAdaptiveLearning:    adaptiveLearning,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Tracker exposes the underlying performance tracker.
func (w *Weighter) Tracker() *PerformanceTracker { return w.tracker }

// RecordStrategyPerformance feeds back a realized score for a strategy, used
// by adaptive_learning to rescale its mixing coefficients.
func (w *Weighter) RecordStrategyPerformance(s Strategy, score float64) {
	if score > 0 {
		w.strategyPerf[s] = score
	}
}

// Weigh produces normalized, non-negative weights for the given predictions
// under the detected regime. With no predictions it returns an empty result;
// it never returns an error.
func (w *Weighter) Weigh(strategy Strategy, preds []models.ModelPrediction, regime models.Regime, regimeConf float64) models.EnsembleResult {
	res := models.EnsembleResult{
		Strategy:   string(strategy),
		Regime:     regime,
		Confidence: regimeConf,
		Weights:    map[string]float64{},
	}
	if len(preds) == 0 {
		return res
	}

	in := strategyInput{
		preds:        preds,
		perf:         w.tracker.Snapshot(),
		regime:       regime,
		regimeConf:   regimeConf,
		minModels:    w.minModels,
		maxModels:    w.maxModels,
		strategyPerf: w.strategyPerf,
	}

	for _, attempt := range fallbackChain(strategy) {
		fn, ok := w.strategies[attempt]
		if !ok {
			continue
		}
		weights, meta, err := fn(in)
		if err != nil {
			if w.log != nil {
				w.log.Warn("ensemble strategy failed, falling back",
					applogger.String("strategy", string(attempt)),
					applogger.Error(err),
				)
			}
			res.FellBack = true
			continue
		}
		res.Strategy = string(attempt)
		res.Weights = weights
		res.Metadata = meta
		return res
	}

	// Unreachable in practice: equal_weight only fails on zero predictions,
	// which is handled above.
	return res
}

// fallbackChain is the failure cascade for a chosen strategy.
func fallbackChain(s Strategy) []Strategy {
	switch s {
	case StrategyEqualWeight:
		return []Strategy{StrategyEqualWeight}
	case StrategyPerformanceWeighted:
		return []Strategy{StrategyPerformanceWeighted, StrategyEqualWeight}
	default:
		return []Strategy{s, StrategyPerformanceWeighted, StrategyEqualWeight}
	}
}

// Combine merges per-model prediction series into a single signal series per
// asset using the given weights: combined[asset][ts] = Σ weight_m * value_m.
func Combine(predictions map[string]models.AssetSeries, weights map[string]float64) models.AssetSeries {
	combined := make(models.AssetSeries)
	for model, byAsset := range predictions {
		weight, ok := weights[model]
		if !ok || weight == 0 {
			continue
		}
		for asset, series := range byAsset {
			dst, ok := combined[asset]
			if !ok {
				dst = make(models.Series, len(series))
				combined[asset] = dst
			}
			for ts, v := range series {
				dst[ts] += weight * v
			}
		}
	}
	return combined
}
