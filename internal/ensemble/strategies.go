package ensemble

import (
	"fmt"
	"math"
	"sort"

	"QuantBench/internal/domain/models"
)

// Strategy is a fixed enumerated choice of weighting scheme.
type Strategy string

const (
	StrategyEqualWeight         Strategy = "equal_weight"
	StrategyPerformanceWeighted Strategy = "performance_weighted"
	StrategyVolatilityAdjusted  Strategy = "volatility_adjusted"
	StrategyRegimeAware         Strategy = "regime_aware"
	StrategyConfidenceWeighted  Strategy = "confidence_weighted"
	StrategyDynamicSelection    Strategy = "dynamic_selection"
	StrategyCorrelationAdjusted Strategy = "correlation_adjusted"
	StrategyAdaptiveLearning    Strategy = "adaptive_learning"
)

// ParseStrategy validates a raw strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyEqualWeight, StrategyPerformanceWeighted, StrategyVolatilityAdjusted,
		StrategyRegimeAware, StrategyConfidenceWeighted, StrategyDynamicSelection,
		StrategyCorrelationAdjusted, StrategyAdaptiveLearning:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown ensemble strategy: %q", s)
}

// strategyInput bundles the read-only inputs every strategy sees. perf is a
// snapshot copy; strategies never mutate shared state.
type strategyInput struct {
	preds      []models.ModelPrediction
	perf       map[string]models.ModelPerformance
	regime     models.Regime
	regimeConf float64

	minModels int
	maxModels int

	// Relative performance of whole strategies, used only by
	// adaptive_learning to rescale its fixed mixing coefficients.
	strategyPerf map[Strategy]float64
}

type strategyFunc func(in strategyInput) (map[string]float64, map[string]interface{}, error)

// Clamp bounds for per-model performance weights, per the production
// calibration: a model never dominates nor vanishes entirely before
// normalization.
const (
	perfWeightFloor = 0.1
	perfWeightCeil  = 0.9

	regimeMinObservations = 5
	regimeAccuracyBlend   = 0.3

	selectionShare   = 0.6
	selectionMinObs  = 3
	minPredVolatility = 0.001
)

func equalWeight(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}
	weights := make(map[string]float64, len(in.preds))
	for _, p := range in.preds {
		weights[p.Model] = 1.0 / float64(len(in.preds))
	}
	return weights, map[string]interface{}{"num_models": len(in.preds)}, nil
}

// performanceWeighted weights by rolling 30d accuracy, boosted by ±30% of the
// deviation from 0.5 of the model's regime-specific accuracy when the regime
// has enough observations. Each weight is clamped to [0.1, 0.9] before
// normalization.
func performanceWeighted(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}
	weights := make(map[string]float64, len(in.preds))
	total := 0.0
	for _, pred := range in.preds {
		w := 0.5 // new model default
		if perf, ok := in.perf[pred.Model]; ok {
			w = perf.RecentAccuracy30d
			if acc, ok := perf.RegimeAccuracy[in.regime]; ok && perf.RegimeObservations[in.regime] > regimeMinObservations {
				w += regimeAccuracyBlend * (acc - 0.5)
			}
		}
		w = math.Max(perfWeightFloor, math.Min(perfWeightCeil, w))
		weights[pred.Model] = w
		total += w
	}
	meta := map[string]interface{}{"total_performance": total}
	return normalize(weights, len(in.preds)), meta, nil
}

// volatilityAdjusted weights by inverse predicted volatility scaled by model
// confidence.
func volatilityAdjusted(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}
	weights := make(map[string]float64, len(in.preds))
	avgVol := 0.0
	for _, pred := range in.preds {
		vol := math.Max(minPredVolatility, pred.Volatility)
		weights[pred.Model] = pred.Confidence / vol
		avgVol += pred.Volatility
	}
	meta := map[string]interface{}{"avg_volatility": avgVol / float64(len(in.preds))}
	return normalize(weights, len(in.preds)), meta, nil
}

// regimeAware multiplies a base performance weight by a regime-confidence
// blended multiplier from the model's stored per-regime performance, then by
// the model's own confidence in the detected regime.
func regimeAware(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}
	weights := make(map[string]float64, len(in.preds))
	for _, pred := range in.preds {
		base := 0.5
		if perf, ok := in.perf[pred.Model]; ok {
			base = perf.RecentAccuracy30d
		}

		multiplier := 1.0
		if rp, ok := pred.RegimePerformance[in.regime]; ok {
			multiplier = 0.5 + rp // scale from 0.5 to 1.5
		}
		// Blend toward neutral when regime detection itself is uncertain.
		regimeWeight := in.regimeConf*multiplier + (1 - in.regimeConf)

		modelConf, ok := pred.RegimeConfidence[in.regime]
		if !ok {
			modelConf = 0.5
		}
		weights[pred.Model] = base * regimeWeight * modelConf
	}
	meta := map[string]interface{}{
		"regime":            string(in.regime),
		"regime_confidence": in.regimeConf,
	}
	return normalize(weights, len(in.preds)), meta, nil
}

// confidenceWeighted weights by stated confidence, nudged by ±30% of the
// model's lifetime accuracy deviation from coin-flip.
func confidenceWeighted(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}
	weights := make(map[string]float64, len(in.preds))
	total := 0.0
	for _, pred := range in.preds {
		conf := pred.Confidence
		if perf, ok := in.perf[pred.Model]; ok {
			conf += (perf.Accuracy - 0.5) * 0.3
		}
		conf = math.Max(0.1, math.Min(0.95, conf))
		weights[pred.Model] = conf
		total += conf
	}
	meta := map[string]interface{}{"avg_confidence": total / float64(len(in.preds))}
	return normalize(weights, len(in.preds)), meta, nil
}

// dynamicSelection ranks models by a composite score and keeps the top 60%
// (bounded by min/max models), zero-weighting the rest.
func dynamicSelection(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}

	type scored struct {
		model string
		score float64
	}
	scores := make([]scored, 0, len(in.preds))
	for _, pred := range in.preds {
		score := 0.5
		if perf, ok := in.perf[pred.Model]; ok {
			score = perf.RecentAccuracy7d*0.6 + perf.RecentAccuracy30d*0.4
			if acc, ok := perf.RegimeAccuracy[in.regime]; ok && perf.RegimeObservations[in.regime] > selectionMinObs {
				score += (acc - 0.5) * 0.5
			}
			score += (pred.Confidence - 0.5) * 0.2
			score -= (1 - perf.Consistency) * 0.1
		}
		scores = append(scores, scored{model: pred.Model, score: score})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].model < scores[j].model
	})

	n := int(float64(len(scores)) * selectionShare)
	if n < in.minModels {
		n = in.minModels
	}
	if in.maxModels > 0 && n > in.maxModels {
		n = in.maxModels
	}
	if n > len(scores) {
		n = len(scores)
	}
	selected := scores[:n]

	weights := make(map[string]float64, len(in.preds))
	for _, pred := range in.preds {
		weights[pred.Model] = 0
	}
	total := 0.0
	for _, s := range selected {
		total += s.score
	}
	if total > 0 {
		for _, s := range selected {
			weights[s.model] = s.score / total
		}
	} else {
		for _, s := range selected {
			weights[s.model] = 1.0 / float64(len(selected))
		}
	}

	meta := map[string]interface{}{
		"models_selected": len(selected),
		"top_model":       selected[0].model,
		"top_score":       selected[0].score,
	}
	return weights, meta, nil
}

// correlationAdjusted starts from performance weights and penalizes
// predictions far from the price consensus, so near-duplicate models do not
// concentrate the book.
func correlationAdjusted(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	base, _, err := performanceWeighted(in)
	if err != nil {
		return nil, nil, err
	}

	priceMean := 0.0
	for _, pred := range in.preds {
		priceMean += pred.Price
	}
	priceMean /= float64(len(in.preds))

	weights := make(map[string]float64, len(in.preds))
	maxDev := 0.0
	for _, pred := range in.preds {
		penalty := 0.0
		if priceMean > 0 {
			dev := math.Abs(pred.Price-priceMean) / priceMean
			penalty = math.Min(0.3, dev*2)
			if dev > maxDev {
				maxDev = dev
			}
		}
		weights[pred.Model] = base[pred.Model] * (1 - penalty)
	}

	meta := map[string]interface{}{"max_deviation": maxDev}
	return normalize(weights, len(in.preds)), meta, nil
}

// adaptiveLearning is explicit composition: it runs the three sub-strategies
// and mixes their weight maps with fixed coefficients, rescaled by recorded
// per-strategy performance when available. No state is shared between the
// sub-strategy calls.
func adaptiveLearning(in strategyInput) (map[string]float64, map[string]interface{}, error) {
	if len(in.preds) == 0 {
		return nil, nil, fmt.Errorf("no predictions")
	}

	parts := []struct {
		strategy Strategy
		fn       strategyFunc
		coeff    float64
	}{
		{StrategyPerformanceWeighted, performanceWeighted, 0.4},
		{StrategyRegimeAware, regimeAware, 0.4},
		{StrategyConfidenceWeighted, confidenceWeighted, 0.2},
	}

	if len(in.strategyPerf) > 0 {
		total := 0.0
		for i := range parts {
			total += in.strategyPerf[parts[i].strategy]
		}
		if total > 0 {
			for i := range parts {
				parts[i].coeff = in.strategyPerf[parts[i].strategy] / total
			}
		}
	}

	combined := make(map[string]float64, len(in.preds))
	mix := make(map[string]float64, len(parts))
	for _, part := range parts {
		weights, _, err := part.fn(in)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", part.strategy, err)
		}
		for model, w := range weights {
			combined[model] += part.coeff * w
		}
		mix[string(part.strategy)] = part.coeff
	}

	meta := map[string]interface{}{"strategy_mix": mix}
	return normalize(combined, len(in.preds)), meta, nil
}

// normalize scales weights to sum to 1. A non-positive or non-finite total
// falls back to equal weighting over the same keys.
func normalize(weights map[string]float64, n int) map[string]float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		for k := range weights {
			weights[k] = 1.0 / float64(n)
		}
		return weights
	}
	for k, w := range weights {
		weights[k] = w / total
	}
	return weights
}
