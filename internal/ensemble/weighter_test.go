package ensemble

import (
	"fmt"
	"math"
	"testing"
	"time"

	"QuantBench/internal/domain/models"
)

func predictions(confidences ...float64) []models.ModelPrediction {
	preds := make([]models.ModelPrediction, len(confidences))
	for i, c := range confidences {
		preds[i] = models.ModelPrediction{
			Model:      fmt.Sprintf("model-%d", i),
			Asset:      "AAA",
			Price:      100 + float64(i),
			Direction:  1,
			Confidence: c,
			Volatility: 0.1 + 0.05*float64(i),
		}
	}
	return preds
}

func TestEqualWeightIgnoresConfidence(t *testing.T) {
	w := NewWeighter(NewPerformanceTracker())
	res := w.Weigh(StrategyEqualWeight, predictions(0.9, 0.1, 0.5), models.RegimeRangingLoVol, 0.5)

	for model, weight := range res.Weights {
		if math.Abs(weight-1.0/3) > 1e-12 {
			t.Fatalf("%s weight = %v, want 1/3", model, weight)
		}
	}
}

func TestAllStrategiesNormalized(t *testing.T) {
	tracker := NewPerformanceTracker()
	now := time.Now()
	// give the tracker some history so performance paths are exercised
	for i := 0; i < 20; i++ {
		actual := 101.0
		if i%3 == 0 {
			actual = 99.0
		}
		tracker.Observe("model-0", 102, actual, 100, now, models.RegimeRangingLoVol)
		tracker.Observe("model-1", 98, actual, 100, now, models.RegimeRangingLoVol)
		tracker.Observe("model-2", 101, actual, 100, now, models.RegimeTrendingBull)
	}

	w := NewWeighter(tracker, WithModelBounds(1, 10))
	strategies := []Strategy{
		StrategyEqualWeight, StrategyPerformanceWeighted, StrategyVolatilityAdjusted,
		StrategyRegimeAware, StrategyConfidenceWeighted, StrategyDynamicSelection,
		StrategyCorrelationAdjusted, StrategyAdaptiveLearning,
	}
	for _, s := range strategies {
		res := w.Weigh(s, predictions(0.9, 0.1, 0.5), models.RegimeRangingLoVol, 0.7)
		sum := 0.0
		for model, weight := range res.Weights {
			if weight < 0 {
				t.Fatalf("%s: negative weight %v for %s", s, weight, model)
			}
			sum += weight
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%s: weights sum to %v, want 1", s, sum)
		}
	}
}

func TestPerformanceWeightedClampsAndBoosts(t *testing.T) {
	perf := map[string]models.ModelPerformance{
		"model-0": {Model: "model-0", RecentAccuracy30d: 0.99},
		"model-1": {Model: "model-1", RecentAccuracy30d: 0.01},
	}
	in := strategyInput{preds: predictions(0.5, 0.5), perf: perf, regime: models.RegimeRangingLoVol}

	weights, _, err := performanceWeighted(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// clamped to [0.1, 0.9] before normalization: 0.9/(0.9+0.1) and 0.1/(0.9+0.1)
	if math.Abs(weights["model-0"]-0.9) > 1e-12 {
		t.Fatalf("model-0 weight = %v, want 0.9", weights["model-0"])
	}
	if math.Abs(weights["model-1"]-0.1) > 1e-12 {
		t.Fatalf("model-1 weight = %v, want 0.1", weights["model-1"])
	}
}

func TestPerformanceWeightedRegimeBoostNeedsObservations(t *testing.T) {
	perf := map[string]models.ModelPerformance{
		"model-0": {
			Model:              "model-0",
			RecentAccuracy30d:  0.5,
			RegimeAccuracy:     map[models.Regime]float64{models.RegimeCrisis: 0.9},
			RegimeObservations: map[models.Regime]int{models.RegimeCrisis: 3}, // below threshold
		},
		"model-1": {Model: "model-1", RecentAccuracy30d: 0.5},
	}
	in := strategyInput{preds: predictions(0.5, 0.5), perf: perf, regime: models.RegimeCrisis}

	weights, _, err := performanceWeighted(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(weights["model-0"]-weights["model-1"]) > 1e-12 {
		t.Fatalf("regime boost applied below observation threshold: %v", weights)
	}
}

func TestDynamicSelectionKeepsTopModels(t *testing.T) {
	perf := make(map[string]models.ModelPerformance)
	preds := predictions(0.5, 0.5, 0.5, 0.5, 0.5)
	for i, p := range preds {
		perf[p.Model] = models.ModelPerformance{
			Model:             p.Model,
			RecentAccuracy7d:  0.4 + 0.1*float64(i),
			RecentAccuracy30d: 0.4 + 0.1*float64(i),
			Consistency:       1,
		}
	}
	in := strategyInput{preds: preds, perf: perf, regime: models.RegimeRangingLoVol, minModels: 2, maxModels: 10}

	weights, _, err := dynamicSelection(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 60% of 5 -> 3 models kept, lowest two zeroed
	var zero, nonzero int
	for _, w := range weights {
		if w == 0 {
			zero++
		} else {
			nonzero++
		}
	}
	if nonzero != 3 || zero != 2 {
		t.Fatalf("expected 3 selected / 2 zeroed, got %d/%d: %v", nonzero, zero, weights)
	}
	if weights["model-4"] == 0 || weights["model-0"] != 0 {
		t.Fatalf("selection kept the wrong models: %v", weights)
	}
}

func TestWeighterFallbackChain(t *testing.T) {
	w := NewWeighter(NewPerformanceTracker())
	// force the chosen strategy and its first fallback to fail
	w.strategies[StrategyRegimeAware] = func(strategyInput) (map[string]float64, map[string]interface{}, error) {
		return nil, nil, fmt.Errorf("boom")
	}
	w.strategies[StrategyPerformanceWeighted] = func(strategyInput) (map[string]float64, map[string]interface{}, error) {
		return nil, nil, fmt.Errorf("boom")
	}

	res := w.Weigh(StrategyRegimeAware, predictions(0.9, 0.1), models.RegimeCrisis, 0.8)
	if !res.FellBack {
		t.Fatalf("expected fallback to be flagged")
	}
	if res.Strategy != string(StrategyEqualWeight) {
		t.Fatalf("expected equal_weight terminal fallback, got %s", res.Strategy)
	}
	for _, weight := range res.Weights {
		if math.Abs(weight-0.5) > 1e-12 {
			t.Fatalf("expected equal weights, got %v", res.Weights)
		}
	}
}

func TestWeighterEmptyPredictions(t *testing.T) {
	w := NewWeighter(NewPerformanceTracker())
	res := w.Weigh(StrategyAdaptiveLearning, nil, models.RegimeCrisis, 0.9)
	if len(res.Weights) != 0 {
		t.Fatalf("expected empty weights, got %v", res.Weights)
	}
}

func TestAdaptiveLearningMixesSubStrategies(t *testing.T) {
	in := strategyInput{
		preds:  predictions(0.8, 0.2),
		perf:   map[string]models.ModelPerformance{},
		regime: models.RegimeRangingLoVol,
	}
	weights, meta, err := adaptiveLearning(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("adaptive weights sum to %v", sum)
	}
	if _, ok := meta["strategy_mix"]; !ok {
		t.Fatalf("expected strategy_mix metadata, got %v", meta)
	}
}

func TestCombinePredictionSeries(t *testing.T) {
	preds := map[string]models.AssetSeries{
		"m1": {"AAA": {1: 1.0, 2: 1.0}},
		"m2": {"AAA": {1: -1.0, 2: 0.5}},
	}
	combined := Combine(preds, map[string]float64{"m1": 0.5, "m2": 0.5})

	if got := combined["AAA"][1]; math.Abs(got-0) > 1e-12 {
		t.Fatalf("combined[1] = %v, want 0", got)
	}
	if got := combined["AAA"][2]; math.Abs(got-0.75) > 1e-12 {
		t.Fatalf("combined[2] = %v, want 0.75", got)
	}
}

func TestTrackerSnapshotIsACopy(t *testing.T) {
	tracker := NewPerformanceTracker()
	tracker.Observe("m1", 101, 102, 100, time.Now(), models.RegimeTrendingBull)

	snap := tracker.Snapshot()
	snap["m1"].RegimeAccuracy[models.RegimeTrendingBull] = -1

	fresh, ok := tracker.Get("m1")
	if !ok {
		t.Fatalf("expected tracked model")
	}
	if fresh.RegimeAccuracy[models.RegimeTrendingBull] == -1 {
		t.Fatalf("snapshot mutation leaked into tracker")
	}
}
