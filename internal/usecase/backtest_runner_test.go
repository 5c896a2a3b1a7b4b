package usecase

import (
	"context"
	"math"
	"testing"

	"QuantBench/internal/domain/models"
	"QuantBench/internal/ensemble"
	pkgcache "QuantBench/pkg/cache"
	applogger "QuantBench/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordRunStarted(string)            {}
func (nopMetrics) RecordRunCompleted(string, string)  {}
func (nopMetrics) RecordTrades(int)                   {}
func (nopMetrics) RecordFallback(string, string)      {}
func (nopMetrics) RecordTickIngested(string, string)  {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLastPrice(string, float64)    {}
func (nopMetrics) RecordPortfolioValue(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)      {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testRunner(t *testing.T) *BacktestRunner {
	t.Helper()
	weighter := ensemble.NewWeighter(ensemble.NewPerformanceTracker())
	detector := ensemble.NewRegimeDetector()
	return NewBacktestRunner(weighter, detector, nopMetrics{}, testLogger(t), RunnerConfig{},
		WithResultCache(pkgcache.NewMemoryCache()),
	)
}

func testRequest() *models.BacktestRequest {
	return &models.BacktestRequest{
		Predictions: map[string]map[string]map[int64]float64{
			"m1": {"EURUSD": {1: 0.5, 2: 0.6, 3: 0.4, 4: 0.7}},
			"m2": {"EURUSD": {1: -0.2, 2: 0.3, 3: 0.1, 4: 0.2}},
		},
		Prices: map[string]map[int64]float64{
			"EURUSD": {1: 1.10, 2: 1.11, 3: 1.09, 4: 1.12},
		},
		TransactionCosts: 0.001,
	}
}

func TestRunProducesResult(t *testing.T) {
	r := testRunner(t)

	res, err := r.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RunID == "" {
		t.Fatalf("expected run id")
	}
	if len(res.Sim.Returns) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(res.Sim.Returns))
	}
	if res.Sim.Returns[0] != 0 {
		t.Fatalf("first-day return must be 0, got %f", res.Sim.Returns[0])
	}
	if res.Strategy == "" || res.Regime == "" {
		t.Fatalf("expected strategy and regime, got %q %q", res.Strategy, res.Regime)
	}

	sum := 0.0
	for _, w := range res.Weights {
		if w < 0 {
			t.Fatalf("negative weight %f", w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights must sum to 1, got %f", sum)
	}
}

func TestRunInvalidStrategy(t *testing.T) {
	r := testRunner(t)
	req := testRequest()
	req.Strategy = "alchemy"

	if _, err := r.Run(context.Background(), req); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestRunNoOverlapCompletesEmpty(t *testing.T) {
	r := testRunner(t)
	req := &models.BacktestRequest{
		Predictions: map[string]map[string]map[int64]float64{
			"m1": {"EURUSD": {1: 0.5}},
		},
		Prices: map[string]map[int64]float64{
			"USDJPY": {1: 150.0},
		},
	}

	res, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Sim.Returns) != 0 {
		t.Fatalf("expected empty simulation, got %d returns", len(res.Sim.Returns))
	}
	if res.Metrics.Observations != 0 {
		t.Fatalf("expected zero observations")
	}
}

func TestGetRunRoundTrip(t *testing.T) {
	r := testRunner(t)

	res, err := r.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := r.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.RunID != res.RunID {
		t.Fatalf("run id mismatch: %s != %s", got.RunID, res.RunID)
	}

	if _, err := r.GetRun(context.Background(), "no-such-run"); err != ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestLiveWeightsCached(t *testing.T) {
	r := testRunner(t)

	preds := []models.ModelPrediction{
		{Model: "m1", Price: 1.11, Direction: 1, Confidence: 0.7},
		{Model: "m2", Price: 1.09, Direction: -1, Confidence: 0.6},
	}
	prices := []float64{1.10, 1.11, 1.09, 1.12}

	first := r.LiveWeights(context.Background(), "EURUSD", ensemble.StrategyEqualWeight, preds, prices)
	second := r.LiveWeights(context.Background(), "EURUSD", ensemble.StrategyEqualWeight, preds, prices)

	if len(first.Weights) != 2 || len(second.Weights) != 2 {
		t.Fatalf("expected weights for both models")
	}
	for m, w := range first.Weights {
		if second.Weights[m] != w {
			t.Fatalf("cached result differs for %s: %f != %f", m, second.Weights[m], w)
		}
	}
}
