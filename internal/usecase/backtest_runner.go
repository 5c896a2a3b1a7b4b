package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"QuantBench/internal/backtest"
	"QuantBench/internal/domain/models"
	drepo "QuantBench/internal/domain/repository"
	"QuantBench/internal/ensemble"
	pkgcache "QuantBench/pkg/cache"
	applogger "QuantBench/pkg/logger"
)

// ErrRunNotFound is returned when a run id is unknown to cache and store.
var ErrRunNotFound = errors.New("backtest run not found")

const runCachePrefix = "backtest:run:"

// RunnerConfig carries the service-level defaults a request may override.
type RunnerConfig struct {
	Sim             backtest.SimConfig
	Eval            backtest.EvalConfig
	DefaultStrategy ensemble.Strategy
	ResultTTL       time.Duration
	LiveTTL         time.Duration // short TTL for live weight/regime lookups
}

// BacktestRunner orchestrates one full run: regime detection, ensemble
// weighting, signal combination, alignment, simulation and evaluation.
type BacktestRunner struct {
	weighter *ensemble.Weighter
	detector *ensemble.RegimeDetector
	metrics  drepo.Metrics
	log      *applogger.Logger
	cfg      RunnerConfig

	cache pkgcache.Service    // optional
	store drepo.ResultStore   // optional
	pub   drepo.RunPublisher  // optional
}

// RunnerOption configures optional runner collaborators.
type RunnerOption func(*BacktestRunner)

// WithResultCache caches finished runs for fast retrieval.
func WithResultCache(c pkgcache.Service) RunnerOption {
	return func(r *BacktestRunner) { r.cache = c }
}

// WithResultStore persists runs when a request asks for it.
func WithResultStore(s drepo.ResultStore) RunnerOption {
	return func(r *BacktestRunner) { r.store = s }
}

// WithRunPublisher announces finished runs downstream.
func WithRunPublisher(p drepo.RunPublisher) RunnerOption {
	return func(r *BacktestRunner) { r.pub = p }
}

// NewBacktestRunner creates a runner.
func NewBacktestRunner(
	weighter *ensemble.Weighter,
	detector *ensemble.RegimeDetector,
	metrics drepo.Metrics,
	log *applogger.Logger,
	cfg RunnerConfig,
	opts ...RunnerOption,
) *BacktestRunner {
	if cfg.Sim.InitialCapital <= 0 {
		cfg.Sim = backtest.DefaultSimConfig()
	}
	if cfg.Eval.PeriodsYear <= 0 {
		cfg.Eval = backtest.DefaultEvalConfig()
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = ensemble.StrategyRegimeAware
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 5 * time.Minute
	}
	if cfg.LiveTTL <= 0 {
		cfg.LiveTTL = 30 * time.Second
	}
	r := &BacktestRunner{
		weighter: weighter,
		detector: detector,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one backtest. Degenerate inputs (no overlap between
// predictions and prices) complete with zero metrics rather than failing;
// only an invalid strategy name is an error.
func (r *BacktestRunner) Run(ctx context.Context, req *models.BacktestRequest) (*models.BacktestResult, error) {
	started := time.Now()

	strategy := r.cfg.DefaultStrategy
	if req.Strategy != "" {
		parsed, err := ensemble.ParseStrategy(req.Strategy)
		if err != nil {
			return nil, err
		}
		strategy = parsed
	}
	r.metrics.RecordRunStarted(string(strategy))

	predictions := toPredictionSeries(req.Predictions)
	prices := toAssetSeries(req.Prices)

	reading := r.detector.Detect(referencePrices(prices), models.MacroInputs{})
	profiles := predictionProfiles(predictions)

	ens := r.weighter.Weigh(strategy, profiles, reading.Regime, reading.Confidence)
	if ens.FellBack {
		r.metrics.RecordFallback(string(strategy), ens.Strategy)
	}

	combined := ensemble.Combine(predictions, ens.Weights)
	aligned, dropped := backtest.Align(combined, prices)

	simCfg := r.cfg.Sim
	if req.InitialCapital > 0 {
		simCfg.InitialCapital = req.InitialCapital
	}
	if req.TransactionCosts >= 0 {
		simCfg.TransactionCosts = req.TransactionCosts
	}
	sim := backtest.Simulate(aligned, simCfg)

	evalCfg := r.cfg.Eval
	evalCfg.RiskFreeRate = req.RiskFreeRate
	met := backtest.Evaluate(sim.Returns, req.Benchmark, evalCfg)

	elapsed := time.Since(started)
	result := &models.BacktestResult{
		RunID:     uuid.NewString(),
		Strategy:  ens.Strategy,
		Regime:    string(reading.Regime),
		Weights:   ens.Weights,
		Dropped:   dropped,
		Sim:       sim,
		Metrics:   met,
		StartedAt: started,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
	}

	r.metrics.RecordTrades(len(sim.Trades))
	r.metrics.RecordRunCompleted(string(strategy), "ok")
	r.metrics.RecordLatency("backtest_run", elapsed.Seconds())
	if n := len(sim.PortfolioValues); n > 0 {
		r.metrics.RecordPortfolioValue(result.Strategy, sim.PortfolioValues[n-1])
	}
	// Realized score feeds the adaptive_learning mix on later runs.
	r.weighter.RecordStrategyPerformance(ensemble.Strategy(result.Strategy), math.Max(0, 1+met.TotalReturn))

	if r.cache != nil {
		if err := r.cache.Set(ctx, runCachePrefix+result.RunID, result, r.cfg.ResultTTL); err != nil {
			r.log.Warn("cache backtest result", applogger.Error(err))
		}
	}
	if req.Persist && r.store != nil {
		if err := r.store.StoreRun(ctx, result); err != nil {
			r.metrics.RecordError("result_store")
			r.log.Error("persist backtest result",
				applogger.String("run_id", result.RunID),
				applogger.Error(err),
			)
		}
	}
	if r.pub != nil {
		if err := r.pub.Publish(ctx, result); err != nil {
			r.metrics.RecordError("result_publish")
			r.log.Warn("publish backtest result", applogger.Error(err))
		}
	}

	r.log.Info("backtest run finished",
		applogger.String("run_id", result.RunID),
		applogger.String("strategy", result.Strategy),
		applogger.String("regime", result.Regime),
		applogger.Int("trades", len(sim.Trades)),
		applogger.Duration("elapsed", elapsed),
	)
	return result, nil
}

// GetRun retrieves a cached run by id.
func (r *BacktestRunner) GetRun(ctx context.Context, runID string) (*models.BacktestResult, error) {
	if r.cache == nil {
		return nil, ErrRunNotFound
	}
	var result models.BacktestResult
	if err := r.cache.Get(ctx, runCachePrefix+runID, &result); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &result, nil
}

// Weigh exposes live ensemble weighting for the weights endpoint.
func (r *BacktestRunner) Weigh(strategy ensemble.Strategy, preds []models.ModelPrediction, prices []float64) models.EnsembleResult {
	reading := r.detector.Detect(prices, models.MacroInputs{})
	return r.weighter.Weigh(strategy, preds, reading.Regime, reading.Confidence)
}

// LiveWeights is Weigh behind a short-TTL cache keyed by a hash of the
// inputs: symbol, strategy and each model's latest prediction.
func (r *BacktestRunner) LiveWeights(ctx context.Context, symbol string, strategy ensemble.Strategy, preds []models.ModelPrediction, prices []float64) models.EnsembleResult {
	if r.cache == nil {
		return r.Weigh(strategy, preds, prices)
	}

	params := make([]interface{}, 0, 2+2*len(preds)+1)
	params = append(params, symbol, string(strategy))
	for _, p := range preds {
		params = append(params, p.Model, p.Price)
	}
	if n := len(prices); n > 0 {
		params = append(params, prices[n-1])
	}
	key := "live:weights:" + pkgcache.HashKey(pkgcache.GenerateKeyWithParams("ensemble", params...))

	var cached models.EnsembleResult
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return cached
	}
	res := r.Weigh(strategy, preds, prices)
	if err := r.cache.Set(ctx, key, res, r.cfg.LiveTTL); err != nil {
		r.log.Warn("cache live weights", applogger.Error(err))
	}
	return res
}

// Regime exposes the detector for the regime endpoint.
func (r *BacktestRunner) Regime(prices []float64) models.RegimeReading {
	return r.detector.Detect(prices, models.MacroInputs{})
}

// LiveRegime is Regime behind the same short-TTL lookup cache.
func (r *BacktestRunner) LiveRegime(ctx context.Context, symbol string, prices []float64) models.RegimeReading {
	if r.cache == nil {
		return r.Regime(prices)
	}

	last := 0.0
	if n := len(prices); n > 0 {
		last = prices[n-1]
	}
	key := "live:regime:" + pkgcache.HashKey(pkgcache.GenerateKeyWithParams("regime", symbol, len(prices), last))

	var cached models.RegimeReading
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return cached
	}
	reading := r.Regime(prices)
	if err := r.cache.Set(ctx, key, reading, r.cfg.LiveTTL); err != nil {
		r.log.Warn("cache live regime", applogger.Error(err))
	}
	return reading
}

// RegimeStability reports agreement across the detector's recent readings.
func (r *BacktestRunner) RegimeStability(n int) float64 {
	return r.detector.Stability(n)
}

func toAssetSeries(in map[string]map[int64]float64) models.AssetSeries {
	out := make(models.AssetSeries, len(in))
	for asset, series := range in {
		s := make(models.Series, len(series))
		for ts, v := range series {
			s[ts] = v
		}
		out[asset] = s
	}
	return out
}

func toPredictionSeries(in map[string]map[string]map[int64]float64) map[string]models.AssetSeries {
	out := make(map[string]models.AssetSeries, len(in))
	for model, byAsset := range in {
		out[model] = toAssetSeries(byAsset)
	}
	return out
}

// referencePrices picks the alphabetically first asset's price path, ordered
// by timestamp, as the series regime detection runs on.
func referencePrices(prices models.AssetSeries) []float64 {
	if len(prices) == 0 {
		return nil
	}
	assets := make([]string, 0, len(prices))
	for a := range prices {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	series := prices[assets[0]]

	stamps := make([]int64, 0, len(series))
	for ts := range series {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	out := make([]float64, 0, len(stamps))
	for _, ts := range stamps {
		out = append(out, series[ts])
	}
	return out
}

// predictionProfiles condenses each model's raw signal series into the
// prediction profile the weighter consumes: signal magnitude doubles as
// conviction, signal dispersion as predicted volatility.
func predictionProfiles(predictions map[string]models.AssetSeries) []models.ModelPrediction {
	names := make([]string, 0, len(predictions))
	for m := range predictions {
		names = append(names, m)
	}
	sort.Strings(names)

	profiles := make([]models.ModelPrediction, 0, len(names))
	for _, model := range names {
		var (
			latest   float64
			latestN  int
			all      []float64
			lastSeen int64
		)
		for _, series := range predictions[model] {
			var maxTS int64
			var maxV float64
			for ts, v := range series {
				all = append(all, v)
				if ts >= maxTS {
					maxTS = ts
					maxV = v
				}
			}
			if len(series) > 0 {
				latest += maxV
				latestN++
				if maxTS > lastSeen {
					lastSeen = maxTS
				}
			}
		}
		if latestN > 0 {
			latest /= float64(latestN)
		}

		direction := 0
		if latest > 0 {
			direction = 1
		} else if latest < 0 {
			direction = -1
		}

		profiles = append(profiles, models.ModelPrediction{
			Model:      model,
			Timestamp:  time.Unix(lastSeen, 0),
			Price:      latest,
			Direction:  direction,
			Confidence: math.Max(0.1, math.Min(0.95, math.Abs(latest))),
			Volatility: dispersion(all),
		})
	}
	return profiles
}

// dispersion is the population stddev of a value set.
func dispersion(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := 0.0
	for _, x := range xs {
		m += x
	}
	m /= float64(len(xs))
	v := 0.0
	for _, x := range xs {
		v += (x - m) * (x - m)
	}
	return math.Sqrt(v / float64(len(xs)))
}
