package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsStarted    *prometheus.CounterVec
	runsCompleted  *prometheus.CounterVec
	tradesTotal    prometheus.Counter
	fallbacksTotal *prometheus.CounterVec
	ticksIngested  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	portfolioValue *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantbench_backtest_runs_started_total",
				Help: "Total number of backtest runs started",
			},
			[]string{"strategy"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantbench_backtest_runs_completed_total",
				Help: "Total number of backtest runs completed, by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		tradesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quantbench_simulated_trades_total",
				Help: "Total number of simulated trades across all runs",
			},
		),
		fallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantbench_strategy_fallbacks_total",
				Help: "Total number of ensemble strategy fallbacks",
			},
			[]string{"from", "to"},
		),
		ticksIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantbench_ticks_ingested_total",
				Help: "Total number of market ticks ingested",
			},
			[]string{"source", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantbench_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantbench_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		portfolioValue: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantbench_last_portfolio_value",
				Help: "Final portfolio value of the most recent run per strategy",
			},
			[]string{"strategy"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantbench_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRunStarted records the start of a backtest run.
func (r *Recorder) RecordRunStarted(strategy string) {
	r.runsStarted.WithLabelValues(strategy).Inc()
}

// RecordRunCompleted records a finished run with its outcome ("ok" or "error").
func (r *Recorder) RecordRunCompleted(strategy, outcome string) {
	r.runsCompleted.WithLabelValues(strategy, outcome).Inc()
}

// RecordTrades adds simulated trades to the running total.
func (r *Recorder) RecordTrades(n int) {
	r.tradesTotal.Add(float64(n))
}

// RecordFallback records an ensemble strategy fallback.
func (r *Recorder) RecordFallback(from, to string) {
	r.fallbacksTotal.WithLabelValues(from, to).Inc()
}

// RecordTickIngested records a market tick received from a source.
func (r *Recorder) RecordTickIngested(source, symbol string) {
	r.ticksIngested.WithLabelValues(source, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordPortfolioValue records the final portfolio value of a run.
func (r *Recorder) RecordPortfolioValue(strategy string, value float64) {
	r.portfolioValue.WithLabelValues(strategy).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
