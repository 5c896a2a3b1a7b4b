package repository

import (
	"context"
	"time"

	"QuantBench/internal/domain/models"
)

// MarketStream is a live source of ticks, typically a websocket feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// RunPublisher fans completed backtest results out to downstream consumers.
type RunPublisher interface {
	Publish(ctx context.Context, r *models.BacktestResult) error
	Close() error
}

// ResultStore persists backtest runs and their trade logs.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreRun(ctx context.Context, r *models.BacktestResult) error
	QueryRuns(ctx context.Context, strategy string, from, to time.Time, limit int) ([]*models.BacktestResult, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// HistoryStore accumulates observed prices per symbol for regime detection
// and model scoring.
type HistoryStore interface {
	Append(symbol string, t time.Time, price float64)
	Recent(symbol string, n int) []float64
	Symbols() []string
}

type Metrics interface {
	RecordRunStarted(strategy string)
	RecordRunCompleted(strategy, outcome string)
	RecordTrades(n int)
	RecordFallback(from, to string)
	RecordTickIngested(source, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordPortfolioValue(strategy string, value float64)
	RecordLatency(op string, seconds float64)
}
