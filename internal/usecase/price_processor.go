package usecase

import (
	"context"
	"fmt"
	"time"

	"QuantBench/internal/domain/models"
	drepo "QuantBench/internal/domain/repository"
)

// TickProcessor folds live ticks into the in-memory price history that backs
// regime detection and live weighting.
type TickProcessor struct {
	history drepo.HistoryStore
	metrics drepo.Metrics
	source  string
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(history drepo.HistoryStore, metrics drepo.Metrics, source string) *TickProcessor {
	if source == "" {
		source = "stream"
	}
	return &TickProcessor{history: history, metrics: metrics, source: source}
}

// Process appends one tick to history.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	start := time.Now()

	p.history.Append(t.Symbol, time.Unix(t.Timestamp, 0), t.Price)

	p.metrics.RecordTickIngested(p.source, t.Symbol)
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	p.metrics.RecordLatency("tick_process", time.Since(start).Seconds())
	return nil
}
