package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"QuantBench/internal/domain/models"
	drepo "QuantBench/internal/domain/repository"
	"QuantBench/internal/ensemble"
	pkgkafka "QuantBench/pkg/kafka"
)

// SignalIngest consumes model predictions from Kafka. Each message scores the
// model's previous prediction for the same symbol against the latest observed
// price and becomes the model's live prediction for the weights endpoint.
//
// incoming message schema: {model, symbol, t, value, confidence, volatility}
type SignalIngest struct {
	topic    string
	history  drepo.HistoryStore
	tracker  *ensemble.PerformanceTracker
	detector *ensemble.RegimeDetector
	metrics  drepo.Metrics

	mu   sync.RWMutex
	book map[string]map[string]bookEntry // symbol -> model -> latest
}

type bookEntry struct {
	pred  models.ModelPrediction
	prior float64 // observed price when the prediction was issued
}

func NewSignalIngest(
	topic string,
	history drepo.HistoryStore,
	tracker *ensemble.PerformanceTracker,
	detector *ensemble.RegimeDetector,
	metrics drepo.Metrics,
) *SignalIngest {
	return &SignalIngest{
		topic:    topic,
		history:  history,
		tracker:  tracker,
		detector: detector,
		metrics:  metrics,
		book:     make(map[string]map[string]bookEntry),
	}
}

func (s *SignalIngest) Topic() string { return s.topic }

func (s *SignalIngest) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Model      string  `json:"model"`
		Symbol     string  `json:"symbol"`
		T          int64   `json:"t"`
		Value      float64 `json:"value"`
		Confidence float64 `json:"confidence"`
		Volatility float64 `json:"volatility"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		s.metrics.RecordError("signal_unmarshal")
		return err
	}
	if m.Model == "" || m.Symbol == "" {
		s.metrics.RecordError("signal_invalid")
		return fmt.Errorf("signal missing model or symbol")
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	if m.Confidence <= 0 || m.Confidence > 1 {
		m.Confidence = 0.5
	}

	prices := s.history.Recent(m.Symbol, ensemble.DefaultLookback)
	var current float64
	if len(prices) > 0 {
		current = prices[len(prices)-1]
	}

	at := time.Unix(m.T, 0)
	reading := s.detector.Detect(prices, models.MacroInputs{})

	s.mu.Lock()
	byModel, ok := s.book[m.Symbol]
	if !ok {
		byModel = make(map[string]bookEntry)
		s.book[m.Symbol] = byModel
	}
	prev, hadPrev := byModel[m.Model]
	byModel[m.Model] = bookEntry{
		pred: models.ModelPrediction{
			Model:      m.Model,
			Asset:      m.Symbol,
			Timestamp:  at,
			Price:      m.Value,
			Direction:  direction(m.Value, current),
			Confidence: m.Confidence,
			Volatility: m.Volatility,
		},
		prior: current,
	}
	s.mu.Unlock()

	// Score the superseded prediction against the realized price.
	if hadPrev && current > 0 && prev.prior > 0 {
		s.tracker.Observe(m.Model, prev.pred.Price, current, prev.prior, at, reading.Regime)
	}

	s.metrics.RecordTickIngested("signals", m.Symbol)
	s.metrics.RecordLatency("signal_ingest_e2e_seconds", time.Since(at).Seconds())
	return nil
}

// Latest returns the live predictions for one symbol, sorted by model name.
func (s *SignalIngest) Latest(symbol string) []models.ModelPrediction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byModel := s.book[symbol]
	preds := make([]models.ModelPrediction, 0, len(byModel))
	for _, e := range byModel {
		preds = append(preds, e.pred)
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].Model < preds[j].Model })
	return preds
}

func direction(predicted, current float64) int {
	switch {
	case current <= 0:
		return 0
	case predicted > current:
		return 1
	case predicted < current:
		return -1
	}
	return 0
}

var _ pkgkafka.MessageHandler = (*SignalIngest)(nil)
