package usecase

import (
	"context"
	"testing"
	"time"

	"QuantBench/internal/ensemble"
	internalrepo "QuantBench/internal/repository"
)

func newTestIngest() (*SignalIngest, func(symbol string, price float64)) {
	history := internalrepo.NewMemoryHistory(1000)
	ingest := NewSignalIngest("signals.test", history,
		ensemble.NewPerformanceTracker(), ensemble.NewRegimeDetector(), nopMetrics{})
	feed := func(symbol string, price float64) {
		history.Append(symbol, time.Now(), price)
	}
	return ingest, feed
}

func TestSignalIngestLatest(t *testing.T) {
	ingest, feed := newTestIngest()
	feed("EURUSD", 1.10)

	msg := []byte(`{"model":"lstm","symbol":"EURUSD","t":1700000000,"value":1.12,"confidence":0.8}`)
	if err := ingest.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	preds := ingest.Latest("EURUSD")
	if len(preds) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(preds))
	}
	p := preds[0]
	if p.Model != "lstm" || p.Price != 1.12 {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if p.Direction != 1 {
		t.Fatalf("expected upward direction vs 1.10, got %d", p.Direction)
	}
}

func TestSignalIngestRejectsInvalid(t *testing.T) {
	ingest, _ := newTestIngest()

	if err := ingest.Handle(context.Background(), []byte(`not json`)); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if err := ingest.Handle(context.Background(), []byte(`{"symbol":"EURUSD"}`)); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestSignalIngestSanitizesConfidence(t *testing.T) {
	ingest, feed := newTestIngest()
	feed("USDJPY", 150)

	msg := []byte(`{"model":"gnn","symbol":"USDJPY","t":1700000000000,"value":151,"confidence":7}`)
	if err := ingest.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	preds := ingest.Latest("USDJPY")
	if len(preds) != 1 {
		t.Fatalf("expected 1 prediction")
	}
	if preds[0].Confidence != 0.5 {
		t.Fatalf("expected confidence clamped to 0.5, got %f", preds[0].Confidence)
	}
	// millisecond timestamp must be normalized to seconds
	if y := preds[0].Timestamp.Year(); y < 2020 || y > 2030 {
		t.Fatalf("timestamp not normalized: %v", preds[0].Timestamp)
	}
}

func TestSignalIngestScoresSupersededPrediction(t *testing.T) {
	ingest, feed := newTestIngest()
	feed("EURUSD", 1.10)

	first := []byte(`{"model":"lstm","symbol":"EURUSD","t":1700000000,"value":1.12,"confidence":0.8}`)
	if err := ingest.Handle(context.Background(), first); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// Price moved up, matching the first prediction's direction.
	feed("EURUSD", 1.11)
	second := []byte(`{"model":"lstm","symbol":"EURUSD","t":1700000600,"value":1.13,"confidence":0.8}`)
	if err := ingest.Handle(context.Background(), second); err != nil {
		t.Fatalf("handle: %v", err)
	}

	preds := ingest.Latest("EURUSD")
	if len(preds) != 1 || preds[0].Price != 1.13 {
		t.Fatalf("expected superseded prediction replaced, got %+v", preds)
	}
}
