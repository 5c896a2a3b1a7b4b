package repository

import (
	"testing"
	"time"
)

func TestMemoryHistoryAppendRecent(t *testing.T) {
	h := NewMemoryHistory(100)
	base := time.Now()

	for i := 0; i < 10; i++ {
		h.Append("EURUSD", base.Add(time.Duration(i)*time.Second), 1.10+float64(i)*0.01)
	}

	got := h.Recent("EURUSD", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 prices, got %d", len(got))
	}
	if got[2] != 1.19 {
		t.Fatalf("expected most recent last, got %v", got)
	}
}

func TestMemoryHistoryIgnoresInvalid(t *testing.T) {
	h := NewMemoryHistory(100)
	h.Append("", time.Now(), 1.0)
	h.Append("EURUSD", time.Now(), 0)
	h.Append("EURUSD", time.Now(), -2)

	if got := h.Recent("EURUSD", 10); len(got) != 0 {
		t.Fatalf("expected no prices, got %v", got)
	}
	if syms := h.Symbols(); len(syms) != 0 {
		t.Fatalf("expected no symbols, got %v", syms)
	}
}

func TestMemoryHistoryLimit(t *testing.T) {
	h := NewMemoryHistory(5)
	base := time.Now()

	for i := 0; i < 20; i++ {
		h.Append("USDJPY", base.Add(time.Duration(i)*time.Second), 150+float64(i))
	}

	got := h.Recent("USDJPY", 20)
	if len(got) != 5 {
		t.Fatalf("expected history trimmed to 5, got %d", len(got))
	}
	if got[4] != 169 {
		t.Fatalf("expected newest retained, got %v", got)
	}
}

func TestMemoryHistorySymbolsSorted(t *testing.T) {
	h := NewMemoryHistory(10)
	now := time.Now()
	h.Append("USDJPY", now, 150)
	h.Append("EURUSD", now, 1.1)
	h.Append("GBPUSD", now, 1.3)

	syms := h.Symbols()
	if len(syms) != 3 || syms[0] != "EURUSD" || syms[1] != "GBPUSD" || syms[2] != "USDJPY" {
		t.Fatalf("expected sorted symbols, got %v", syms)
	}
}
