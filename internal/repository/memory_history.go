package repository

import (
	"sort"
	"sync"
	"time"

	"QuantBench/internal/domain/repository"
)

// MemoryHistory keeps a bounded in-memory price history per symbol. It backs
// regime detection and model scoring, which only ever need the recent tail.
type MemoryHistory struct {
	mu    sync.RWMutex
	limit int
	data  map[string][]pricePoint
}

type pricePoint struct {
	at    time.Time
	price float64
}

// NewMemoryHistory creates a history store keeping at most limit points per
// symbol.
func NewMemoryHistory(limit int) repository.HistoryStore {
	if limit <= 0 {
		limit = 10000
	}
	return &MemoryHistory{limit: limit, data: make(map[string][]pricePoint)}
}

func (h *MemoryHistory) Append(symbol string, t time.Time, price float64) {
	if symbol == "" || price <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	points := append(h.data[symbol], pricePoint{at: t, price: price})
	if len(points) > h.limit {
		points = points[len(points)-h.limit:]
	}
	h.data[symbol] = points
}

func (h *MemoryHistory) Recent(symbol string, n int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	points := h.data[symbol]
	if n <= 0 || n > len(points) {
		n = len(points)
	}
	out := make([]float64, 0, n)
	for _, p := range points[len(points)-n:] {
		out = append(out, p.price)
	}
	return out
}

func (h *MemoryHistory) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	symbols := make([]string, 0, len(h.data))
	for s := range h.data {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
