package backtest

import (
	"math"
	"testing"

	"QuantBench/internal/domain/models"
)

func twoAssetSeries() models.AlignedSeries {
	return models.AlignedSeries{
		Timestamps: []int64{1, 2, 3, 4},
		Assets:     []string{"AAA", "BBB"},
		Prices: map[string][]float64{
			"AAA": {100, 101, 99, 103},
			"BBB": {50, 49, 51, 52},
		},
		Signals: map[string][]float64{
			"AAA": {1, 1, -1, 1},
			"BBB": {-1, -1, 1, -1},
		},
	}
}

func TestSimulateExampleScenario(t *testing.T) {
	res := Simulate(twoAssetSeries(), SimConfig{InitialCapital: 100_000, TransactionCosts: 0.001})

	if len(res.Returns) != 4 {
		t.Fatalf("expected 4 returns, got %d", len(res.Returns))
	}
	if res.Returns[0] != 0.0 {
		t.Fatalf("first return must be exactly 0.0, got %v", res.Returns[0])
	}

	// Both assets start flat with nonzero signals, so day one records a trade
	// for each.
	var first []models.TradeRecord
	for _, tr := range res.Trades {
		if tr.Timestamp == 1 {
			first = append(first, tr)
		}
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 day-one trades, got %d", len(first))
	}
	for _, tr := range first {
		if tr.OldPosition != 0 {
			t.Fatalf("day-one trade must start from flat, got %v", tr.OldPosition)
		}
		if tr.Cost <= 0 {
			t.Fatalf("expected positive transaction cost, got %v", tr.Cost)
		}
	}

	// Proportional allocation on day one: half the book per asset.
	if got := res.Positions["AAA"][0]; math.Abs(got-500) > 1e-9 {
		t.Fatalf("AAA day-one position = %v, want 500", got)
	}
	if got := res.Positions["BBB"][0]; math.Abs(got+1000) > 1e-9 {
		t.Fatalf("BBB day-one position = %v, want -1000", got)
	}
}

func TestSimulateReturnCumulativeConsistency(t *testing.T) {
	res := Simulate(longOnlySeries(), DefaultSimConfig())

	if math.Abs(res.Cumulative[0]-(1+res.Returns[0])) > 1e-12 {
		t.Fatalf("cumulative[0] = %v, want %v", res.Cumulative[0], 1+res.Returns[0])
	}
	for i := 1; i < len(res.Returns); i++ {
		want := res.Cumulative[i-1] * (1 + res.Returns[i])
		if math.Abs(res.Cumulative[i]-want) > 1e-12 {
			t.Fatalf("cumulative[%d] = %v, want %v", i, res.Cumulative[i], want)
		}
	}
}

func TestSimulateDrawdownBounded(t *testing.T) {
	res := Simulate(longOnlySeries(), DefaultSimConfig())

	peak := math.Inf(-1)
	for i, dd := range res.Drawdowns {
		if dd > 0 {
			t.Fatalf("drawdown[%d] = %v > 0", i, dd)
		}
		if res.Cumulative[i] > peak {
			peak = res.Cumulative[i]
			if dd != 0 {
				t.Fatalf("drawdown at new running max must be 0, got %v", dd)
			}
		}
	}
}

func TestSimulateEmptySeries(t *testing.T) {
	res := Simulate(models.AlignedSeries{}, DefaultSimConfig())
	if !res.Empty() {
		t.Fatalf("expected empty result")
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades")
	}
}

func TestSimulateAllZeroSignals(t *testing.T) {
	series := longOnlySeries()
	series.Signals["AAA"] = []float64{0, 0, 0, 0}
	res := Simulate(series, DefaultSimConfig())

	for i, r := range res.Returns {
		if r != 0 {
			t.Fatalf("return[%d] = %v, want 0", i, r)
		}
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades for zero signals, got %d", len(res.Trades))
	}
}

func TestSimulateCostMonotonicity(t *testing.T) {
	series := longOnlySeries()

	prevTotal := math.Inf(1)
	for _, rate := range []float64{0, 0.0005, 0.001, 0.005, 0.01} {
		res := Simulate(series, SimConfig{InitialCapital: 100_000, TransactionCosts: rate})
		total := res.Cumulative[len(res.Cumulative)-1] - 1
		if total > prevTotal+1e-12 {
			t.Fatalf("total return increased from %v to %v when cost rate rose to %v", prevTotal, total, rate)
		}
		prevTotal = total
	}
}

func TestSimulateNonPositivePriceExcluded(t *testing.T) {
	series := models.AlignedSeries{
		Timestamps: []int64{1, 2, 3},
		Assets:     []string{"AAA", "BBB"},
		Prices: map[string][]float64{
			"AAA": {100, 0, 102}, // bad print on day two
			"BBB": {50, 51, 52},
		},
		Signals: map[string][]float64{
			"AAA": {1, 1, 1},
			"BBB": {1, 1, 1},
		},
	}
	res := Simulate(series, DefaultSimConfig())

	if got := res.Positions["AAA"][1]; got != 0 {
		t.Fatalf("asset with non-positive price must be excluded that day, position = %v", got)
	}
	for _, tr := range res.Trades {
		if tr.Asset == "AAA" && tr.Timestamp == 2 {
			t.Fatalf("no trade should be recorded against a non-positive price")
		}
	}
	// the asset re-enters the book the next day
	if got := res.Positions["AAA"][2]; got == 0 {
		t.Fatalf("asset should re-enter sizing once its price is valid")
	}
}

// longOnlySeries keeps net exposure positive so the value path stays away
// from zero.
func longOnlySeries() models.AlignedSeries {
	return models.AlignedSeries{
		Timestamps: []int64{1, 2, 3, 4},
		Assets:     []string{"AAA"},
		Prices:     map[string][]float64{"AAA": {100, 102, 101, 105}},
		Signals:    map[string][]float64{"AAA": {1, 1, 0.5, 1}},
	}
}
