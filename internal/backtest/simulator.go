package backtest

import (
	"math"

	"QuantBench/internal/domain/models"
)

// tradeEpsilon is the smallest position change worth recording as a trade.
const tradeEpsilon = 1e-6

// SimConfig holds the knobs of one simulation.
type SimConfig struct {
	InitialCapital   float64
	TransactionCosts float64 // cost rate per unit of traded notional
}

// DefaultSimConfig mirrors the service-level defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{InitialCapital: 100_000, TransactionCosts: 0.001}
}

// Simulate walks the aligned series day by day, sizing positions from signal
// strength with proportional allocation:
//
//	position = (signal / Σ|signal|) * portfolioValue / price
//
// Each position change beyond tradeEpsilon is charged
// |Δposition| * price * costRate and logged as a trade. The walk is strictly
// sequential: day t's sizing depends on day t-1's portfolio value.
//
// Degenerate inputs (empty series, all-zero signals) produce an all-zero
// result of matching length; an empty series produces an empty result.
func Simulate(series models.AlignedSeries, cfg SimConfig) models.SimResult {
	n := series.Len()
	res := models.SimResult{
		Timestamps:      series.Timestamps,
		Returns:         make([]float64, 0, n),
		Cumulative:      make([]float64, 0, n),
		Drawdowns:       make([]float64, 0, n),
		PortfolioValues: make([]float64, 0, n),
		Positions:       make(map[string][]float64, len(series.Assets)),
	}
	if series.Empty() {
		res.Timestamps = nil
		return res
	}
	for _, asset := range series.Assets {
		res.Positions[asset] = make([]float64, n)
	}

	value := cfg.InitialCapital
	prev := make(map[string]float64, len(series.Assets))

	for t := 0; t < n; t++ {
		prevValue := value

		totalSignal := 0.0
		for _, asset := range series.Assets {
			totalSignal += math.Abs(signalAt(series, asset, t))
		}

		dayCost := 0.0
		for _, asset := range series.Assets {
			price := series.Prices[asset][t]

			target := 0.0
			// A non-positive price excludes the asset from sizing for this
			// day only; its position is flattened without a trade.
			if price > 0 && totalSignal > 0 {
				target = signalAt(series, asset, t) / totalSignal * prevValue / price
			}

			old := prev[asset]
			if price > 0 && math.Abs(target-old) > tradeEpsilon {
				cost := math.Abs(target-old) * price * cfg.TransactionCosts
				dayCost += cost
				res.Trades = append(res.Trades, models.TradeRecord{
					Timestamp:   series.Timestamps[t],
					Asset:       asset,
					OldPosition: old,
					NewPosition: target,
					Price:       price,
					Cost:        cost,
				})
			}
			res.Positions[asset][t] = target
			prev[asset] = target
		}

		// Mark the book to market and charge the day's costs.
		value = -dayCost
		for _, asset := range series.Assets {
			value += res.Positions[asset][t] * series.Prices[asset][t]
		}

		r := 0.0
		if t > 0 && prevValue != 0 {
			r = (value - prevValue) / prevValue
		}
		res.Returns = append(res.Returns, r)
		res.PortfolioValues = append(res.PortfolioValues, value)
	}

	res.Cumulative, res.Drawdowns = CumulativeAndDrawdowns(res.Returns)
	return res
}

func signalAt(series models.AlignedSeries, asset string, t int) float64 {
	ss, ok := series.Signals[asset]
	if !ok || t >= len(ss) {
		return 0 // missing signal counts as no view
	}
	return ss[t]
}

// CumulativeAndDrawdowns derives the cumulative return path (running product
// of 1+r) and the drawdown path relative to the running maximum. Drawdowns
// are always <= 0 and exactly 0 at a fresh running maximum.
func CumulativeAndDrawdowns(returns []float64) (cumulative, drawdowns []float64) {
	cumulative = make([]float64, len(returns))
	drawdowns = make([]float64, len(returns))
	acc := 1.0
	peak := math.Inf(-1)
	for i, r := range returns {
		acc *= 1 + r
		cumulative[i] = acc
		if acc > peak {
			peak = acc
		}
		if peak != 0 {
			drawdowns[i] = (acc - peak) / peak
		}
	}
	return cumulative, drawdowns
}
