package models

import "time"

// AlignedSeries holds prediction and price series restricted to the assets
// present in both inputs and to their common timestamps, in ascending order.
// Invariant: for every timestamp index i, Prices[asset][i] and
// Signals[asset][i] exist for every asset in Assets.
type AlignedSeries struct {
	Timestamps []int64
	Assets     []string
	Prices     map[string][]float64
	Signals    map[string][]float64
}

// Empty reports whether alignment produced no usable data.
func (s AlignedSeries) Empty() bool {
	return len(s.Timestamps) == 0 || len(s.Assets) == 0
}

// Len returns the number of aligned observations.
func (s AlignedSeries) Len() int { return len(s.Timestamps) }

// TradeRecord is appended whenever a simulated position changes by more than
// the trade epsilon. Append-only.
type TradeRecord struct {
	Timestamp   int64   `json:"timestamp"`
	Asset       string  `json:"asset"`
	OldPosition float64 `json:"old_position"`
	NewPosition float64 `json:"new_position"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
}

// SimResult is the full output of one backtest simulation.
type SimResult struct {
	Timestamps      []int64              `json:"timestamps"`
	Returns         []float64            `json:"returns"`
	Cumulative      []float64            `json:"cumulative_returns"`
	Drawdowns       []float64            `json:"drawdowns"`
	PortfolioValues []float64            `json:"portfolio_values"`
	Positions       map[string][]float64 `json:"positions"`
	Trades          []TradeRecord        `json:"trades"`
}

// Empty reports whether the simulation produced no observations.
func (r SimResult) Empty() bool { return len(r.Returns) == 0 }

// PerformanceMetrics is an immutable value computed once per backtest run
// from a finished return series.
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	Sharpe           float64 `json:"sharpe_ratio"`
	Sortino          float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Calmar           float64 `json:"calmar_ratio"`
	VaR95            float64 `json:"var_95"`
	VaR99            float64 `json:"var_99"`
	CVaR95           float64 `json:"cvar_95"`
	CVaR99           float64 `json:"cvar_99"`
	Beta             float64 `json:"beta"`
	Alpha            float64 `json:"alpha"`
	Observations     int     `json:"n_observations"`
}

// BacktestResult bundles everything a caller gets back from one run.
type BacktestResult struct {
	RunID     string             `json:"run_id"`
	Strategy  string             `json:"strategy,omitempty"`
	Regime    string             `json:"regime,omitempty"`
	Weights   map[string]float64 `json:"model_weights,omitempty"`
	Dropped   []string           `json:"dropped_assets,omitempty"`
	Sim       SimResult          `json:"simulation"`
	Metrics   PerformanceMetrics `json:"metrics"`
	StartedAt time.Time          `json:"started_at"`
	Elapsed   time.Duration      `json:"-"`
	ElapsedMS int64              `json:"elapsed_ms"`
}
