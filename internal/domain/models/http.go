package models

// Requests for backtest HTTP endpoints. Defined in domain for consistency and reuse.

// BacktestRequest carries everything needed for one synchronous run. Series
// with no prediction/price overlap complete with zero metrics rather than
// failing.
type BacktestRequest struct {
	// model -> asset -> unix ts -> prediction value
	Predictions map[string]map[string]map[int64]float64 `json:"predictions,omitempty"`
	// asset -> unix ts -> close price
	Prices map[string]map[int64]float64 `json:"prices,omitempty"`

	Benchmark []float64 `json:"benchmark,omitempty"`

	InitialCapital   float64 `json:"initial_capital" default:"100000" validate:"gte=0"`
	TransactionCosts float64 `json:"transaction_costs" default:"0.001" validate:"gte=0,lte=0.5"`
	RiskFreeRate     float64 `json:"risk_free_rate" validate:"gte=0,lte=1"`

	Strategy string `json:"strategy" default:"regime_aware" validate:"oneof=equal_weight performance_weighted volatility_adjusted regime_aware confidence_weighted dynamic_selection correlation_adjusted adaptive_learning"`
	Persist  bool   `json:"persist"`
}

// WeightsRequest asks for the current ensemble weights for a symbol.
type WeightsRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Strategy string `query:"strategy" json:"strategy" default:"regime_aware" validate:"oneof=equal_weight performance_weighted volatility_adjusted regime_aware confidence_weighted dynamic_selection correlation_adjusted adaptive_learning"`
	N        int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
}

// RegimeRequest asks for the detected regime over the last N observations.
type RegimeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
}

// JobStatus is the lifecycle state of an async backtest job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobState is returned when polling an async backtest.
type JobState struct {
	JobID  string          `json:"job_id"`
	Status JobStatus       `json:"status"`
	Error  string          `json:"error,omitempty"`
	Result *BacktestResult `json:"result,omitempty"`
}
