package models

import "time"

// Regime is an enumerated market state attached to a time window.
type Regime string

const (
	RegimeTrendingBull  Regime = "trending_bull"
	RegimeTrendingBear  Regime = "trending_bear"
	RegimeRangingHiVol  Regime = "ranging_high_vol"
	RegimeRangingLoVol  Regime = "ranging_low_vol"
	RegimeBreakout      Regime = "breakout"
	RegimeReversal      Regime = "reversal"
	RegimeCrisis        Regime = "crisis"
	RegimeCarryTrade    Regime = "carry_trade"
	RegimeRiskOff       Regime = "risk_off"
	RegimeIntervention  Regime = "intervention"
)

// AllRegimes lists every defined regime.
func AllRegimes() []Regime {
	return []Regime{
		RegimeTrendingBull, RegimeTrendingBear, RegimeRangingHiVol,
		RegimeRangingLoVol, RegimeBreakout, RegimeReversal, RegimeCrisis,
		RegimeCarryTrade, RegimeRiskOff, RegimeIntervention,
	}
}

// RegimeReading is the detector's output for one window: the label plus a
// bounded heuristic confidence in [0,1].
type RegimeReading struct {
	Regime     Regime  `json:"regime"`
	Confidence float64 `json:"confidence"`
}

// MacroInputs are optional macro observations the regime detector blends in.
// Zero values mean "not available".
type MacroInputs struct {
	VIX              float64 // volatility index level, raw (e.g. 18.5)
	InterventionProb float64 // [0,1]
	RateDifferential float64 // interest rate differential, decimal
}

// ModelPrediction is one model's contribution to an ensemble decision.
type ModelPrediction struct {
	Model      string
	Asset      string
	Timestamp  time.Time
	Price      float64 // predicted price level
	Direction  int     // -1, 0, 1
	Confidence float64 // [0,1]
	Volatility float64 // predicted volatility, annualized

	// Per-regime knowledge the model carries about itself.
	RegimePerformance map[Regime]float64
	RegimeConfidence  map[Regime]float64
}

// ModelPerformance is the rolling history kept per model for adaptive
// weighting. It is mutated only by the performance tracker; consumers get
// copies.
type ModelPerformance struct {
	Model string

	TotalPredictions   int
	CorrectPredictions int
	Accuracy           float64

	RecentAccuracy30d float64
	RecentAccuracy7d  float64

	RegimeAccuracy    map[Regime]float64
	RegimeObservations map[Regime]int

	Consistency float64 // [0,1], 1 = perfectly stable predictions
	LastUpdated time.Time
}

// Clone returns a deep copy, so shared history can be read without races.
func (p ModelPerformance) Clone() ModelPerformance {
	out := p
	out.RegimeAccuracy = make(map[Regime]float64, len(p.RegimeAccuracy))
	for k, v := range p.RegimeAccuracy {
		out.RegimeAccuracy[k] = v
	}
	out.RegimeObservations = make(map[Regime]int, len(p.RegimeObservations))
	for k, v := range p.RegimeObservations {
		out.RegimeObservations[k] = v
	}
	return out
}

// EnsembleResult is what the weighter hands back: normalized weights plus
// strategy metadata for observability.
type EnsembleResult struct {
	Strategy   string                 `json:"strategy"`
	Regime     Regime                 `json:"regime"`
	Confidence float64                `json:"regime_confidence"`
	Weights    map[string]float64     `json:"weights"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	FellBack   bool                   `json:"fell_back,omitempty"`
}
