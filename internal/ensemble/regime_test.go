package ensemble

import (
	"math"
	"testing"

	"QuantBench/internal/domain/models"
)

func TestDetectInsufficientData(t *testing.T) {
	d := NewRegimeDetector()
	r := d.Detect([]float64{100, 101, 102}, models.MacroInputs{})
	if r.Regime != models.RegimeRangingLoVol {
		t.Fatalf("short history should default to ranging_low_vol, got %s", r.Regime)
	}
	if r.Confidence != 0.5 {
		t.Fatalf("short history confidence = %v, want 0.5", r.Confidence)
	}
}

func TestDetectTrendingBull(t *testing.T) {
	prices := make([]float64, DefaultLookback)
	for i := range prices {
		// steady 0.2% daily climb: strong trend, low volatility
		prices[i] = 100 * math.Pow(1.002, float64(i))
	}
	d := NewRegimeDetector()
	r := d.Detect(prices, models.MacroInputs{})
	if r.Regime != models.RegimeTrendingBull {
		t.Fatalf("expected trending_bull, got %s", r.Regime)
	}
	if r.Confidence <= 0.5 || r.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", r.Confidence)
	}
}

func TestDetectTrendingBear(t *testing.T) {
	prices := make([]float64, DefaultLookback)
	for i := range prices {
		prices[i] = 100 * math.Pow(0.998, float64(i))
	}
	d := NewRegimeDetector()
	if r := d.Detect(prices, models.MacroInputs{}); r.Regime != models.RegimeTrendingBear {
		t.Fatalf("expected trending_bear, got %s", r.Regime)
	}
}

func TestDetectCrisisPriority(t *testing.T) {
	// a strongly trending market still reads as crisis when VIX spikes
	prices := make([]float64, DefaultLookback)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.002, float64(i))
	}
	d := NewRegimeDetector()
	r := d.Detect(prices, models.MacroInputs{VIX: 45})
	if r.Regime != models.RegimeCrisis {
		t.Fatalf("crisis must take priority, got %s", r.Regime)
	}
}

func TestDetectInterventionPriority(t *testing.T) {
	prices := make([]float64, DefaultLookback)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.002, float64(i))
	}
	d := NewRegimeDetector()
	r := d.Detect(prices, models.MacroInputs{InterventionProb: 0.8})
	if r.Regime != models.RegimeIntervention {
		t.Fatalf("intervention must take priority over trend, got %s", r.Regime)
	}
	if math.Abs(r.Confidence-0.8) > 1e-12 {
		t.Fatalf("intervention confidence = %v, want 0.8", r.Confidence)
	}
}

func TestDetectHighVolCrisis(t *testing.T) {
	// alternate +5%/-5%: realized volatility far beyond twice the threshold
	prices := make([]float64, DefaultLookback)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		if i%2 == 0 {
			prices[i] = prices[i-1] * 1.05
		} else {
			prices[i] = prices[i-1] * 0.95
		}
	}
	d := NewRegimeDetector()
	if r := d.Detect(prices, models.MacroInputs{}); r.Regime != models.RegimeCrisis {
		t.Fatalf("extreme volatility should read as crisis, got %s", r.Regime)
	}
}

func TestDetectConfidenceBounded(t *testing.T) {
	d := NewRegimeDetector()
	inputs := [][]float64{
		flatPrices(DefaultLookback),
		rampPrices(DefaultLookback, 1.01),
		rampPrices(DefaultLookback, 0.97),
	}
	for _, prices := range inputs {
		r := d.Detect(prices, models.MacroInputs{VIX: 60, InterventionProb: 0.9})
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Fatalf("confidence out of [0,1]: %v", r.Confidence)
		}
	}
}

func TestStability(t *testing.T) {
	d := NewRegimeDetector()
	prices := flatPrices(DefaultLookback)
	for i := 0; i < 10; i++ {
		d.Detect(prices, models.MacroInputs{})
	}
	if s := d.Stability(10); s != 1.0 {
		t.Fatalf("stability of identical readings = %v, want 1", s)
	}
	if s := d.Stability(1000); s != 0.5 {
		t.Fatalf("stability without enough history = %v, want 0.5", s)
	}
}

func TestTransitionProbsNormalized(t *testing.T) {
	d := NewRegimeDetector()
	for _, regime := range models.AllRegimes() {
		probs := d.TransitionProbs(regime)
		sum := 0.0
		for _, p := range probs {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%s: transition probs sum to %v", regime, sum)
		}
	}
}

func flatPrices(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100
	}
	return prices
}

func rampPrices(n int, step float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 * math.Pow(step, float64(i))
	}
	return prices
}
