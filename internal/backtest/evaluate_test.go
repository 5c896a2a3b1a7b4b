package backtest

import (
	"math"
	"reflect"
	"testing"
)

func TestEvaluateZeroVolatilitySharpe(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = 0.01
	}
	m := Evaluate(returns, nil, EvalConfig{RiskFreeRate: 0, PeriodsYear: 252})

	if m.Sharpe != 0 {
		t.Fatalf("sharpe of a zero-volatility series must be 0, got %v", m.Sharpe)
	}
	if math.IsNaN(m.Sharpe) || math.IsNaN(m.Sortino) || math.IsNaN(m.Calmar) {
		t.Fatalf("metrics must not be NaN: %+v", m)
	}
	// no negative returns -> sortino guard
	if m.Sortino != 0 {
		t.Fatalf("sortino without downside must be 0, got %v", m.Sortino)
	}
}

func TestEvaluateEmptySeries(t *testing.T) {
	m := Evaluate(nil, nil, DefaultEvalConfig())
	if m.TotalReturn != 0 || m.AnnualizedReturn != 0 || m.Observations != 0 {
		t.Fatalf("empty series must yield zero metrics, got %+v", m)
	}
}

func TestEvaluateTotalAndAnnualizedReturn(t *testing.T) {
	returns := []float64{0.1, -0.05}
	m := Evaluate(returns, nil, DefaultEvalConfig())

	wantTotal := 1.1*0.95 - 1
	if math.Abs(m.TotalReturn-wantTotal) > 1e-12 {
		t.Fatalf("total return = %v, want %v", m.TotalReturn, wantTotal)
	}
	wantAnn := math.Pow(1+wantTotal, 252.0/2) - 1
	if math.Abs(m.AnnualizedReturn-wantAnn) > 1e-9 {
		t.Fatalf("annualized return = %v, want %v", m.AnnualizedReturn, wantAnn)
	}
}

func TestEvaluateMaxDrawdownAndCalmar(t *testing.T) {
	returns := []float64{0.1, -0.5, 0.2}
	m := Evaluate(returns, nil, DefaultEvalConfig())

	if math.Abs(m.MaxDrawdown-(-0.5)) > 1e-12 {
		t.Fatalf("max drawdown = %v, want -0.5", m.MaxDrawdown)
	}
	wantCalmar := m.AnnualizedReturn / 0.5
	if math.Abs(m.Calmar-wantCalmar) > 1e-9 {
		t.Fatalf("calmar = %v, want %v", m.Calmar, wantCalmar)
	}
}

func TestEvaluateVaRCVaR(t *testing.T) {
	returns := []float64{-0.10, -0.05, 0, 0.05, 0.10}
	m := Evaluate(returns, nil, DefaultEvalConfig())

	// 5th percentile with linear interpolation over 5 points
	wantVaR := -0.10*0.8 + -0.05*0.2
	if math.Abs(m.VaR95-wantVaR) > 1e-12 {
		t.Fatalf("VaR95 = %v, want %v", m.VaR95, wantVaR)
	}
	// only -0.10 sits at or below the VaR
	if math.Abs(m.CVaR95-(-0.10)) > 1e-12 {
		t.Fatalf("CVaR95 = %v, want -0.10", m.CVaR95)
	}
	if m.VaR99 > m.VaR95 {
		t.Fatalf("VaR99 (%v) must not exceed VaR95 (%v)", m.VaR99, m.VaR95)
	}
}

func TestEvaluateBetaAlpha(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03, -0.01}

	// identical benchmark -> beta 1, alpha 0
	m := Evaluate(returns, returns, DefaultEvalConfig())
	if math.Abs(m.Beta-1) > 1e-12 || math.Abs(m.Alpha) > 1e-12 {
		t.Fatalf("beta/alpha vs self = %v/%v, want 1/0", m.Beta, m.Alpha)
	}

	// fewer than two overlapping points -> both zero
	m = Evaluate(returns, []float64{0.01}, DefaultEvalConfig())
	if m.Beta != 0 || m.Alpha != 0 {
		t.Fatalf("beta/alpha without overlap = %v/%v, want 0/0", m.Beta, m.Alpha)
	}

	// flat benchmark -> zero variance guard
	m = Evaluate(returns, []float64{0.01, 0.01, 0.01, 0.01}, DefaultEvalConfig())
	if m.Beta != 0 || m.Alpha != 0 {
		t.Fatalf("beta/alpha vs flat benchmark = %v/%v, want 0/0", m.Beta, m.Alpha)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.005, 0.03, -0.04}
	bench := []float64{0.01, -0.02, 0.01, 0.02, -0.03}

	a := Evaluate(returns, bench, DefaultEvalConfig())
	b := Evaluate(returns, bench, DefaultEvalConfig())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("evaluator is not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if got := percentile(xs, 50); math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("median = %v, want 2.5", got)
	}
	if got := percentile(xs, 0); got != 1 {
		t.Fatalf("p0 = %v, want 1", got)
	}
	if got := percentile(xs, 100); got != 4 {
		t.Fatalf("p100 = %v, want 4", got)
	}
	if got := percentile([]float64{7}, 95); got != 7 {
		t.Fatalf("single element percentile = %v, want 7", got)
	}
}
