package backtest

import (
	"math"
	"sort"

	"QuantBench/internal/domain/models"
)

// EvalConfig parameterizes metric computation.
type EvalConfig struct {
	RiskFreeRate float64 // annualized, decimal
	PeriodsYear  float64 // observations per year; 252 for daily bars
}

// DefaultEvalConfig uses a 252 trading-day year and zero risk-free rate.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{PeriodsYear: 252}
}

// Evaluate computes the full metric set from a finished return series. It is
// a pure function: same inputs, same output, no retained state. Every ratio
// with a zero denominator (Sharpe on flat series, Calmar with no drawdown,
// beta without benchmark variance) resolves to 0 rather than failing, so
// batch aggregation stays total.
func Evaluate(returns []float64, benchmark []float64, cfg EvalConfig) models.PerformanceMetrics {
	m := models.PerformanceMetrics{Observations: len(returns)}
	if len(returns) == 0 {
		return m
	}
	if cfg.PeriodsYear <= 0 {
		cfg.PeriodsYear = 252
	}

	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	m.TotalReturn = total - 1
	m.AnnualizedReturn = math.Pow(1+m.TotalReturn, cfg.PeriodsYear/float64(len(returns))) - 1

	sd := stddev(returns)
	m.Volatility = sd * math.Sqrt(cfg.PeriodsYear)

	excessMean := mean(returns) - cfg.RiskFreeRate/cfg.PeriodsYear
	if sd > 0 {
		m.Sharpe = excessMean / sd * math.Sqrt(cfg.PeriodsYear)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dsd := stddev(downside); dsd > 0 {
		m.Sortino = excessMean / dsd * math.Sqrt(cfg.PeriodsYear)
	}

	_, drawdowns := CumulativeAndDrawdowns(returns)
	for _, d := range drawdowns {
		if d < m.MaxDrawdown {
			m.MaxDrawdown = d
		}
	}
	if m.MaxDrawdown != 0 {
		m.Calmar = m.AnnualizedReturn / math.Abs(m.MaxDrawdown)
	}

	m.VaR95 = percentile(returns, 5)
	m.VaR99 = percentile(returns, 1)
	m.CVaR95 = tailMean(returns, m.VaR95)
	m.CVaR99 = tailMean(returns, m.VaR99)

	m.Beta, m.Alpha = betaAlpha(returns, benchmark)
	return m
}

// betaAlpha regresses returns on the benchmark over the overlapping index.
// Requires at least two overlapping points; otherwise both are 0.
func betaAlpha(returns, benchmark []float64) (beta, alpha float64) {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return 0, 0
	}
	r := returns[:n]
	b := benchmark[:n]

	mr, mb := mean(r), mean(b)
	var cov, varB float64
	for i := 0; i < n; i++ {
		cov += (r[i] - mr) * (b[i] - mb)
		varB += (b[i] - mb) * (b[i] - mb)
	}
	cov /= float64(n - 1)
	varB /= float64(n - 1)
	if varB <= 0 {
		return 0, 0
	}
	beta = cov / varB
	alpha = mr - beta*mb
	return beta, alpha
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// tailMean averages the returns at or below the given threshold.
func tailMean(xs []float64, threshold float64) float64 {
	var sum float64
	var n int
	for _, x := range xs {
		if x <= threshold {
			sum += x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
