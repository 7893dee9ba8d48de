package backtest

import (
	"math"

	"github.com/quantfold/quantfold/internal/contracts"
)

const tradingDaysPerYear = 252

// Summary holds the statistics derived from a backtest's ledger.
type Summary struct {
	TotalReturn          float64 `json:"total_return"`
	CAGR                 float64 `json:"cagr"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	RealizedTurnover     float64 `json:"realized_turnover"`
	CostDrag             float64 `json:"cost_drag"`
	WinRate              float64 `json:"win_rate"`
	BenchmarkReturn      float64 `json:"benchmark_return"`
	ExcessReturn         float64 `json:"excess_return"`
	DegradedDays         int     `json:"degraded_days"`
}

// Summarize derives summary statistics from the daily ledger. Sharpe and
// Sortino use the configured annual risk-free rate; cost drag is the
// cumulative transaction cost as a fraction of initial capital.
func Summarize(ledger []contracts.PerformanceRecord, initialCapital, riskFreeRate float64) Summary {
	var s Summary
	if len(ledger) == 0 || initialCapital <= 0 {
		return s
	}

	final := ledger[len(ledger)-1].PortfolioValue
	s.TotalReturn = final/initialCapital - 1

	years := float64(len(ledger)) / tradingDaysPerYear
	if years > 0 && final > 0 {
		s.CAGR = math.Pow(final/initialCapital, 1/years) - 1
	}

	returns := make([]float64, 0, len(ledger)-1)
	wins := 0
	for i := 1; i < len(ledger); i++ {
		prev := ledger[i-1].PortfolioValue
		if prev <= 0 {
			continue
		}
		r := ledger[i].PortfolioValue/prev - 1
		returns = append(returns, r)
		if r > 0 {
			wins++
		}
	}
	if len(returns) > 0 {
		s.WinRate = float64(wins) / float64(len(returns))
	}

	s.AnnualizedVolatility = stddev(returns) * math.Sqrt(tradingDaysPerYear)
	if s.AnnualizedVolatility > 0 {
		s.SharpeRatio = (s.CAGR - riskFreeRate) / s.AnnualizedVolatility
	}

	downside := make([]float64, 0)
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	downsideDev := stddev(downside) * math.Sqrt(tradingDaysPerYear)
	if downsideDev > 0 {
		s.SortinoRatio = (s.CAGR - riskFreeRate) / downsideDev
	}

	peak := ledger[0].PortfolioValue
	for _, rec := range ledger {
		if rec.PortfolioValue > peak {
			peak = rec.PortfolioValue
		}
		if peak > 0 {
			dd := (peak - rec.PortfolioValue) / peak
			if dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
		s.RealizedTurnover += rec.Turnover
		s.CostDrag += rec.Cost
		if rec.Degraded {
			s.DegradedDays++
		}
	}
	s.CostDrag /= initialCapital

	firstBench := ledger[0].BenchmarkValue
	lastBench := ledger[len(ledger)-1].BenchmarkValue
	if firstBench > 0 {
		s.BenchmarkReturn = lastBench/firstBench - 1
		s.ExcessReturn = s.TotalReturn - s.BenchmarkReturn
	}

	return s
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
