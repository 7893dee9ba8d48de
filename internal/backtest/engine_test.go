package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/factors"
	"github.com/quantfold/quantfold/internal/portfolio"
	"github.com/quantfold/quantfold/internal/scoring"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

// flatSeries builds n weekday bars at a constant price, starting
// 2024-01-02. Constant prices make the cost accounting exact.
func flatSeries(symbol string, n int, price float64) *contracts.InstrumentSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, 0, n)
	d := start
	for i := 0; i < n; i++ {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		bars = append(bars, contracts.Bar{Date: d, Close: price, Volume: 1000})
		d = d.AddDate(0, 0, 1)
	}
	return &contracts.InstrumentSeries{Symbol: symbol, Bars: bars}
}

func newTestEngine(cfg strategyconfig.BacktestConfig) *Engine {
	factorCfg := strategyconfig.FactorConfig{
		MomentumWindows:   []int{5, 21},
		VolatilityWindows: []int{10},
		ZScoreWindow:      100,
		WinsorizeSigma:    3.0,
		MinDataPoints:     100,
	}
	weights := strategyconfig.FactorWeights{
		Momentum:  map[string]float64{"momentum_5d": 1.0},
		Composite: map[string]float64{"momentum": 1.0},
	}
	pipeline := scoring.NewPipeline(factors.NewLibrary(factorCfg), weights, factorCfg, 4, logger.NewNop())

	portfolioCfg := strategyconfig.PortfolioConfig{
		OptimizationMethod:     portfolio.MethodEqualWeight,
		MaxSectorWeight:        1.0,
		MaxTurnover:            10.0,
		TopK:                   2,
		CovarianceLookbackDays: 60,
		SectorCapIterations:    10,
		ConvergenceTolerance:   1e-6,
	}
	constructor := portfolio.NewConstructor(portfolioCfg, 0.0, 0.6, logger.NewNop())

	return NewEngine(pipeline, constructor, cfg, 0.0, logger.NewNop())
}

func weeklyBacktestConfig() strategyconfig.BacktestConfig {
	return strategyconfig.BacktestConfig{
		InitialCapital:     100_000,
		RebalanceFrequency: FrequencyWeekly,
		RebalanceWeekday:   "Friday",
		TransactionCost:    0.001,
		Slippage:           0.0,
		MaxPositionSize:    0.6,
		MinPositionSize:    0.0,
	}
}

func TestRunCostDragOnFlatPrices(t *testing.T) {
	cfg := weeklyBacktestConfig()
	e := newTestEngine(cfg)
	universe := map[string]*contracts.InstrumentSeries{
		"AAA": flatSeries("AAA", 200, 100),
		"BBB": flatSeries("BBB", 200, 100),
	}

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	result, err := e.Run(context.Background(), universe, nil, start, end)
	require.NoError(t, err)

	assert.Equal(t, 23, result.TradingDays)
	assert.Equal(t, 4, result.RebalanceCount)

	// With flat prices and zero slippage, the only way to lose money is
	// commission: final value must equal capital minus cumulative cost.
	totalCost := 0.0
	for _, rec := range result.Ledger {
		totalCost += rec.Cost
	}
	final := result.Ledger[len(result.Ledger)-1].PortfolioValue
	assert.InDelta(t, cfg.InitialCapital-totalCost, final, 1e-6)
	assert.Greater(t, totalCost, 0.0)

	// First rebalance buys two half positions: 2 * 50,000 * 0.1% = 100.
	firstRebalance := time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC)
	for _, rec := range result.Ledger {
		if rec.Date.Equal(firstRebalance) {
			assert.InDelta(t, 100.0, rec.Cost, 1e-6)
		}
	}

	assert.InDelta(t, totalCost/cfg.InitialCapital, result.Summary.CostDrag, 1e-12)
	assert.Less(t, result.Summary.TotalReturn, 0.0)
}

func TestRunCarriesPricesForwardAndFlagsDegraded(t *testing.T) {
	cfg := weeklyBacktestConfig()
	e := newTestEngine(cfg)

	// GAP's feed stops on 2024-07-15; the engine must carry its last
	// price forward and flag every later record.
	gap := flatSeries("GAP", 200, 100)
	cutoff := time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC)
	for i, bar := range gap.Bars {
		if !bar.Date.Before(cutoff) {
			gap.Bars = gap.Bars[:i]
			break
		}
	}
	universe := map[string]*contracts.InstrumentSeries{
		"AAA": flatSeries("AAA", 200, 100),
		"GAP": gap,
	}

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	result, err := e.Run(context.Background(), universe, nil, start, end)
	require.NoError(t, err)

	assert.False(t, result.Ledger[0].Degraded)
	assert.True(t, result.Ledger[len(result.Ledger)-1].Degraded)

	// Carried-forward flat price keeps the cost identity intact.
	totalCost := 0.0
	for _, rec := range result.Ledger {
		totalCost += rec.Cost
	}
	final := result.Ledger[len(result.Ledger)-1].PortfolioValue
	assert.InDelta(t, cfg.InitialCapital-totalCost, final, 1e-6)
}

func TestRunExcludesShortHistoryInstruments(t *testing.T) {
	cfg := weeklyBacktestConfig()
	e := newTestEngine(cfg)
	universe := map[string]*contracts.InstrumentSeries{
		"AAA": flatSeries("AAA", 200, 100),
		"BBB": flatSeries("BBB", 200, 100),
		"NEW": flatSeries("NEW", 30, 100),
	}

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	result, err := e.Run(context.Background(), universe, nil, start, end)
	require.NoError(t, err)

	for _, trade := range result.Trades {
		assert.NotEqual(t, "NEW", trade.Symbol)
	}
	require.NotNil(t, result.FinalWeights)
	assert.NotContains(t, result.FinalWeights.Weights, "NEW")
}

func TestRunDeterministic(t *testing.T) {
	cfg := weeklyBacktestConfig()
	universe := map[string]*contracts.InstrumentSeries{
		"AAA": flatSeries("AAA", 200, 100),
		"BBB": flatSeries("BBB", 200, 100),
	}
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)

	first, err := newTestEngine(cfg).Run(context.Background(), universe, nil, start, end)
	require.NoError(t, err)
	second, err := newTestEngine(cfg).Run(context.Background(), universe, nil, start, end)
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Ledger, second.Ledger)
	assert.Equal(t, first.Trades, second.Trades)
}

func TestRunBenchmarkTracking(t *testing.T) {
	cfg := weeklyBacktestConfig()
	e := newTestEngine(cfg)
	universe := map[string]*contracts.InstrumentSeries{
		"AAA": flatSeries("AAA", 200, 100),
		"BBB": flatSeries("BBB", 200, 100),
	}
	benchmark := flatSeries("SPY", 200, 50)

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	result, err := e.Run(context.Background(), universe, benchmark, start, end)
	require.NoError(t, err)

	for _, rec := range result.Ledger {
		assert.InDelta(t, cfg.InitialCapital, rec.BenchmarkValue, 1e-9)
	}
	assert.InDelta(t, 0.0, result.Summary.BenchmarkReturn, 1e-12)
	assert.InDelta(t, result.Summary.TotalReturn, result.Summary.ExcessReturn, 1e-12)
}

func TestRunAbortsWhenNoEligibleInstruments(t *testing.T) {
	cfg := weeklyBacktestConfig()
	e := newTestEngine(cfg)
	universe := map[string]*contracts.InstrumentSeries{
		"NEW": flatSeries("NEW", 30, 100),
	}

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	_, err := e.Run(context.Background(), universe, nil, start, end)

	var infeasible *contracts.ConstraintInfeasibleError
	assert.ErrorAs(t, err, &infeasible)
}

func TestRunRejectsUnknownFrequency(t *testing.T) {
	cfg := weeklyBacktestConfig()
	cfg.RebalanceFrequency = "fortnightly"
	e := newTestEngine(cfg)
	universe := map[string]*contracts.InstrumentSeries{
		"AAA": flatSeries("AAA", 200, 100),
	}

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	_, err := e.Run(context.Background(), universe, nil, start, end)
	assert.Error(t, err)
}
