package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/contracts"
)

func targetFor(weights map[string]float64) *contracts.TargetWeights {
	return &contracts.TargetWeights{
		Date:    time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC),
		Weights: weights,
	}
}

func TestExecuteRebalanceInitialBuy(t *testing.T) {
	holdings := contracts.NewHoldings(100_000)
	prices := map[string]float64{"AAA": 100, "BBB": 50}

	trades, cost := executeRebalance(holdings, targetFor(map[string]float64{"AAA": 0.5, "BBB": 0.5}), prices, 0.001, 0)

	require.Len(t, trades, 2)
	require.Contains(t, holdings.Positions, "AAA")
	require.Contains(t, holdings.Positions, "BBB")
	assert.InDelta(t, 500.0, holdings.Positions["AAA"].Shares, 1e-9)
	assert.InDelta(t, 1000.0, holdings.Positions["BBB"].Shares, 1e-9)

	// 2 * 50,000 notional at 0.1% each.
	assert.InDelta(t, 100.0, cost, 1e-9)
	assert.InDelta(t, -100.0, holdings.Cash, 1e-9)
	assert.InDelta(t, 100_000-100.0, holdings.MarketValue(prices), 1e-9)
}

func TestExecuteRebalanceSellsBeforeBuys(t *testing.T) {
	holdings := contracts.NewHoldings(0)
	holdings.Positions["OLD"] = &contracts.Position{Symbol: "OLD", Shares: 1000, CostBasis: 100_000}
	prices := map[string]float64{"OLD": 100, "NEW": 100}

	trades, _ := executeRebalance(holdings, targetFor(map[string]float64{"NEW": 1.0}), prices, 0, 0)

	require.Len(t, trades, 2)
	assert.Equal(t, "OLD", trades[0].Symbol)
	assert.Negative(t, trades[0].Shares)
	assert.Equal(t, "NEW", trades[1].Symbol)
	assert.Positive(t, trades[1].Shares)

	assert.NotContains(t, holdings.Positions, "OLD")
	assert.InDelta(t, 1000.0, holdings.Positions["NEW"].Shares, 1e-9)
}

func TestExecuteRebalanceSlippageIsUnfavorable(t *testing.T) {
	holdings := contracts.NewHoldings(0)
	holdings.Positions["OLD"] = &contracts.Position{Symbol: "OLD", Shares: 100, CostBasis: 10_000}
	prices := map[string]float64{"OLD": 100, "NEW": 100}

	trades, _ := executeRebalance(holdings, targetFor(map[string]float64{"NEW": 1.0}), prices, 0, 0.01)

	require.Len(t, trades, 2)
	// Sells fill below the reference price, buys above it.
	assert.InDelta(t, 99.0, trades[0].Price, 1e-9)
	assert.InDelta(t, 101.0, trades[1].Price, 1e-9)
}

func TestExecuteRebalanceSkipsDustAndUnpriced(t *testing.T) {
	holdings := contracts.NewHoldings(100_000)
	prices := map[string]float64{"AAA": 100}

	// DARK has no price, AAA's target matches the dust threshold.
	trades, cost := executeRebalance(holdings, targetFor(map[string]float64{"AAA": 1e-12, "DARK": 0.5}), prices, 0.001, 0)

	assert.Empty(t, trades)
	assert.Zero(t, cost)
	assert.InDelta(t, 100_000, holdings.Cash, 1e-9)
}

func TestExecuteRebalanceRelievesCostBasisOnPartialSell(t *testing.T) {
	holdings := contracts.NewHoldings(0)
	holdings.Positions["AAA"] = &contracts.Position{Symbol: "AAA", Shares: 1000, CostBasis: 100_000}
	prices := map[string]float64{"AAA": 100}

	// Equity is 100,000; halving the weight sells half the shares.
	_, _ = executeRebalance(holdings, targetFor(map[string]float64{"AAA": 0.5}), prices, 0, 0)

	pos := holdings.Positions["AAA"]
	assert.InDelta(t, 500.0, pos.Shares, 1e-9)
	assert.InDelta(t, 50_000.0, pos.CostBasis, 1e-9)
	assert.InDelta(t, 50_000.0, holdings.Cash, 1e-9)
}
