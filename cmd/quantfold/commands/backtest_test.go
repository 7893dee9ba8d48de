package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/backtest"
	"github.com/quantfold/quantfold/internal/contracts"
)

func TestBacktestShowRequiresRunID(t *testing.T) {
	assert.Error(t, backtestShowCmd.Args(backtestShowCmd, []string{}))
	assert.Error(t, backtestShowCmd.Args(backtestShowCmd, []string{"a", "b"}))
	assert.NoError(t, backtestShowCmd.Args(backtestShowCmd, []string{"20240628-180000"}))
}

func TestStoredRunResult(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC) }
	summary := &backtest.Summary{TotalReturn: 0.1, RealizedTurnover: 1.2}
	ledger := []contracts.PerformanceRecord{
		{Date: day(1), PortfolioValue: 100_000, Turnover: 1.0},
		{Date: day(2), PortfolioValue: 101_000},
		{Date: day(3), PortfolioValue: 102_000, Turnover: 0.2},
	}

	result := storedRunResult(summary, ledger)

	require.NotNil(t, result)
	assert.Equal(t, day(1), result.StartDate)
	assert.Equal(t, day(3), result.EndDate)
	assert.Equal(t, 3, result.TradingDays)
	assert.Equal(t, 2, result.RebalanceCount)
	assert.Equal(t, *summary, result.Summary)
}

func TestStoredRunResultEmptyLedger(t *testing.T) {
	result := storedRunResult(&backtest.Summary{}, nil)

	assert.Zero(t, result.TradingDays)
	assert.Zero(t, result.RebalanceCount)
	assert.True(t, result.StartDate.IsZero())
}
