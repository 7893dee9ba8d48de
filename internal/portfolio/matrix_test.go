package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/contracts"
)

func TestReturnsWindowStrictlyBeforeDate(t *testing.T) {
	series := oscillatingSeries("AAA", 50, 100, 0.02)
	date := series.Bars[30].Date

	returns := returnsWindow(series, date, 10)

	require.Len(t, returns, 10)
	// Recompute the last return from the bars directly.
	want := series.Bars[29].Close/series.Bars[28].Close - 1
	assert.InDelta(t, want, returns[len(returns)-1], 1e-12)
}

func TestTrailingVolatilityOrdersByAmplitude(t *testing.T) {
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	calm := oscillatingSeries("CALM", 100, 100, 0.005)
	wild := oscillatingSeries("WILD", 100, 100, 0.05)

	vCalm := trailingVolatility(calm, date, 60)
	vWild := trailingVolatility(wild, date, 60)

	assert.Greater(t, vWild, vCalm)
	assert.Greater(t, vCalm, 0.0)
}

func TestTrailingVolatilityInsufficientHistory(t *testing.T) {
	series := oscillatingSeries("AAA", 2, 100, 0.02)
	early := series.Bars[1].Date

	assert.Zero(t, trailingVolatility(series, early, 60))
}

func TestCovarianceMatrixSymmetric(t *testing.T) {
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	universe := map[string]*contracts.InstrumentSeries{
		"A": oscillatingSeries("A", 100, 100, 0.01),
		"B": oscillatingSeries("B", 100, 100, 0.03),
	}

	cov, err := covarianceMatrix(universe, []string{"A", "B"}, date, 60)
	require.NoError(t, err)

	require.Len(t, cov, 2)
	assert.Equal(t, cov[0][1], cov[1][0])
	assert.Greater(t, cov[0][0], 0.0)
	assert.Greater(t, cov[1][1], cov[0][0])
}

func TestCovarianceMatrixInsufficientHistory(t *testing.T) {
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	universe := map[string]*contracts.InstrumentSeries{
		"A": oscillatingSeries("A", 100, 100, 0.01),
		"B": oscillatingSeries("B", 2, 100, 0.01),
	}

	_, err := covarianceMatrix(universe, []string{"A", "B"}, date, 60)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestCorrelationFromCovariance(t *testing.T) {
	cov := [][]float64{
		{4, 2, 0},
		{2, 1, 0},
		{0, 0, 0},
	}

	corr := correlationFromCovariance(cov)

	assert.InDelta(t, 1.0, corr[0][0], 1e-12)
	assert.InDelta(t, 1.0, corr[0][1], 1e-12)
	// Zero-variance row correlates 0 off-diagonal, 1 with itself.
	assert.InDelta(t, 1.0, corr[2][2], 1e-12)
	assert.InDelta(t, 0.0, corr[2][0], 1e-12)
	assert.False(t, math.IsNaN(corr[2][1]))
}
