package factors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/contracts"
)

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	rsi, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}

	rsi, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestRSIOrdersByStrength(t *testing.T) {
	up := []float64{100, 101, 101, 102, 103, 103, 104, 105, 105, 106, 107, 107, 108, 109, 110, 111}
	down := []float64{100, 99, 99, 98, 97, 97, 96, 95, 95, 94, 93, 93, 92, 91, 90, 89}

	rsiUp, err := RSI(up, 14)
	require.NoError(t, err)
	rsiDown, err := RSI(down, 14)
	require.NoError(t, err)

	assert.Greater(t, rsiUp, 50.0)
	assert.Less(t, rsiDown, 50.0)
}

func TestRSIInsufficientHistory(t *testing.T) {
	_, err := RSI([]float64{100, 101, 102}, 14)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}

	sma, err := SMA(values, 3)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, sma, 1e-9)

	_, err = SMA(values, 10)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}
