package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

func testPortfolioConfig(method string, topK int) strategyconfig.PortfolioConfig {
	return strategyconfig.PortfolioConfig{
		OptimizationMethod:     method,
		MaxSectorWeight:        1.0,
		MaxTurnover:            10.0,
		TopK:                   topK,
		CovarianceLookbackDays: 60,
		SectorCapIterations:    10,
		ConvergenceTolerance:   1e-6,
		RiskAversion:           1.0,
	}
}

// oscillatingSeries builds weekday bars whose close alternates around
// base by amp, giving a controllable return volatility.
func oscillatingSeries(symbol string, n int, base, amp float64) *contracts.InstrumentSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, 0, n)
	date := start
	for i := 0; i < n; i++ {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		price := base
		if i%2 == 1 {
			price = base * (1 + amp)
		}
		bars = append(bars, contracts.Bar{Date: date, Close: price, Volume: 1000})
		date = date.AddDate(0, 0, 1)
	}
	return &contracts.InstrumentSeries{Symbol: symbol, Bars: bars}
}

func testInputs(scores map[string]float64, amps map[string]float64) Inputs {
	date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	universe := make(map[string]*contracts.InstrumentSeries, len(scores))
	for symbol := range scores {
		amp := 0.02
		if a, ok := amps[symbol]; ok {
			amp = a
		}
		universe[symbol] = oscillatingSeries(symbol, 100, 100, amp)
	}
	return Inputs{
		Date:      date,
		Composite: &contracts.CompositeSnapshot{Date: date, Scores: scores},
		Universe:  universe,
	}
}

func TestConstructEqualWeightClipsToMax(t *testing.T) {
	cfg := testPortfolioConfig(MethodEqualWeight, 2)
	c := NewConstructor(cfg, 0.02, 0.10, logger.NewNop())

	in := testInputs(map[string]float64{"A": 4, "B": 3, "C": 2, "D": 1}, nil)
	target, err := c.Construct(in)
	require.NoError(t, err)

	// 1/2 exceeds the max position size, so both names clip to the max
	// and the remainder stays in cash.
	assert.Len(t, target.Weights, 2)
	assert.InDelta(t, 0.10, target.Weights["A"], 1e-9)
	assert.InDelta(t, 0.10, target.Weights["B"], 1e-9)
	assert.NotContains(t, target.Weights, "C")
	assert.NotContains(t, target.Weights, "D")
	assert.InDelta(t, 0.20, target.Total(), 1e-9)
}

func TestConstructWeightsWithinBounds(t *testing.T) {
	for _, method := range []string{MethodEqualWeight, MethodRiskParity, MethodMeanVariance, MethodHRP} {
		cfg := testPortfolioConfig(method, 4)
		minPos, maxPos := 0.02, 0.40
		c := NewConstructor(cfg, minPos, maxPos, logger.NewNop())

		in := testInputs(map[string]float64{"A": 4, "B": 3, "C": 2, "D": 1},
			map[string]float64{"A": 0.01, "B": 0.02, "C": 0.03, "D": 0.04})
		target, err := c.Construct(in)
		require.NoError(t, err, method)

		total := 0.0
		for symbol, w := range target.Weights {
			assert.GreaterOrEqual(t, w, minPos-1e-9, "%s %s", method, symbol)
			assert.LessOrEqual(t, w, maxPos+1e-9, "%s %s", method, symbol)
			total += w
		}
		assert.LessOrEqual(t, total, 1.0+1e-6, method)
		assert.Greater(t, total, 0.0, method)
	}
}

func TestConstructRiskParityFavorsLowVolatility(t *testing.T) {
	cfg := testPortfolioConfig(MethodRiskParity, 2)
	c := NewConstructor(cfg, 0.0, 1.0, logger.NewNop())

	in := testInputs(map[string]float64{"CALM": 1, "WILD": 2},
		map[string]float64{"CALM": 0.005, "WILD": 0.05})
	target, err := c.Construct(in)
	require.NoError(t, err)

	assert.Greater(t, target.Weights["CALM"], target.Weights["WILD"])
	assert.InDelta(t, 1.0, target.Total(), 1e-6)
}

func TestConstructDeterministic(t *testing.T) {
	for _, method := range []string{MethodMeanVariance, MethodHRP} {
		cfg := testPortfolioConfig(method, 4)
		c := NewConstructor(cfg, 0.0, 0.60, logger.NewNop())

		in := testInputs(map[string]float64{"A": 4, "B": 3, "C": 2, "D": 1},
			map[string]float64{"A": 0.01, "B": 0.02, "C": 0.03, "D": 0.04})

		first, err := c.Construct(in)
		require.NoError(t, err, method)
		second, err := c.Construct(in)
		require.NoError(t, err, method)

		assert.Equal(t, first.Weights, second.Weights, method)
	}
}

func TestConstructHRPFullyInvested(t *testing.T) {
	cfg := testPortfolioConfig(MethodHRP, 4)
	c := NewConstructor(cfg, 0.0, 1.0, logger.NewNop())

	in := testInputs(map[string]float64{"A": 4, "B": 3, "C": 2, "D": 1},
		map[string]float64{"A": 0.01, "B": 0.02, "C": 0.03, "D": 0.04})
	target, err := c.Construct(in)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, target.Total(), 1e-6)
	assert.Len(t, target.Weights, 4)
}

func TestConstructDropsSubMinAfterTurnoverCap(t *testing.T) {
	cfg := testPortfolioConfig(MethodEqualWeight, 2)
	cfg.MaxTurnover = 0.2
	c := NewConstructor(cfg, 0.10, 0.60, logger.NewNop())

	in := testInputs(map[string]float64{"C": 2, "D": 1}, nil)
	in.Prior = map[string]float64{"A": 0.5, "B": 0.5}

	target, err := c.Construct(in)
	require.NoError(t, err)

	// Scaling the full swap down to the turnover budget leaves C and D
	// at 0.05 each, under the minimum position size, so they are dropped
	// and the weight stays in cash.
	assert.InDelta(t, 0.45, target.Weights["A"], 1e-9)
	assert.InDelta(t, 0.45, target.Weights["B"], 1e-9)
	assert.NotContains(t, target.Weights, "C")
	assert.NotContains(t, target.Weights, "D")
	for symbol, w := range target.Weights {
		assert.GreaterOrEqual(t, w, 0.10-1e-9, symbol)
	}
}

func TestConstructEmptyUniverseInfeasible(t *testing.T) {
	cfg := testPortfolioConfig(MethodEqualWeight, 5)
	c := NewConstructor(cfg, 0.02, 0.10, logger.NewNop())

	in := testInputs(map[string]float64{}, nil)
	_, err := c.Construct(in)

	var infeasible *contracts.ConstraintInfeasibleError
	assert.ErrorAs(t, err, &infeasible)
}

func TestConstructUnknownMethod(t *testing.T) {
	cfg := testPortfolioConfig("martingale", 2)
	c := NewConstructor(cfg, 0.02, 0.10, logger.NewNop())

	in := testInputs(map[string]float64{"A": 1, "B": 2}, nil)
	_, err := c.Construct(in)
	assert.Error(t, err)
}
