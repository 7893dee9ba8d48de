package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC)
}

func sampleSeries() *InstrumentSeries {
	return &InstrumentSeries{
		Symbol: "AAA",
		Bars: []Bar{
			{Date: day(1), Close: 100},
			{Date: day(2), Close: 101},
			{Date: day(3), Close: 102},
			{Date: day(5), Close: 103},
		},
		Fundamentals: []FundamentalSnapshot{
			{AsOf: day(1), Metrics: map[string]float64{"pe_ratio": 10}},
			{AsOf: day(4), Metrics: map[string]float64{"pe_ratio": 12}},
		},
	}
}

func TestBarsBeforeIsStrict(t *testing.T) {
	s := sampleSeries()

	bars := s.BarsBefore(day(3))
	require.Len(t, bars, 2)
	assert.Equal(t, day(2), bars[1].Date)

	assert.Empty(t, s.BarsBefore(day(1)))
	assert.Len(t, s.BarsBefore(day(10)), 4)
}

func TestClosesBefore(t *testing.T) {
	s := sampleSeries()
	assert.Equal(t, []float64{100, 101, 102}, s.ClosesBefore(day(4)))
}

func TestPriceOnExactDateOnly(t *testing.T) {
	s := sampleSeries()

	price, ok := s.PriceOn(day(3))
	require.True(t, ok)
	assert.Equal(t, 102.0, price)

	// No bar on the 4th; no carry-forward here.
	_, ok = s.PriceOn(day(4))
	assert.False(t, ok)
}

func TestFundamentalsAsOf(t *testing.T) {
	s := sampleSeries()

	snap, ok := s.FundamentalsAsOf(day(4))
	require.True(t, ok)
	assert.Equal(t, 12.0, snap.Metrics["pe_ratio"])

	snap, ok = s.FundamentalsAsOf(day(2))
	require.True(t, ok)
	assert.Equal(t, 10.0, snap.Metrics["pe_ratio"])

	_, ok = s.FundamentalsAsOf(day(1).AddDate(0, 0, -1))
	assert.False(t, ok)
}

func TestRankedBreaksTiesBySymbol(t *testing.T) {
	c := &CompositeSnapshot{
		Date:   day(1),
		Scores: map[string]float64{"BBB": 1.0, "AAA": 1.0, "CCC": 2.0},
	}

	ranked := c.Ranked()
	require.Len(t, ranked, 3)
	assert.Equal(t, "CCC", ranked[0].Symbol)
	assert.Equal(t, "AAA", ranked[1].Symbol)
	assert.Equal(t, "BBB", ranked[2].Symbol)
	assert.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func TestTopKClampsToUniverse(t *testing.T) {
	c := &CompositeSnapshot{Scores: map[string]float64{"AAA": 1, "BBB": 2}}
	assert.Len(t, c.TopK(10), 2)
	assert.Equal(t, "BBB", c.TopK(1)[0].Symbol)
}

func TestTurnoverUnionOfSymbols(t *testing.T) {
	from := map[string]float64{"A": 0.5, "B": 0.5}
	to := map[string]float64{"B": 0.3, "C": 0.4}

	// |0-0.5| + |0.3-0.5| + |0.4-0| = 1.1
	assert.InDelta(t, 1.1, Turnover(from, to), 1e-12)
	assert.InDelta(t, 0.0, Turnover(from, from), 1e-12)
	assert.InDelta(t, 1.0, Turnover(nil, from), 1e-12)
}

func TestHoldingsValueAndWeights(t *testing.T) {
	h := NewHoldings(1000)
	h.Positions["AAA"] = &Position{Symbol: "AAA", Shares: 10, CostBasis: 900}
	prices := map[string]float64{"AAA": 100}

	assert.InDelta(t, 2000.0, h.MarketValue(prices), 1e-9)

	weights := h.CurrentWeights(prices)
	assert.InDelta(t, 0.5, weights["AAA"], 1e-9)

	empty := NewHoldings(0)
	assert.Empty(t, empty.CurrentWeights(prices))
}

func TestIsExcludable(t *testing.T) {
	assert.True(t, IsExcludable(ErrMissingData))
	assert.True(t, IsExcludable(ErrInsufficientHistory))
	assert.False(t, IsExcludable(assert.AnError))
}
