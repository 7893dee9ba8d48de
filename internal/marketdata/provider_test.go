package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/contracts"
)

func fixtureSeries(symbol, sector string, dates ...time.Time) *contracts.InstrumentSeries {
	bars := make([]contracts.Bar, len(dates))
	for i, d := range dates {
		bars[i] = contracts.Bar{Date: d, Close: 100 + float64(i), Volume: 1000}
	}
	return &contracts.InstrumentSeries{
		Symbol: symbol,
		Sector: sector,
		Bars:   bars,
		Fundamentals: []contracts.FundamentalSnapshot{
			{AsOf: dates[0], Metrics: map[string]float64{"pe_ratio": 15}},
		},
	}
}

func fixtureDates() []time.Time {
	return []time.Time{
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryProviderFiltersDateRange(t *testing.T) {
	dates := fixtureDates()
	p := NewMemoryProvider(map[string]*contracts.InstrumentSeries{
		"AAA": fixtureSeries("AAA", "Tech", dates...),
	})

	bars, err := p.GetPriceHistory(context.Background(), "AAA", dates[1], dates[2])
	require.NoError(t, err)

	require.Len(t, bars, 2)
	assert.Equal(t, dates[1], bars[0].Date)
	assert.Equal(t, dates[2], bars[1].Date)
}

func TestMemoryProviderUnknownSymbol(t *testing.T) {
	p := NewMemoryProvider(nil)

	_, err := p.GetPriceHistory(context.Background(), "GHOST", time.Time{}, time.Now())
	assert.ErrorIs(t, err, contracts.ErrMissingData)

	_, _, err = p.GetFundamentals(context.Background(), "GHOST")
	assert.ErrorIs(t, err, contracts.ErrMissingData)
}

func TestMemoryProviderSymbolsSorted(t *testing.T) {
	dates := fixtureDates()
	p := NewMemoryProvider(map[string]*contracts.InstrumentSeries{
		"ZZZ": fixtureSeries("ZZZ", "", dates...),
		"AAA": fixtureSeries("AAA", "", dates...),
		"MMM": fixtureSeries("MMM", "", dates...),
	})

	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, p.Symbols())
}

func TestLoadUniverseAssemblesSeries(t *testing.T) {
	dates := fixtureDates()
	p := NewMemoryProvider(map[string]*contracts.InstrumentSeries{
		"AAA": fixtureSeries("AAA", "Tech", dates...),
		"BBB": fixtureSeries("BBB", "Energy", dates...),
	})

	universe, err := LoadUniverse(context.Background(), p, []string{"AAA", "BBB"}, dates[0], dates[2], 4)
	require.NoError(t, err)

	require.Len(t, universe, 2)
	assert.Equal(t, "Tech", universe["AAA"].Sector)
	assert.Equal(t, "Energy", universe["BBB"].Sector)
	assert.Len(t, universe["AAA"].Bars, 3)
	require.Len(t, universe["AAA"].Fundamentals, 1)
}

func TestLoadUniverseFailsOnMissingSymbol(t *testing.T) {
	dates := fixtureDates()
	p := NewMemoryProvider(map[string]*contracts.InstrumentSeries{
		"AAA": fixtureSeries("AAA", "Tech", dates...),
	})

	_, err := LoadUniverse(context.Background(), p, []string{"AAA", "GHOST"}, dates[0], dates[2], 4)
	assert.ErrorIs(t, err, contracts.ErrMissingData)
}

func TestLoadUniverseFailsOnEmptyHistory(t *testing.T) {
	dates := fixtureDates()
	p := NewMemoryProvider(map[string]*contracts.InstrumentSeries{
		"AAA": fixtureSeries("AAA", "Tech", dates...),
	})

	// Range entirely outside the available bars.
	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := LoadUniverse(context.Background(), p, []string{"AAA"}, from, to, 1)
	assert.ErrorIs(t, err, contracts.ErrMissingData)
}
