package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/quantfold/internal/contracts"
)

// Provider is the data boundary of the pipeline: everything downstream
// works on the InstrumentSeries it returns and never fetches on its own.
type Provider interface {
	// GetPriceHistory returns the instrument's daily bars in [from, to],
	// oldest first.
	GetPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error)

	// GetFundamentals returns the instrument's dated fundamental
	// snapshots, oldest first, plus its sector classification.
	GetFundamentals(ctx context.Context, symbol string) ([]contracts.FundamentalSnapshot, string, error)
}

// LoadUniverse assembles one InstrumentSeries per symbol, fetching with
// bounded parallelism. A symbol with no price history at all is an
// error; short histories are fine and get excluded per date downstream.
func LoadUniverse(ctx context.Context, provider Provider, symbols []string, from, to time.Time, parallelism int) (map[string]*contracts.InstrumentSeries, error) {
	if parallelism <= 0 {
		parallelism = 1
	}

	results := make([]*contracts.InstrumentSeries, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			bars, err := provider.GetPriceHistory(ctx, symbol, from, to)
			if err != nil {
				return fmt.Errorf("price history %s: %w", symbol, err)
			}
			if len(bars) == 0 {
				return fmt.Errorf("%s: %w", symbol, contracts.ErrMissingData)
			}

			fundamentals, sector, err := provider.GetFundamentals(ctx, symbol)
			if err != nil {
				return fmt.Errorf("fundamentals %s: %w", symbol, err)
			}

			results[i] = &contracts.InstrumentSeries{
				Symbol:       symbol,
				Sector:       sector,
				Bars:         bars,
				Fundamentals: fundamentals,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	universe := make(map[string]*contracts.InstrumentSeries, len(results))
	for _, series := range results {
		universe[series.Symbol] = series
	}
	return universe, nil
}

// MemoryProvider serves pre-built series from memory, for tests and
// fixture-driven backtests.
type MemoryProvider struct {
	series map[string]*contracts.InstrumentSeries
}

// NewMemoryProvider creates a provider over fixed series.
func NewMemoryProvider(series map[string]*contracts.InstrumentSeries) *MemoryProvider {
	return &MemoryProvider{series: series}
}

// Symbols lists the provider's symbols, sorted.
func (p *MemoryProvider) Symbols() []string {
	symbols := make([]string, 0, len(p.series))
	for symbol := range p.series {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (p *MemoryProvider) GetPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	series, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, contracts.ErrMissingData)
	}

	bars := make([]contracts.Bar, 0, len(series.Bars))
	for _, bar := range series.Bars {
		if bar.Date.Before(from) || bar.Date.After(to) {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (p *MemoryProvider) GetFundamentals(ctx context.Context, symbol string) ([]contracts.FundamentalSnapshot, string, error) {
	series, ok := p.series[symbol]
	if !ok {
		return nil, "", fmt.Errorf("%s: %w", symbol, contracts.ErrMissingData)
	}
	return series.Fundamentals, series.Sector, nil
}
