package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/quantfold/quantfold/internal/contracts"
)

// returnsWindow extracts up to lookback daily returns ending strictly
// before date.
func returnsWindow(series *contracts.InstrumentSeries, date time.Time, lookback int) []float64 {
	closes := series.ClosesBefore(date)
	if len(closes) < 2 {
		return nil
	}
	if len(closes) > lookback+1 {
		closes = closes[len(closes)-lookback-1:]
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns
}

// trailingVolatility estimates an instrument's daily return volatility
// over the lookback window ending strictly before date. Returns 0 when
// there is not enough history to estimate.
func trailingVolatility(series *contracts.InstrumentSeries, date time.Time, lookback int) float64 {
	returns := returnsWindow(series, date, lookback)
	if len(returns) < 2 {
		return 0
	}
	return stddev(returns)
}

// covarianceMatrix estimates the daily return covariance of the given
// symbols over the trailing lookback window. Input series share a
// trading calendar (the data collaborator supplies aligned series), so
// alignment truncates every return series to the shortest available.
func covarianceMatrix(universe map[string]*contracts.InstrumentSeries, symbols []string, date time.Time, lookback int) ([][]float64, error) {
	n := len(symbols)
	rets := make([][]float64, n)
	shortest := math.MaxInt

	for i, symbol := range symbols {
		r := returnsWindow(universe[symbol], date, lookback)
		if len(r) < 2 {
			return nil, fmt.Errorf("%s: %w", symbol, contracts.ErrInsufficientHistory)
		}
		rets[i] = r
		if len(r) < shortest {
			shortest = len(r)
		}
	}

	for i := range rets {
		rets[i] = rets[i][len(rets[i])-shortest:]
	}

	means := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, r := range rets[i] {
			means[i] += r
		}
		means[i] /= float64(shortest)
	}

	cov := make([][]float64, n)
	for i := 0; i < n; i++ {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := 0.0
			for k := 0; k < shortest; k++ {
				s += (rets[i][k] - means[i]) * (rets[j][k] - means[j])
			}
			s /= float64(shortest)
			cov[i][j] = s
			cov[j][i] = s
		}
	}

	return cov, nil
}

// correlationFromCovariance converts a covariance matrix to a
// correlation matrix. Zero-variance rows correlate 0 with everything
// and 1 with themselves.
func correlationFromCovariance(cov [][]float64) [][]float64 {
	n := len(cov)
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		std[i] = math.Sqrt(cov[i][i])
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1
				continue
			}
			if std[i] == 0 || std[j] == 0 {
				corr[i][j] = 0
				continue
			}
			corr[i][j] = cov[i][j] / (std[i] * std[j])
		}
	}
	return corr
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
