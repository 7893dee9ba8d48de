package factors

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/strategyconfig"
)

// Factor family names.
const (
	FamilyMomentum  = "momentum"
	FamilyValue     = "value"
	FamilyQuality   = "quality"
	FamilyGrowth    = "growth"
	FamilyTechnical = "technical"
)

// Fundamental metric names, matching the keys of
// contracts.FundamentalSnapshot.Metrics and the weight mappings.
var (
	valueMetrics   = []string{"pe_ratio", "pb_ratio", "ps_ratio", "peg_ratio", "ev_ebitda"}
	qualityMetrics = []string{"roe", "roa", "profit_margin", "current_ratio", "debt_to_equity"}
	growthMetrics  = []string{"revenue_growth", "earnings_growth"}
)

// lowerIsBetter marks metrics whose raw value ranks inversely: a smaller
// value should produce a higher standardized score. The scoring stage
// negates their z-scores.
var lowerIsBetter = map[string]bool{
	"pe_ratio":       true,
	"pb_ratio":       true,
	"ps_ratio":       true,
	"peg_ratio":      true,
	"ev_ebitda":      true,
	"debt_to_equity": true,
	"rsi":            true, // distance from 50, closer is better
	"volatility":     true,
}

// Library computes raw factor metrics per instrument per date. All
// computations are pure functions of the input series; only data dated
// strictly before the as-of date (prices) or on/before it (fundamentals)
// is ever used.
type Library struct {
	cfg strategyconfig.FactorConfig
}

// NewLibrary creates a factor library for one parameter set.
func NewLibrary(cfg strategyconfig.FactorConfig) *Library {
	return &Library{cfg: cfg}
}

// Families returns the metric names of each factor family for this
// parameter set. Momentum metrics depend on the configured windows.
func (l *Library) Families() map[string][]string {
	momentum := make([]string, len(l.cfg.MomentumWindows))
	for i, w := range l.cfg.MomentumWindows {
		momentum[i] = fmt.Sprintf("momentum_%dd", w)
	}

	return map[string][]string{
		FamilyMomentum:  momentum,
		FamilyValue:     valueMetrics,
		FamilyQuality:   qualityMetrics,
		FamilyGrowth:    growthMetrics,
		FamilyTechnical: {"rsi", "price_to_sma20", "price_to_sma50", "volume_ratio", "volatility"},
	}
}

// LowerIsBetter reports whether a metric ranks inversely.
func LowerIsBetter(name string) bool {
	if lowerIsBetter[name] {
		return true
	}
	return strings.HasPrefix(name, "volatility_")
}

// HasSufficientHistory reports whether the instrument has at least
// min_data_points price observations strictly before asOf.
func (l *Library) HasSufficientHistory(series *contracts.InstrumentSeries, asOf time.Time) bool {
	return len(series.BarsBefore(asOf)) >= l.cfg.MinDataPoints
}

// Compute returns the raw value of one factor metric for one instrument
// as of the given date. It returns ErrInsufficientHistory when fewer
// than min_data_points observations precede asOf, and ErrMissingData
// when the metric cannot be derived from the available data. Callers
// exclude the instrument from the cross-section on either error.
func (l *Library) Compute(name string, series *contracts.InstrumentSeries, asOf time.Time) (float64, error) {
	closes := series.ClosesBefore(asOf)
	if len(closes) < l.cfg.MinDataPoints {
		return 0, fmt.Errorf("%s %s: %w", series.Symbol, name, contracts.ErrInsufficientHistory)
	}

	switch {
	case strings.HasPrefix(name, "momentum_"):
		window, err := parseWindow(name, "momentum_")
		if err != nil {
			return 0, err
		}
		return trailingReturn(closes, window)

	case name == "volatility":
		return annualizedVolatility(closes, l.cfg.VolatilityWindows[0])

	case strings.HasPrefix(name, "volatility_"):
		window, err := parseWindow(name, "volatility_")
		if err != nil {
			return 0, err
		}
		return annualizedVolatility(closes, window)

	case name == "rsi":
		rsi, err := RSI(closes, rsiPeriod)
		if err != nil {
			return 0, err
		}
		// Mean-reversion distance: closer to 50 ranks better.
		return math.Abs(rsi - 50), nil

	case name == "price_to_sma20":
		return priceToSMA(closes, 20)

	case name == "price_to_sma50":
		return priceToSMA(closes, 50)

	case name == "volume_ratio":
		return volumeRatio(series.BarsBefore(asOf), volumeSMAPeriod)

	default:
		return l.fundamentalMetric(name, series, asOf)
	}
}

// fundamentalMetric reads a metric from the most recent fundamental
// snapshot dated on or before asOf.
func (l *Library) fundamentalMetric(name string, series *contracts.InstrumentSeries, asOf time.Time) (float64, error) {
	snapshot, ok := series.FundamentalsAsOf(asOf)
	if !ok {
		return 0, fmt.Errorf("%s %s: no fundamentals as of %s: %w",
			series.Symbol, name, asOf.Format("2006-01-02"), contracts.ErrMissingData)
	}

	value, ok := snapshot.Metrics[name]
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%s %s: %w", series.Symbol, name, contracts.ErrMissingData)
	}

	return value, nil
}

// trailingReturn computes the total return over the trailing window of
// already point-in-time-filtered closes.
func trailingReturn(closes []float64, window int) (float64, error) {
	if len(closes) <= window {
		return 0, fmt.Errorf("trailing return %dd: %w", window, contracts.ErrInsufficientHistory)
	}
	last := closes[len(closes)-1]
	base := closes[len(closes)-1-window]
	if base <= 0 {
		return 0, fmt.Errorf("trailing return %dd: non-positive base price: %w", window, contracts.ErrMissingData)
	}
	return last/base - 1, nil
}

// annualizedVolatility computes the standard deviation of daily returns
// over the trailing window, annualized by sqrt(252).
func annualizedVolatility(closes []float64, window int) (float64, error) {
	if len(closes) < window+1 {
		return 0, fmt.Errorf("volatility %dd: %w", window, contracts.ErrInsufficientHistory)
	}

	tail := closes[len(closes)-window-1:]
	returns := make([]float64, 0, window)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] <= 0 {
			return 0, fmt.Errorf("volatility %dd: non-positive price: %w", window, contracts.ErrMissingData)
		}
		returns = append(returns, tail[i]/tail[i-1]-1)
	}

	return stddev(returns) * math.Sqrt(252), nil
}

// priceToSMA returns last close relative to its simple moving average,
// minus one.
func priceToSMA(closes []float64, period int) (float64, error) {
	sma, err := SMA(closes, period)
	if err != nil {
		return 0, err
	}
	if sma <= 0 {
		return 0, fmt.Errorf("price to sma%d: %w", period, contracts.ErrMissingData)
	}
	return closes[len(closes)-1]/sma - 1, nil
}

// volumeRatio returns the last volume relative to its trailing average,
// minus one.
func volumeRatio(bars []contracts.Bar, period int) (float64, error) {
	if len(bars) < period {
		return 0, fmt.Errorf("volume ratio %dd: %w", period, contracts.ErrInsufficientHistory)
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return 0, fmt.Errorf("volume ratio %dd: no volume data: %w", period, contracts.ErrMissingData)
	}
	return bars[len(bars)-1].Volume/avg - 1, nil
}

func parseWindow(name, prefix string) (int, error) {
	s := strings.TrimSuffix(strings.TrimPrefix(name, prefix), "d")
	window, err := strconv.Atoi(s)
	if err != nil || window <= 0 {
		return 0, fmt.Errorf("invalid factor name %q", name)
	}
	return window, nil
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
