package strategyconfig

import (
	"fmt"
	"time"
)

// ValidationError reports a configuration constraint violation. Loading
// fails closed; an invalid strategy file never reaches the pipeline.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validFrequencies = map[string]bool{
	"daily":     true,
	"weekly":    true,
	"monthly":   true,
	"quarterly": true,
}

var validMethods = map[string]bool{
	"equal_weight":             true,
	"risk_parity":              true,
	"mean_variance":            true,
	"hierarchical_risk_parity": true,
}

// Validate checks all required constraints.
func Validate(cfg *Config) error {
	// === Data ===
	if cfg.Data.BatchSize <= 0 {
		return ValidationError{"data.batch_size", "must be > 0"}
	}

	// === Factors ===
	if err := validateFactorConfig("factors", cfg.Factors); err != nil {
		return err
	}
	if err := validateFactorConfig("short_factors", cfg.ShortFactors); err != nil {
		return err
	}

	// === Weights ===
	families := map[string]map[string]float64{
		"momentum":  cfg.Weights.Momentum,
		"value":     cfg.Weights.Value,
		"quality":   cfg.Weights.Quality,
		"growth":    cfg.Weights.Growth,
		"technical": cfg.Weights.Technical,
		"composite": cfg.Weights.Composite,
	}
	for name, weights := range families {
		if len(weights) == 0 {
			return ValidationError{"weights." + name, "must not be empty"}
		}
		for metric, w := range weights {
			if w < 0 {
				return ValidationError{
					Field:   fmt.Sprintf("weights.%s.%s", name, metric),
					Message: fmt.Sprintf("must be >= 0, got %g", w),
				}
			}
		}
	}
	for family := range cfg.Weights.Composite {
		if _, ok := cfg.Weights.Family(family); !ok {
			return ValidationError{
				Field:   "weights.composite." + family,
				Message: "unknown factor family",
			}
		}
	}

	// === Backtest ===
	b := cfg.Backtest
	if b.InitialCapital <= 0 {
		return ValidationError{"backtest.initial_capital", "must be > 0"}
	}
	if !validFrequencies[b.RebalanceFrequency] {
		return ValidationError{"backtest.rebalance_frequency", "must be one of: daily, weekly, monthly, quarterly"}
	}
	if b.RebalanceFrequency == "weekly" {
		if _, err := ParseWeekday(b.RebalanceWeekday); err != nil {
			return ValidationError{"backtest.rebalance_weekday", err.Error()}
		}
	}
	if b.TransactionCost < 0 || b.TransactionCost >= 1 {
		return ValidationError{"backtest.transaction_cost", "must be in [0, 1)"}
	}
	if b.Slippage < 0 || b.Slippage >= 1 {
		return ValidationError{"backtest.slippage", "must be in [0, 1)"}
	}
	if b.MinPositionSize < 0 || b.MinPositionSize > 1 {
		return ValidationError{"backtest.min_position_size", "must be in [0, 1]"}
	}
	if b.MaxPositionSize <= 0 || b.MaxPositionSize > 1 {
		return ValidationError{"backtest.max_position_size", "must be in (0, 1]"}
	}
	if b.MinPositionSize > b.MaxPositionSize {
		return ValidationError{"backtest", "min_position_size must be <= max_position_size"}
	}
	for _, field := range []struct{ name, value string }{
		{"backtest.start_date", b.StartDate},
		{"backtest.end_date", b.EndDate},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", field.value); err != nil {
			return ValidationError{field.name, "must be YYYY-MM-DD"}
		}
	}

	// === Portfolio ===
	p := cfg.Portfolio
	if !validMethods[p.OptimizationMethod] {
		return ValidationError{"portfolio.optimization_method", "must be one of: equal_weight, risk_parity, mean_variance, hierarchical_risk_parity"}
	}
	if p.MaxSectorWeight <= 0 || p.MaxSectorWeight > 1 {
		return ValidationError{"portfolio.max_sector_weight", "must be in (0, 1]"}
	}
	if p.MaxSectorWeight < b.MaxPositionSize {
		return ValidationError{"portfolio.max_sector_weight", "must be >= backtest.max_position_size"}
	}
	if p.MaxTurnover <= 0 {
		return ValidationError{"portfolio.max_turnover", "must be > 0"}
	}
	if p.TopK <= 0 {
		return ValidationError{"portfolio.top_k", "must be > 0"}
	}
	if p.CovarianceLookbackDays <= 1 {
		return ValidationError{"portfolio.covariance_lookback_days", "must be > 1"}
	}
	if p.SectorCapIterations <= 0 {
		return ValidationError{"portfolio.sector_cap_iterations", "must be > 0"}
	}
	if p.ConvergenceTolerance <= 0 {
		return ValidationError{"portfolio.convergence_tolerance", "must be > 0"}
	}
	if p.RiskAversion <= 0 {
		return ValidationError{"portfolio.risk_aversion", "must be > 0"}
	}

	// === Signals ===
	s := cfg.Signals
	if s.TopK <= 0 {
		return ValidationError{"signals.top_k", "must be > 0"}
	}
	if _, err := ParseWeekday(s.ScanWeekday); err != nil {
		return ValidationError{"signals.scan_weekday", err.Error()}
	}
	if s.StopLossPct <= 0 || s.StopLossPct >= 1 {
		return ValidationError{"signals.stop_loss_pct", "must be in (0, 1)"}
	}
	if s.TakeProfitPct <= 0 || s.TakeProfitPct >= 1 {
		return ValidationError{"signals.take_profit_pct", "must be in (0, 1)"}
	}

	return nil
}

func validateFactorConfig(prefix string, fc FactorConfig) error {
	if len(fc.MomentumWindows) == 0 {
		return ValidationError{prefix + ".momentum_windows", "must not be empty"}
	}
	prev := 0
	for i, w := range fc.MomentumWindows {
		if w <= prev {
			return ValidationError{
				Field:   fmt.Sprintf("%s.momentum_windows[%d]", prefix, i),
				Message: "windows must be positive and strictly increasing",
			}
		}
		prev = w
	}
	if len(fc.VolatilityWindows) == 0 {
		return ValidationError{prefix + ".volatility_windows", "must not be empty"}
	}
	prev = 0
	for i, w := range fc.VolatilityWindows {
		if w <= prev {
			return ValidationError{
				Field:   fmt.Sprintf("%s.volatility_windows[%d]", prefix, i),
				Message: "windows must be positive and strictly increasing",
			}
		}
		prev = w
	}
	if fc.WinsorizeSigma <= 0 {
		return ValidationError{prefix + ".winsorize_sigma", "must be > 0"}
	}
	if fc.MinDataPoints <= 1 {
		return ValidationError{prefix + ".min_data_points", "must be > 1"}
	}
	return nil
}

// ParseWeekday converts a weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	switch name {
	case "Sunday":
		return time.Sunday, nil
	case "Monday":
		return time.Monday, nil
	case "Tuesday":
		return time.Tuesday, nil
	case "Wednesday":
		return time.Wednesday, nil
	case "Thursday":
		return time.Thursday, nil
	case "Friday":
		return time.Friday, nil
	case "Saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", name)
}
