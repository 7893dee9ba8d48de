package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/quantfold/internal/marketdata"
	"github.com/quantfold/quantfold/internal/signals"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

// SignalScanJob runs the short-horizon signal scan on its cron schedule.
type SignalScanJob struct {
	provider  marketdata.Provider
	generator *signals.Generator
	cfg       *strategyconfig.Config
	symbols   []string
	logger    *logger.Logger
}

// NewSignalScanJob creates the scheduled signal scan over a fixed symbol
// list.
func NewSignalScanJob(
	provider marketdata.Provider,
	generator *signals.Generator,
	cfg *strategyconfig.Config,
	symbols []string,
	log *logger.Logger,
) *SignalScanJob {
	return &SignalScanJob{
		provider:  provider,
		generator: generator,
		cfg:       cfg,
		symbols:   symbols,
		logger:    log,
	}
}

// Name returns the job name.
func (j *SignalScanJob) Name() string {
	return "signal_scan"
}

// Schedule returns the configured cron expression.
func (j *SignalScanJob) Schedule() string {
	return j.cfg.Signals.Schedule
}

// Run scans today's universe for short-horizon signals. Twice
// min_data_points in calendar days is loaded so weekends and gaps still
// leave enough trading-day history.
func (j *SignalScanJob) Run(ctx context.Context) error {
	today := time.Now().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -2*j.cfg.ShortFactors.MinDataPoints)

	universe, err := marketdata.LoadUniverse(ctx, j.provider, j.symbols, from, today, j.cfg.Data.BatchSize)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	report, err := j.generator.Scan(ctx, universe, today)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	for _, sig := range report.Buys {
		j.logger.WithFields(map[string]interface{}{
			"symbol":      sig.Symbol,
			"score":       fmt.Sprintf("%.4f", sig.Score),
			"entry":       fmt.Sprintf("%.2f", sig.EntryPrice),
			"stop_loss":   fmt.Sprintf("%.2f", sig.StopLoss),
			"take_profit": fmt.Sprintf("%.2f", sig.TakeProfit),
		}).Info("Buy signal")
	}
	for _, sig := range report.Sells {
		j.logger.WithFields(map[string]interface{}{
			"symbol": sig.Symbol,
			"score":  fmt.Sprintf("%.4f", sig.Score),
		}).Info("Sell signal")
	}

	return nil
}
