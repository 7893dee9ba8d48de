package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/portfolio"
	"github.com/quantfold/quantfold/internal/scoring"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

// phase is the engine's simulation state. The run is an explicit fold
// over trading days: INITIALIZING, then REBALANCING/HOLDING per day,
// then FINALIZED, after which nothing mutates.
type phase int

const (
	phaseInitializing phase = iota
	phaseRebalancing
	phaseHolding
	phaseFinalized
)

func (p phase) String() string {
	switch p {
	case phaseInitializing:
		return "initializing"
	case phaseRebalancing:
		return "rebalancing"
	case phaseHolding:
		return "holding"
	case phaseFinalized:
		return "finalized"
	}
	return "unknown"
}

// Engine drives the scoring and construction pipeline across a date
// range and simulates the resulting portfolio. Holdings and the ledger
// are owned exclusively by the sequential run loop.
type Engine struct {
	pipeline    *scoring.Pipeline
	constructor *portfolio.Constructor
	cfg         strategyconfig.BacktestConfig
	riskFree    float64
	logger      *logger.Logger
}

// Result is a completed backtest: the full daily ledger, the executed
// trades, the terminal holdings and weights, and summary statistics.
type Result struct {
	StartDate      time.Time
	EndDate        time.Time
	TradingDays    int
	RebalanceCount int
	Ledger         []contracts.PerformanceRecord
	Trades         []contracts.Trade
	FinalHoldings  *contracts.Holdings
	FinalWeights   *contracts.TargetWeights
	Summary        Summary
}

// NewEngine creates a backtest engine.
func NewEngine(
	pipeline *scoring.Pipeline,
	constructor *portfolio.Constructor,
	cfg strategyconfig.BacktestConfig,
	riskFree float64,
	log *logger.Logger,
) *Engine {
	return &Engine{
		pipeline:    pipeline,
		constructor: constructor,
		cfg:         cfg,
		riskFree:    riskFree,
		logger:      log,
	}
}

// Run simulates the strategy over [start, end]. The benchmark series may
// be nil. A rebalance-level failure aborts the whole run with the
// offending date: later periods depend on consistent holdings, so a
// skipped rebalance would silently corrupt everything downstream.
func (e *Engine) Run(ctx context.Context, universe map[string]*contracts.InstrumentSeries, benchmark *contracts.InstrumentSeries, start, end time.Time) (*Result, error) {
	weekday, err := strategyconfig.ParseWeekday(e.cfg.RebalanceWeekday)
	if err != nil {
		return nil, err
	}
	rebalances, err := Schedule(start, end, e.cfg.RebalanceFrequency, weekday)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"start":           start.Format("2006-01-02"),
		"end":             end.Format("2006-01-02"),
		"initial_capital": e.cfg.InitialCapital,
		"frequency":       e.cfg.RebalanceFrequency,
		"rebalances":      len(rebalances),
		"universe":        len(universe),
	}).Info("Starting backtest")

	rebalanceSet := make(map[time.Time]bool, len(rebalances))
	for _, d := range rebalances {
		rebalanceSet[d] = true
	}

	sectors := make(map[string]string, len(universe))
	for symbol, series := range universe {
		sectors[symbol] = series.Sector
	}

	state := phaseInitializing
	holdings := contracts.NewHoldings(e.cfg.InitialCapital)
	lastPrices := make(map[string]float64, len(universe))
	var benchPrice, benchStart float64

	result := &Result{
		StartDate: start,
		EndDate:   end,
		Ledger:    make([]contracts.PerformanceRecord, 0),
		Trades:    make([]contracts.Trade, 0),
	}

	for _, day := range TradingDays(start, end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.TradingDays++

		// Refresh known prices; a held instrument with no bar today is
		// carried forward at its last known price and flags the record.
		degraded := false
		for symbol, series := range universe {
			if price, ok := series.PriceOn(day); ok && price > 0 {
				lastPrices[symbol] = price
			} else if _, held := holdings.Positions[symbol]; held {
				degraded = true
			}
		}
		if benchmark != nil {
			if price, ok := benchmark.PriceOn(day); ok && price > 0 {
				benchPrice = price
				if benchStart == 0 {
					benchStart = price
				}
			}
		}

		turnover, cost := 0.0, 0.0
		if rebalanceSet[day] {
			state = phaseRebalancing

			prior := holdings.CurrentWeights(lastPrices)
			snapshot, err := e.pipeline.ScoreDate(ctx, universe, day)
			if err != nil {
				return nil, fmt.Errorf("scoring %s: %w", day.Format("2006-01-02"), err)
			}

			target, err := e.constructor.Construct(portfolio.Inputs{
				Date:      day,
				Composite: snapshot,
				Universe:  universe,
				Sectors:   sectors,
				Prior:     prior,
			})
			if err != nil {
				var infeasible *contracts.ConstraintInfeasibleError
				if errors.As(err, &infeasible) {
					return nil, fmt.Errorf("backtest aborted: %w", err)
				}
				return nil, fmt.Errorf("constructing %s: %w", day.Format("2006-01-02"), err)
			}

			trades, tradeCost := executeRebalance(holdings, target, lastPrices, e.cfg.TransactionCost, e.cfg.Slippage)
			result.Trades = append(result.Trades, trades...)
			result.RebalanceCount++
			result.FinalWeights = target

			turnover = contracts.Turnover(prior, target.Weights)
			cost = tradeCost

			e.logger.WithFields(map[string]interface{}{
				"phase":     state.String(),
				"date":      day.Format("2006-01-02"),
				"positions": target.Count(),
				"turnover":  fmt.Sprintf("%.4f", turnover),
				"cost":      fmt.Sprintf("%.2f", cost),
			}).Debug("Rebalanced")
		} else {
			state = phaseHolding
		}

		benchValue := 0.0
		if benchStart > 0 {
			benchValue = e.cfg.InitialCapital * benchPrice / benchStart
		}

		result.Ledger = append(result.Ledger, contracts.PerformanceRecord{
			Date:           day,
			PortfolioValue: holdings.MarketValue(lastPrices),
			BenchmarkValue: benchValue,
			Turnover:       turnover,
			Cost:           cost,
			Degraded:       degraded,
		})
	}

	state = phaseFinalized

	result.FinalHoldings = holdings
	result.Summary = Summarize(result.Ledger, e.cfg.InitialCapital, e.riskFree)

	e.logger.WithFields(map[string]interface{}{
		"phase":        state.String(),
		"trading_days": result.TradingDays,
		"rebalances":   result.RebalanceCount,
		"total_return": fmt.Sprintf("%.2f%%", result.Summary.TotalReturn*100),
		"sharpe":       fmt.Sprintf("%.2f", result.Summary.SharpeRatio),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.Summary.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}
