package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/backtest"
	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/factors"
	"github.com/quantfold/quantfold/internal/portfolio"
	"github.com/quantfold/quantfold/internal/scoring"
	"github.com/quantfold/quantfold/internal/strategyconfig"
)

// backtestCmd groups the simulation commands.
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Historical strategy simulation",
	Long: `Simulates the strategy over a historical period with transaction
costs and slippage, producing a daily performance ledger and summary
statistics.

Example:
  go run ./cmd/quantfold backtest run --from 2023-01-01 --to 2023-12-31
  go run ./cmd/quantfold backtest run --from 2023-01-01 --save
  go run ./cmd/quantfold backtest show 20240628-180000`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		RunE:  runBacktest,
	}

	backtestShowCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a saved backtest run",
		Args:  cobra.ExactArgs(1),
		RunE:  runBacktestShow,
	}

	backtestFrom  string
	backtestTo    string
	backtestSave  bool
	backtestRunID string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestShowCmd)

	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD, default: strategy config)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, default: strategy config or today)")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the ledger and summary to the database")
	backtestRunCmd.Flags().StringVar(&backtestRunID, "run-id", "", "identifier for the saved run (default: timestamp)")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	start, end, err := backtestPeriod(rt)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	symbols, err := rt.symbols(ctx)
	if err != nil {
		return fmt.Errorf("resolve symbols: %w", err)
	}

	universe, err := rt.loadUniverse(ctx, symbols, start, end)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	var benchmark *contracts.InstrumentSeries
	if b := rt.strategy.Backtest.Benchmark; b != "" {
		bars, err := rt.provider.GetPriceHistory(ctx, b, start, end)
		if err != nil {
			return fmt.Errorf("load benchmark %s: %w", b, err)
		}
		if len(bars) > 0 {
			benchmark = &contracts.InstrumentSeries{Symbol: b, Bars: bars}
		} else {
			rt.log.WithField("benchmark", b).Warn("Benchmark has no price history, skipping")
		}
	}

	library := factors.NewLibrary(rt.strategy.Factors)
	pipeline := scoring.NewPipeline(library, rt.strategy.Weights, rt.strategy.Factors, rt.strategy.Data.BatchSize, rt.log)
	constructor := portfolio.NewConstructor(
		rt.strategy.Portfolio,
		rt.strategy.Backtest.MinPositionSize,
		rt.strategy.Backtest.MaxPositionSize,
		rt.log,
	)
	engine := backtest.NewEngine(pipeline, constructor, rt.strategy.Backtest, rt.strategy.Portfolio.RiskFreeRate, rt.log)

	fmt.Printf("Backtest %s ~ %s, %d instruments, %s rebalancing\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		len(universe), rt.strategy.Backtest.RebalanceFrequency)

	result, err := engine.Run(ctx, universe, benchmark, start, end)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printBacktestResult(result, rt.strategy.Backtest.InitialCapital)

	if backtestSave {
		runID := backtestRunID
		if runID == "" {
			runID = time.Now().Format("20060102-150405")
		}
		hash, err := strategyconfig.Hash(rt.strategy)
		if err != nil {
			return fmt.Errorf("config hash: %w", err)
		}
		repo := backtest.NewRepository(rt.db.Pool)
		if err := repo.SaveRun(ctx, runID, hash, result); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Printf("\nSaved as run %s (config %s)\n", runID, hash[:12])
	}

	return nil
}

func runBacktestShow(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx := cmd.Context()
	runID := args[0]
	repo := backtest.NewRepository(rt.db.Pool)

	summary, err := repo.GetSummary(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	ledger, err := repo.GetLedger(ctx, runID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	fmt.Printf("Run %s\n", runID)
	printBacktestResult(storedRunResult(summary, ledger), rt.strategy.Backtest.InitialCapital)
	return nil
}

// storedRunResult rebuilds a printable result from a persisted summary
// and ledger. Rebalance dates are recovered from ledger records that
// carry turnover.
func storedRunResult(summary *backtest.Summary, ledger []contracts.PerformanceRecord) *backtest.Result {
	result := &backtest.Result{
		TradingDays: len(ledger),
		Ledger:      ledger,
		Summary:     *summary,
	}
	if len(ledger) > 0 {
		result.StartDate = ledger[0].Date
		result.EndDate = ledger[len(ledger)-1].Date
	}
	for _, rec := range ledger {
		if rec.Turnover > 0 {
			result.RebalanceCount++
		}
	}
	return result
}

// backtestPeriod resolves the simulation window from flags and the
// strategy config.
func backtestPeriod(rt *runtime) (time.Time, time.Time, error) {
	var zero time.Time

	fromStr := backtestFrom
	if fromStr == "" {
		fromStr = rt.strategy.Backtest.StartDate
	}
	if fromStr == "" {
		return zero, zero, fmt.Errorf("no start date: pass --from or set backtest.start_date")
	}
	start, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return zero, zero, fmt.Errorf("invalid start date: %w", err)
	}

	toStr := backtestTo
	if toStr == "" {
		toStr = rt.strategy.Backtest.EndDate
	}
	end := time.Now().Truncate(24 * time.Hour)
	if toStr != "" {
		end, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return zero, zero, fmt.Errorf("invalid end date: %w", err)
		}
	}

	if end.Before(start) {
		return zero, zero, fmt.Errorf("end date %s before start date %s", toStr, fromStr)
	}
	return start, end, nil
}

func printBacktestResult(result *backtest.Result, initialCapital float64) {
	s := result.Summary
	final := initialCapital * (1 + s.TotalReturn)

	fmt.Println()
	printDoubleSeparator()
	fmt.Println("  Backtest result")
	printSeparator()
	fmt.Printf("  Period          : %s ~ %s (%d trading days)\n",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"), result.TradingDays)
	fmt.Printf("  Rebalances      : %d\n", result.RebalanceCount)
	fmt.Printf("  Trades          : %d\n", len(result.Trades))
	printSeparator()
	fmt.Printf("  Initial capital : %s\n", formatMoney(initialCapital))
	fmt.Printf("  Final value     : %s\n", formatMoney(final))
	fmt.Printf("  Total return    : %+.2f%%\n", s.TotalReturn*100)
	fmt.Printf("  CAGR            : %+.2f%%\n", s.CAGR*100)
	fmt.Printf("  Volatility      : %.2f%%\n", s.AnnualizedVolatility*100)
	printSeparator()
	fmt.Printf("  Sharpe ratio    : %.2f\n", s.SharpeRatio)
	fmt.Printf("  Sortino ratio   : %.2f\n", s.SortinoRatio)
	fmt.Printf("  Max drawdown    : %.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("  Win rate        : %.1f%%\n", s.WinRate*100)
	printSeparator()
	fmt.Printf("  Turnover        : %.2f\n", s.RealizedTurnover)
	fmt.Printf("  Cost drag       : %.4f%%\n", s.CostDrag*100)
	if s.BenchmarkReturn != 0 || s.ExcessReturn != 0 {
		fmt.Printf("  Benchmark       : %+.2f%% (excess %+.2f%%)\n", s.BenchmarkReturn*100, s.ExcessReturn*100)
	}
	if s.DegradedDays > 0 {
		fmt.Printf("  Degraded days   : %d (carried-forward prices)\n", s.DegradedDays)
	}
	printDoubleSeparator()
}
