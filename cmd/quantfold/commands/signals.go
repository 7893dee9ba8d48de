package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/signals"
)

// signalsCmd runs the short-horizon signal scan once.
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Run the short-horizon signal scan",
	Long: `Scans the universe with the short-horizon factor set and prints
buy candidates with entry, stop-loss and take-profit levels, plus trim
candidates.

The scan normally runs only on the configured scan weekday; --force
overrides the gate.

Example:
  go run ./cmd/quantfold signals
  go run ./cmd/quantfold signals --date 2024-06-28 --force`,
	RunE: runSignals,
}

var (
	signalsDate  string
	signalsForce bool
)

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.Flags().StringVar(&signalsDate, "date", "", "scan date (YYYY-MM-DD, default: today)")
	signalsCmd.Flags().BoolVar(&signalsForce, "force", false, "scan even off the configured weekday")
}

func runSignals(cmd *cobra.Command, args []string) error {
	date := time.Now().Truncate(24 * time.Hour)
	if signalsDate != "" {
		var err error
		date, err = time.Parse("2006-01-02", signalsDate)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
	}

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	generator := signals.NewGenerator(rt.strategy, rt.log)
	if !signalsForce && !generator.ShouldScan(date) {
		fmt.Printf("%s is not the configured scan day (%s); use --force to scan anyway\n",
			date.Format("2006-01-02"), rt.strategy.Signals.ScanWeekday)
		return nil
	}

	ctx := cmd.Context()
	symbols, err := rt.symbols(ctx)
	if err != nil {
		return fmt.Errorf("resolve symbols: %w", err)
	}

	from := date.AddDate(0, 0, -2*rt.strategy.ShortFactors.MinDataPoints)
	universe, err := rt.loadUniverse(ctx, symbols, from, date)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	report, err := generator.Scan(ctx, universe, date)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printSignalReport(report)
	return nil
}

func printSignalReport(report *signals.Report) {
	printDoubleSeparator()
	fmt.Printf("  Signal scan %s\n", report.Date.Format("2006-01-02"))
	printSeparator()

	if len(report.Buys) == 0 {
		fmt.Println("  No buy candidates")
	} else {
		fmt.Println("  Buy candidates")
		fmt.Printf("  %-8s %8s %10s %10s %10s\n", "SYMBOL", "SCORE", "ENTRY", "STOP", "TARGET")
		for _, sig := range report.Buys {
			fmt.Printf("  %-8s %8.4f %10.2f %10.2f %10.2f\n",
				sig.Symbol, sig.Score, sig.EntryPrice, sig.StopLoss, sig.TakeProfit)
		}
	}

	if len(report.Sells) > 0 {
		fmt.Println()
		fmt.Println("  Trim candidates")
		fmt.Printf("  %-8s %8s %10s\n", "SYMBOL", "SCORE", "LAST")
		for _, sig := range report.Sells {
			fmt.Printf("  %-8s %8.4f %10.2f\n", sig.Symbol, sig.Score, sig.EntryPrice)
		}
	}

	printDoubleSeparator()
}
