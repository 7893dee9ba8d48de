package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/factors"
	"github.com/quantfold/quantfold/internal/portfolio"
	"github.com/quantfold/quantfold/internal/scoring"
)

// analyzeCmd scores the universe on one date and prints the ranking and
// the resulting target portfolio.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score the universe and build a target portfolio for one date",
	Long: `Computes factor scores, composite ranking and constrained target
weights for a single as-of date.

Example:
  go run ./cmd/quantfold analyze --date 2024-06-28
  go run ./cmd/quantfold analyze --date 2024-06-28 --symbols AAPL,MSFT,NVDA`,
	RunE: runAnalyze,
}

var analyzeDate string

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "as-of date (YYYY-MM-DD, default: today)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	date := time.Now().Truncate(24 * time.Hour)
	if analyzeDate != "" {
		var err error
		date, err = time.Parse("2006-01-02", analyzeDate)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
	}

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx := cmd.Context()
	symbols, err := rt.symbols(ctx)
	if err != nil {
		return fmt.Errorf("resolve symbols: %w", err)
	}

	universe, err := rt.loadUniverse(ctx, symbols, date, date)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	library := factors.NewLibrary(rt.strategy.Factors)
	pipeline := scoring.NewPipeline(library, rt.strategy.Weights, rt.strategy.Factors, rt.strategy.Data.BatchSize, rt.log)
	constructor := portfolio.NewConstructor(
		rt.strategy.Portfolio,
		rt.strategy.Backtest.MinPositionSize,
		rt.strategy.Backtest.MaxPositionSize,
		rt.log,
	)

	snapshot, err := pipeline.ScoreDate(ctx, universe, date)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	printSeparator()
	fmt.Printf("Composite ranking as of %s (%d scored of %d)\n",
		date.Format("2006-01-02"), len(snapshot.Scores), len(universe))
	printSeparator()
	for _, entry := range snapshot.TopK(rt.strategy.Portfolio.TopK) {
		sector := ""
		if series, ok := universe[entry.Symbol]; ok {
			sector = series.Sector
		}
		fmt.Printf("%3d. %-8s %8.4f  %s\n", entry.Rank, entry.Symbol, entry.Score, sector)
	}

	familySnaps, err := pipeline.FamilySnapshots(ctx, universe, date)
	if err != nil {
		return fmt.Errorf("family scoring failed: %w", err)
	}
	families := make([]string, 0, len(familySnaps))
	for name := range familySnaps {
		families = append(families, name)
	}
	sort.Strings(families)

	fmt.Println()
	printSeparator()
	fmt.Println("Family score breakdown")
	printSeparator()
	header := fmt.Sprintf("%3s  %-8s", "", "")
	for _, name := range families {
		header += fmt.Sprintf(" %10s", name)
	}
	fmt.Println(header)
	for _, entry := range snapshot.TopK(rt.strategy.Portfolio.TopK) {
		line := fmt.Sprintf("%3d. %-8s", entry.Rank, entry.Symbol)
		for _, name := range families {
			if v, ok := familySnaps[name].Scores[entry.Symbol]; ok {
				line += fmt.Sprintf(" %10.4f", v)
			} else {
				line += fmt.Sprintf(" %10s", "-")
			}
		}
		fmt.Println(line)
	}

	target, err := constructor.Construct(portfolio.Inputs{
		Date:      date,
		Composite: snapshot,
		Universe:  universe,
		Sectors:   sectorsOf(universe),
	})
	if err != nil {
		return fmt.Errorf("portfolio construction failed: %w", err)
	}

	fmt.Println()
	printSeparator()
	fmt.Printf("Target portfolio (%s, %d positions, %.1f%% invested)\n",
		rt.strategy.Portfolio.OptimizationMethod, target.Count(), target.Total()*100)
	printSeparator()
	for _, symbol := range sortedByWeight(target.Weights) {
		fmt.Printf("  %-8s %6.2f%%\n", symbol, target.Weights[symbol]*100)
	}

	return nil
}
