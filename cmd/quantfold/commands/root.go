package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/marketdata"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/config"
	"github.com/quantfold/quantfold/pkg/database"
	"github.com/quantfold/quantfold/pkg/logger"
)

var (
	// Global flags
	strategyFile string
	symbolsFlag  string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quantfold",
	Short: "Factor-based equity analysis and backtesting engine",
	Long: `Quantfold CLI

Factor scoring, composite ranking, constrained portfolio construction
and historical simulation over a configurable equity universe.

Usage:
  go run ./cmd/quantfold [command]

Examples:
  go run ./cmd/quantfold analyze --date 2024-06-28
  go run ./cmd/quantfold backtest run --from 2023-01-01 --to 2023-12-31
  go run ./cmd/quantfold signals --force
  go run ./cmd/quantfold schedule`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML file (default from STRATEGY_FILE env)")
	rootCmd.PersistentFlags().StringVar(&symbolsFlag, "symbols", "", "comma-separated symbol list (default: all instruments in the database)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// runtime bundles the dependencies every command needs.
type runtime struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	log      *logger.Logger
	db       *database.DB
	provider *marketdata.PostgresProvider
}

// initRuntime loads env and strategy configuration, the logger, and the
// database-backed market data provider.
func initRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	path := strategyFile
	if path == "" {
		path = cfg.StrategyFile
	}
	var strategy *strategyconfig.Config
	if path != "" {
		strategy, err = strategyconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load strategy: %w", err)
		}
	} else {
		strategy = strategyconfig.Default()
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		strategy: strategy,
		log:      log,
		db:       db,
		provider: marketdata.NewPostgresProvider(db.Pool),
	}, nil
}

// symbols resolves the universe symbol list: the --symbols flag if set,
// otherwise every instrument in the database.
func (r *runtime) symbols(ctx context.Context) ([]string, error) {
	if symbolsFlag != "" {
		parts := strings.Split(symbolsFlag, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				symbols = append(symbols, s)
			}
		}
		return symbols, nil
	}
	return r.provider.ListSymbols(ctx)
}

// loadUniverse fetches the full series for each symbol with history back
// far enough for the longest factor lookback before from.
func (r *runtime) loadUniverse(ctx context.Context, symbols []string, from, to time.Time) (map[string]*contracts.InstrumentSeries, error) {
	historyFrom := from.AddDate(0, 0, -2*r.strategy.Factors.MinDataPoints)
	return marketdata.LoadUniverse(ctx, r.provider, symbols, historyFrom, to, r.strategy.Data.BatchSize)
}
