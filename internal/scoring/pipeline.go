package scoring

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/factors"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

// Pipeline produces a composite score snapshot for one date. Raw factor
// computation fans out across instruments with bounded parallelism; each
// instrument's metrics are pure functions of its own series. Everything
// after the join (normalization, family and composite scoring) needs the
// whole cross-section and runs sequentially.
type Pipeline struct {
	library   *factors.Library
	weights   strategyconfig.FactorWeights
	sigma     float64
	batchSize int
	logger    *logger.Logger
}

// NewPipeline creates a scoring pipeline for one factor parameter set.
func NewPipeline(
	library *factors.Library,
	weights strategyconfig.FactorWeights,
	factorCfg strategyconfig.FactorConfig,
	batchSize int,
	log *logger.Logger,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Pipeline{
		library:   library,
		weights:   weights,
		sigma:     factorCfg.WinsorizeSigma,
		batchSize: batchSize,
		logger:    log,
	}
}

// instrumentMetrics holds one instrument's raw metric values. Metrics
// that failed with a per-instrument error are absent.
type instrumentMetrics struct {
	symbol string
	values map[string]float64
}

// ScoreDate computes the composite snapshot for one date from scratch.
// Snapshots are never reused across dates; holdings are the only state
// carried through a backtest.
func (p *Pipeline) ScoreDate(ctx context.Context, universe map[string]*contracts.InstrumentSeries, date time.Time) (*contracts.CompositeSnapshot, error) {
	families := p.library.Families()

	allMetrics := make([]string, 0)
	for _, metrics := range families {
		allMetrics = append(allMetrics, metrics...)
	}

	symbols := make([]string, 0, len(universe))
	for symbol := range universe {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	// Fan out raw factor computation per instrument, join before
	// normalization: the cross-section needs every instrument's value.
	results := make([]instrumentMetrics, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchSize)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			series := universe[symbol]
			if !p.library.HasSufficientHistory(series, date) {
				// Excluded from this date's cross-section entirely.
				return nil
			}

			values := make(map[string]float64, len(allMetrics))
			for _, metric := range allMetrics {
				v, err := p.library.Compute(metric, series, date)
				if err != nil {
					if contracts.IsExcludable(err) {
						continue
					}
					return err
				}
				values[metric] = v
			}
			results[i] = instrumentMetrics{symbol: symbol, values: values}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Pivot to per-metric cross-sections.
	raw := make(map[string]map[string]float64, len(allMetrics))
	for _, metric := range allMetrics {
		raw[metric] = make(map[string]float64)
	}
	for _, r := range results {
		for metric, v := range r.values {
			raw[metric][r.symbol] = v
		}
	}

	// Normalize each metric across the universe, flipping the sign for
	// metrics where lower raw values should rank higher.
	metricScores := make(map[string]map[string]float64, len(allMetrics))
	for metric, values := range raw {
		scores := Normalize(values, p.sigma)
		if factors.LowerIsBetter(metric) {
			for symbol, z := range scores {
				scores[symbol] = -z
			}
		}
		metricScores[metric] = scores
	}

	// Family scores, then strict composite.
	familyScores := make(map[string]map[string]float64, len(families))
	for family := range families {
		weights, ok := p.weights.Family(family)
		if !ok {
			continue
		}
		familyScores[family] = FamilyScore(metricScores, weights)
	}

	snapshot := Composite(date, familyScores, p.weights.Composite)

	p.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"universe": len(universe),
		"scored":   len(snapshot.Scores),
	}).Debug("Composite scoring completed")

	return snapshot, nil
}

// FamilySnapshots exposes the per-family score snapshots for one date,
// used by the analyze report's score breakdown.
func (p *Pipeline) FamilySnapshots(ctx context.Context, universe map[string]*contracts.InstrumentSeries, date time.Time) (map[string]*contracts.ScoreSnapshot, error) {
	families := p.library.Families()

	out := make(map[string]*contracts.ScoreSnapshot, len(families))
	for family := range families {
		weights, ok := p.weights.Family(family)
		if !ok {
			continue
		}

		raw := make(map[string]map[string]float64)
		for _, metric := range families[family] {
			values := make(map[string]float64)
			for symbol, series := range universe {
				if !p.library.HasSufficientHistory(series, date) {
					continue
				}
				v, err := p.library.Compute(metric, series, date)
				if err != nil {
					if contracts.IsExcludable(err) {
						continue
					}
					return nil, err
				}
				values[symbol] = v
			}
			scores := Normalize(values, p.sigma)
			if factors.LowerIsBetter(metric) {
				for symbol, z := range scores {
					scores[symbol] = -z
				}
			}
			raw[metric] = scores
		}

		out[family] = &contracts.ScoreSnapshot{
			Date:   date,
			Scores: FamilyScore(raw, weights),
		}
	}

	return out, nil
}
