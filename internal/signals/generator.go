package signals

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/factors"
	"github.com/quantfold/quantfold/internal/scoring"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

// Action is a signal direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is one actionable entry or exit note from a scan. Buy signals
// carry price levels derived from the entry price and the configured
// stop-loss and take-profit percentages.
type Signal struct {
	Symbol     string  `json:"symbol"`
	Sector     string  `json:"sector"`
	Action     Action  `json:"action"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// Report is the output of one scan date.
type Report struct {
	Date  time.Time `json:"date"`
	Buys  []Signal  `json:"buys"`
	Sells []Signal  `json:"sells"`
}

// Generator produces short-horizon trading signals from the
// short-factor parameter set: trailing momentum over short windows plus
// an inverse-volatility tilt, ranked cross-sectionally.
type Generator struct {
	library *factors.Library
	cfg     strategyconfig.SignalConfig
	sigma   float64
	logger  *logger.Logger
}

// NewGenerator creates a signal generator from the strategy config's
// short_factors and signals sections.
func NewGenerator(cfg *strategyconfig.Config, log *logger.Logger) *Generator {
	return &Generator{
		library: factors.NewLibrary(cfg.ShortFactors),
		cfg:     cfg.Signals,
		sigma:   cfg.ShortFactors.WinsorizeSigma,
		logger:  log,
	}
}

// ShouldScan reports whether the date is the configured scan weekday.
func (g *Generator) ShouldScan(date time.Time) bool {
	weekday, err := strategyconfig.ParseWeekday(g.cfg.ScanWeekday)
	if err != nil {
		return false
	}
	return date.Weekday() == weekday
}

// Scan ranks the universe on the scan date and returns the top-K buy
// candidates with price levels and the bottom-K trim candidates. The
// weekday gate is the caller's concern; Scan itself works on any date.
func (g *Generator) Scan(ctx context.Context, universe map[string]*contracts.InstrumentSeries, date time.Time) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(universe))
	for symbol := range universe {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	// Raw short-horizon metrics per eligible instrument.
	metricNames := make([]string, 0)
	for _, names := range g.library.Families() {
		for _, name := range names {
			if strings.HasPrefix(name, "momentum_") || name == "volatility" {
				metricNames = append(metricNames, name)
			}
		}
	}
	sort.Strings(metricNames)

	raw := make(map[string]map[string]float64, len(metricNames))
	for _, metric := range metricNames {
		raw[metric] = make(map[string]float64)
	}
	for _, symbol := range symbols {
		series := universe[symbol]
		if !g.library.HasSufficientHistory(series, date) {
			continue
		}
		for _, metric := range metricNames {
			v, err := g.library.Compute(metric, series, date)
			if err != nil {
				if contracts.IsExcludable(err) {
					continue
				}
				return nil, err
			}
			raw[metric][symbol] = v
		}
	}

	// Composite: mean of available z-scores, volatility inverted so low
	// volatility scores high.
	components := make(map[string][]float64)
	for _, metric := range metricNames {
		scores := scoring.Normalize(raw[metric], g.sigma)
		invert := factors.LowerIsBetter(metric)
		for symbol, z := range scores {
			if invert {
				z = -z
			}
			components[symbol] = append(components[symbol], z)
		}
	}

	composite := &contracts.CompositeSnapshot{
		Date:   date,
		Scores: make(map[string]float64, len(components)),
	}
	for symbol, zs := range components {
		total := 0.0
		for _, z := range zs {
			total += z
		}
		composite.Scores[symbol] = total / float64(len(zs))
	}

	ranked := composite.Ranked()
	report := &Report{Date: date}

	topK := g.cfg.TopK
	if topK > len(ranked) {
		topK = len(ranked)
	}
	for _, entry := range ranked[:topK] {
		series := universe[entry.Symbol]
		price, ok := entryPrice(series, date)
		if !ok {
			continue
		}
		report.Buys = append(report.Buys, Signal{
			Symbol:     entry.Symbol,
			Sector:     series.Sector,
			Action:     ActionBuy,
			Score:      entry.Score,
			Rank:       entry.Rank,
			EntryPrice: price,
			StopLoss:   price * (1 - g.cfg.StopLossPct),
			TakeProfit: price * (1 + g.cfg.TakeProfitPct),
		})
	}

	bottom := len(ranked) - topK
	if bottom < topK {
		bottom = topK
	}
	for _, entry := range ranked[bottom:] {
		series := universe[entry.Symbol]
		price, ok := entryPrice(series, date)
		if !ok {
			continue
		}
		report.Sells = append(report.Sells, Signal{
			Symbol:     entry.Symbol,
			Sector:     series.Sector,
			Action:     ActionSell,
			Score:      entry.Score,
			Rank:       entry.Rank,
			EntryPrice: price,
		})
	}

	g.logger.WithFields(map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"scored": len(composite.Scores),
		"buys":   len(report.Buys),
		"sells":  len(report.Sells),
	}).Info("Signal scan completed")

	return report, nil
}

// FromWeights converts final target weights into a buy list, the signal
// output mode of a completed analysis: each position annotated with its
// weight-implied levels.
func (g *Generator) FromWeights(weights *contracts.TargetWeights, universe map[string]*contracts.InstrumentSeries) *Report {
	report := &Report{Date: weights.Date}

	symbols := make([]string, 0, len(weights.Weights))
	for symbol := range weights.Weights {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool {
		wi, wj := weights.Weights[symbols[i]], weights.Weights[symbols[j]]
		if wi != wj {
			return wi > wj
		}
		return symbols[i] < symbols[j]
	})

	for rank, symbol := range symbols {
		series, ok := universe[symbol]
		if !ok {
			continue
		}
		price, ok := entryPrice(series, weights.Date)
		if !ok {
			continue
		}
		report.Buys = append(report.Buys, Signal{
			Symbol:     symbol,
			Sector:     series.Sector,
			Action:     ActionBuy,
			Score:      weights.Weights[symbol],
			Rank:       rank + 1,
			EntryPrice: price,
			StopLoss:   price * (1 - g.cfg.StopLossPct),
			TakeProfit: price * (1 + g.cfg.TakeProfitPct),
		})
	}
	return report
}

// entryPrice is the close on the scan date, or the last close before it
// when the date has no bar.
func entryPrice(series *contracts.InstrumentSeries, date time.Time) (float64, bool) {
	if price, ok := series.PriceOn(date); ok && price > 0 {
		return price, true
	}
	closes := series.ClosesBefore(date)
	if len(closes) == 0 {
		return 0, false
	}
	price := closes[len(closes)-1]
	if price <= 0 {
		return 0, false
	}
	return price, true
}
