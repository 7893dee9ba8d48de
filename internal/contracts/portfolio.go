package contracts

import (
	"math"
	"time"
)

// TargetWeights maps instrument symbol to a fractional portfolio weight
// for one rebalance date. Weights sum to at most 1; the remainder is
// cash.
type TargetWeights struct {
	Date    time.Time          `json:"date"`
	Weights map[string]float64 `json:"weights"`
}

// Total returns the sum of all target weights.
func (t *TargetWeights) Total() float64 {
	total := 0.0
	for _, w := range t.Weights {
		total += w
	}
	return total
}

// Count returns the number of nonzero positions.
func (t *TargetWeights) Count() int {
	n := 0
	for _, w := range t.Weights {
		if w > 0 {
			n++
		}
	}
	return n
}

// Turnover returns the distance between two weight vectors as the sum of
// absolute weight deltas over the union of symbols.
func Turnover(from, to map[string]float64) float64 {
	seen := make(map[string]bool, len(from)+len(to))
	total := 0.0

	for symbol, w := range to {
		total += math.Abs(w - from[symbol])
		seen[symbol] = true
	}
	for symbol, w := range from {
		if !seen[symbol] {
			total += math.Abs(w)
		}
	}

	return total
}

// Position is one holding: share count and total acquisition cost.
type Position struct {
	Symbol    string  `json:"symbol"`
	Shares    float64 `json:"shares"`
	CostBasis float64 `json:"cost_basis"`
}

// Holdings is the portfolio state carried across rebalance periods: cash
// plus open positions. It is mutated only by the backtest engine's
// sequential loop.
type Holdings struct {
	Cash      float64              `json:"cash"`
	Positions map[string]*Position `json:"positions"`
}

// NewHoldings creates empty holdings with initial capital.
func NewHoldings(cash float64) *Holdings {
	return &Holdings{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// MarketValue returns cash plus the value of all positions at the given
// prices. Positions without a price contribute zero; callers that need
// carry-forward pricing must supply it in the price map.
func (h *Holdings) MarketValue(prices map[string]float64) float64 {
	value := h.Cash
	for symbol, pos := range h.Positions {
		value += pos.Shares * prices[symbol]
	}
	return value
}

// CurrentWeights returns each position's fraction of total portfolio
// value at the given prices. Returns an empty map when the portfolio has
// no value.
func (h *Holdings) CurrentWeights(prices map[string]float64) map[string]float64 {
	total := h.MarketValue(prices)
	weights := make(map[string]float64, len(h.Positions))
	if total <= 0 {
		return weights
	}
	for symbol, pos := range h.Positions {
		weights[symbol] = pos.Shares * prices[symbol] / total
	}
	return weights
}

// Trade is one executed order within a rebalance step. Shares is signed:
// positive buys, negative sells. Price includes slippage.
type Trade struct {
	Symbol string  `json:"symbol"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
	Cost   float64 `json:"cost"`
}

// Notional returns the absolute traded value.
func (t Trade) Notional() float64 {
	return math.Abs(t.Shares) * t.Price
}

// PerformanceRecord is one entry in the backtest's append-only ledger.
// Degraded marks dates where a held instrument had no price and the last
// known price was carried forward.
type PerformanceRecord struct {
	Date           time.Time `json:"date"`
	PortfolioValue float64   `json:"portfolio_value"`
	BenchmarkValue float64   `json:"benchmark_value"`
	Turnover       float64   `json:"turnover"`
	Cost           float64   `json:"cost"`
	Degraded       bool      `json:"degraded"`
}
