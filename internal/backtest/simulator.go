package backtest

import (
	"math"
	"sort"

	"github.com/quantfold/quantfold/internal/contracts"
)

// minTradeNotional suppresses dust trades that would otherwise churn on
// every rebalance from rounding drift.
const minTradeNotional = 1e-6

// executeRebalance moves holdings to the target weights at the given
// prices, mutating cash and positions in place. Execution prices carry
// slippage in the unfavorable direction; each trade pays a flat rate on
// notional. Sells run before buys so proceeds fund the purchases.
// Instruments without a usable price are left untouched. Returns the
// executed trades and the total transaction cost.
func executeRebalance(holdings *contracts.Holdings, target *contracts.TargetWeights, prices map[string]float64, costRate, slippageRate float64) ([]contracts.Trade, float64) {
	equity := holdings.MarketValue(prices)

	symbols := make(map[string]bool, len(holdings.Positions)+len(target.Weights))
	for symbol := range holdings.Positions {
		symbols[symbol] = true
	}
	for symbol := range target.Weights {
		symbols[symbol] = true
	}

	type order struct {
		symbol string
		delta  float64 // signed shares
	}
	sells := make([]order, 0)
	buys := make([]order, 0)

	for symbol := range symbols {
		price := prices[symbol]
		if price <= 0 {
			continue
		}

		current := 0.0
		if pos, ok := holdings.Positions[symbol]; ok {
			current = pos.Shares
		}
		desired := target.Weights[symbol] * equity / price
		delta := desired - current
		if math.Abs(delta)*price < minTradeNotional {
			continue
		}

		if delta < 0 {
			sells = append(sells, order{symbol, delta})
		} else {
			buys = append(buys, order{symbol, delta})
		}
	}

	sort.Slice(sells, func(i, j int) bool { return sells[i].symbol < sells[j].symbol })
	sort.Slice(buys, func(i, j int) bool { return buys[i].symbol < buys[j].symbol })

	trades := make([]contracts.Trade, 0, len(sells)+len(buys))
	totalCost := 0.0

	for _, o := range append(sells, buys...) {
		price := prices[o.symbol]
		execPrice := price * (1 + slippageRate)
		if o.delta < 0 {
			execPrice = price * (1 - slippageRate)
		}

		notional := math.Abs(o.delta) * execPrice
		cost := notional * costRate
		totalCost += cost

		if o.delta > 0 {
			spend := notional + cost
			holdings.Cash -= spend
			pos, ok := holdings.Positions[o.symbol]
			if !ok {
				pos = &contracts.Position{Symbol: o.symbol}
				holdings.Positions[o.symbol] = pos
			}
			pos.Shares += o.delta
			pos.CostBasis += spend
		} else {
			pos := holdings.Positions[o.symbol]
			sold := -o.delta
			holdings.Cash += notional - cost
			// Relieve cost basis proportionally to the shares sold.
			pos.CostBasis *= (pos.Shares - sold) / pos.Shares
			pos.Shares -= sold
			if pos.Shares*price < minTradeNotional {
				delete(holdings.Positions, o.symbol)
			}
		}

		trades = append(trades, contracts.Trade{
			Symbol: o.symbol,
			Shares: o.delta,
			Price:  execPrice,
			Cost:   cost,
		})
	}

	return trades, totalCost
}
