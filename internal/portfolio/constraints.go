package portfolio

import (
	"math"
	"sort"

	"github.com/quantfold/quantfold/internal/contracts"
)

const weightTolerance = 1e-9

// applyPositionBounds enforces per-position weight bounds. Weights above
// the maximum are clipped and the excess redistributed proportionally
// among names still below the cap; when every name sits at the cap the
// excess stays in cash. Weights below the minimum after clipping are
// dropped.
func (c *Constructor) applyPositionBounds(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for symbol, w := range weights {
		if w > 0 {
			out[symbol] = w
		}
	}

	iterations := c.cfg.SectorCapIterations
	if iterations <= 0 {
		iterations = 10
	}

	for iter := 0; iter < iterations; iter++ {
		excess := 0.0
		for symbol, w := range out {
			if w > c.maxPos {
				excess += w - c.maxPos
				out[symbol] = c.maxPos
			}
		}
		if excess <= weightTolerance {
			break
		}

		eligible := 0.0
		for _, w := range out {
			if w < c.maxPos-weightTolerance {
				eligible += w
			}
		}
		if eligible <= weightTolerance {
			// Everyone is at the cap; the excess stays in cash.
			break
		}

		for symbol, w := range out {
			if w < c.maxPos-weightTolerance {
				out[symbol] = w + excess*w/eligible
			}
		}
	}

	for symbol, w := range out {
		if w < c.minPos-weightTolerance {
			delete(out, symbol)
		}
	}
	return out
}

// applySectorCaps caps each sector's aggregate weight. Overweight
// sectors are scaled down to the cap and the freed weight redistributed
// pro-rata across names in uncapped sectors, respecting the per-position
// maximum. Redistribution can push another sector over its cap, so the
// scale-and-redistribute pass repeats up to the configured iteration
// budget; weight that cannot be placed stays in cash. A nil sector map
// disables the constraint.
func (c *Constructor) applySectorCaps(weights map[string]float64, sectors map[string]string) map[string]float64 {
	if len(sectors) == 0 || c.cfg.MaxSectorWeight <= 0 || c.cfg.MaxSectorWeight >= 1 {
		return weights
	}

	cap := c.cfg.MaxSectorWeight
	out := make(map[string]float64, len(weights))
	for symbol, w := range weights {
		out[symbol] = w
	}

	sectorOf := func(symbol string) string {
		if s, ok := sectors[symbol]; ok && s != "" {
			return s
		}
		return "Unknown"
	}

	iterations := c.cfg.SectorCapIterations
	if iterations <= 0 {
		iterations = 10
	}

	for iter := 0; iter < iterations; iter++ {
		totals := make(map[string]float64)
		for symbol, w := range out {
			totals[sectorOf(symbol)] += w
		}

		over := make(map[string]bool)
		excess := 0.0
		for sector, total := range totals {
			if total > cap+weightTolerance {
				over[sector] = true
				excess += total - cap
			}
		}
		if excess <= weightTolerance {
			return out
		}

		// Scale each overweight sector down to exactly the cap.
		for symbol, w := range out {
			sector := sectorOf(symbol)
			if over[sector] {
				out[symbol] = w * cap / totals[sector]
			}
		}

		// Redistribute pro-rata to names in sectors with headroom,
		// without breaching the position cap or the receiving sector's
		// own cap. Deterministic order so repeated runs agree exactly.
		symbols := make([]string, 0, len(out))
		for symbol := range out {
			if !over[sectorOf(symbol)] {
				symbols = append(symbols, symbol)
			}
		}
		sort.Strings(symbols)

		eligible := 0.0
		for _, symbol := range symbols {
			eligible += out[symbol]
		}
		if eligible <= weightTolerance {
			return out
		}

		headroom := make(map[string]float64)
		for sector, total := range totals {
			if !over[sector] {
				headroom[sector] = cap - total
			}
		}

		for _, symbol := range symbols {
			sector := sectorOf(symbol)
			add := excess * out[symbol] / eligible
			add = math.Min(add, c.maxPos-out[symbol])
			add = math.Min(add, headroom[sector])
			if add <= 0 {
				continue
			}
			out[symbol] += add
			headroom[sector] -= add
		}
	}

	// Iteration budget exhausted: force remaining overweight sectors
	// down to the cap and leave the difference in cash.
	totals := make(map[string]float64)
	for symbol, w := range out {
		totals[sectorOf(symbol)] += w
	}
	for symbol, w := range out {
		sector := sectorOf(symbol)
		if totals[sector] > cap+weightTolerance {
			out[symbol] = w * cap / totals[sector]
		}
	}
	return out
}

// dropBelowMin removes positions whose weight fell under the minimum
// during sector or turnover adjustments. Freed weight stays in cash.
func (c *Constructor) dropBelowMin(weights map[string]float64) map[string]float64 {
	for symbol, w := range weights {
		if w < c.minPos-weightTolerance {
			delete(weights, symbol)
		}
	}
	return weights
}

// applyTurnoverCap limits one-sided turnover against the prior weights.
// When the proposed trade vector exceeds the cap, every weight delta is
// scaled by the same factor, so the rebalance moves part way toward the
// target in the same direction. No prior weights means the first
// rebalance, which is never capped.
func (c *Constructor) applyTurnoverCap(weights, prior map[string]float64) map[string]float64 {
	if len(prior) == 0 || c.cfg.MaxTurnover <= 0 {
		return weights
	}

	turnover := contracts.Turnover(prior, weights)
	if turnover <= c.cfg.MaxTurnover+weightTolerance {
		return weights
	}

	scale := c.cfg.MaxTurnover / turnover
	union := make(map[string]bool, len(prior)+len(weights))
	for symbol := range prior {
		union[symbol] = true
	}
	for symbol := range weights {
		union[symbol] = true
	}

	out := make(map[string]float64, len(union))
	for symbol := range union {
		w := prior[symbol] + (weights[symbol]-prior[symbol])*scale
		if w > weightTolerance {
			out[symbol] = w
		}
	}
	return out
}
