package contracts

import (
	"sort"
	"time"
)

// FactorSnapshot maps instrument symbol to a raw metric value for one
// factor on one date. Instruments with missing or insufficient data are
// absent from Values, never zero-filled.
type FactorSnapshot struct {
	Date   time.Time          `json:"date"`
	Factor string             `json:"factor"`
	Values map[string]float64 `json:"values"`
}

// ScoreSnapshot maps instrument symbol to a standardized cross-sectional
// score for one date. Scores are finite with mean near zero, bounded by
// the configured winsorization sigma.
type ScoreSnapshot struct {
	Date   time.Time          `json:"date"`
	Scores map[string]float64 `json:"scores"`
}

// CompositeSnapshot maps instrument symbol to the single weighted
// composite score for one date. Instruments missing any required factor
// family are excluded entirely.
type CompositeSnapshot struct {
	Date   time.Time          `json:"date"`
	Scores map[string]float64 `json:"scores"`
}

// RankedInstrument is one entry in a ranked universe snapshot.
type RankedInstrument struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"` // 1-based
}

// Ranked returns instruments sorted by descending score. Equal scores
// are broken by symbol so the ordering is deterministic.
func (c *CompositeSnapshot) Ranked() []RankedInstrument {
	ranked := make([]RankedInstrument, 0, len(c.Scores))
	for symbol, score := range c.Scores {
		ranked = append(ranked, RankedInstrument{Symbol: symbol, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}

// TopK returns the k best-ranked instruments (fewer if the universe is
// smaller).
func (c *CompositeSnapshot) TopK(k int) []RankedInstrument {
	ranked := c.Ranked()
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}
