package scoring

import (
	"time"

	"github.com/quantfold/quantfold/internal/contracts"
)

// FamilyScore combines the normalized sub-metric scores of one factor
// family into a single per-instrument family score using the configured
// weight mapping. A sub-metric missing for an instrument contributes
// zero, but only if at least one sub-metric is present; instruments with
// no sub-metric at all get no family score.
func FamilyScore(metricScores map[string]map[string]float64, weights map[string]float64) map[string]float64 {
	family := make(map[string]float64)
	present := make(map[string]bool)

	for metric, weight := range weights {
		scores, ok := metricScores[metric]
		if !ok {
			continue
		}
		for symbol, z := range scores {
			family[symbol] += weight * z
			present[symbol] = true
		}
	}

	for symbol := range family {
		if !present[symbol] {
			delete(family, symbol)
		}
	}
	return family
}

// Composite combines family scores into one composite score per
// instrument. The policy is strict: an instrument missing any family
// carrying nonzero composite weight is excluded entirely rather than
// scored on a partial basis.
func Composite(date time.Time, familyScores map[string]map[string]float64, compositeWeights map[string]float64) *contracts.CompositeSnapshot {
	snapshot := &contracts.CompositeSnapshot{
		Date:   date,
		Scores: make(map[string]float64),
	}

	// Candidates are instruments present in every required family.
	var required []string
	for family, weight := range compositeWeights {
		if weight != 0 {
			required = append(required, family)
		}
	}
	if len(required) == 0 {
		return snapshot
	}

	for symbol := range familyScores[required[0]] {
		complete := true
		for _, family := range required[1:] {
			if _, ok := familyScores[family][symbol]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}

		total := 0.0
		for _, family := range required {
			total += compositeWeights[family] * familyScores[family][symbol]
		}
		snapshot.Scores[symbol] = total
	}

	return snapshot
}
