package scoring

import (
	"math"
)

// Normalize converts raw per-instrument metric values for one date into
// standardized cross-sectional scores: winsorize at mean ± sigma·stddev,
// then z-score against the clipped distribution.
//
// Non-finite inputs are excluded from the cross-section, not zero-filled,
// and are absent from the result. A degenerate cross-section (fewer than
// two valid observations, or zero dispersion) yields zero scores for all
// valid instruments; it is a defined fallback, not an error.
func Normalize(raw map[string]float64, winsorizeSigma float64) map[string]float64 {
	valid := make(map[string]float64, len(raw))
	for symbol, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid[symbol] = v
	}

	scores := make(map[string]float64, len(valid))
	if len(valid) < 2 {
		for symbol := range valid {
			scores[symbol] = 0
		}
		return scores
	}

	mean, std := meanStddev(valid)
	if std == 0 {
		for symbol := range valid {
			scores[symbol] = 0
		}
		return scores
	}

	// Clip outliers, then standardize against the clipped distribution.
	lo := mean - std*winsorizeSigma
	hi := mean + std*winsorizeSigma
	clipped := make(map[string]float64, len(valid))
	for symbol, v := range valid {
		clipped[symbol] = math.Min(math.Max(v, lo), hi)
	}

	mean, std = meanStddev(clipped)
	if std == 0 {
		for symbol := range clipped {
			scores[symbol] = 0
		}
		return scores
	}

	for symbol, v := range clipped {
		scores[symbol] = (v - mean) / std
	}
	return scores
}

func meanStddev(values map[string]float64) (float64, float64) {
	n := float64(len(values))
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
