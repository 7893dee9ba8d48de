package portfolio

import (
	"fmt"
	"math"

	"github.com/quantfold/quantfold/internal/contracts"
)

// equalWeight gives each selected instrument 1/K before constraints.
func (c *Constructor) equalWeight(symbols []string) map[string]float64 {
	weights := make(map[string]float64, len(symbols))
	w := 1.0 / float64(len(symbols))
	for _, symbol := range symbols {
		weights[symbol] = w
	}
	return weights
}

// riskParity weights instruments inversely proportional to their
// trailing volatility, rescaled to full exposure. Instruments whose
// volatility cannot be estimated are excluded from the allocation.
func (c *Constructor) riskParity(symbols []string, in Inputs) (map[string]float64, error) {
	inverse := make(map[string]float64, len(symbols))
	total := 0.0

	for _, symbol := range symbols {
		vol := trailingVolatility(in.Universe[symbol], in.Date, c.cfg.CovarianceLookbackDays)
		if vol <= 0 {
			continue
		}
		inv := 1.0 / vol
		inverse[symbol] = inv
		total += inv
	}

	if total == 0 {
		return nil, &contracts.ConstraintInfeasibleError{
			Date:       in.Date,
			Constraint: "no instrument has an estimable trailing volatility",
		}
	}

	weights := make(map[string]float64, len(inverse))
	for symbol, inv := range inverse {
		weights[symbol] = inv / total
	}
	return weights, nil
}

// meanVariance maximizes score·w − λ·wᵀΣw subject to 0 ≤ w ≤ max and
// Σw ≤ 1 by projected gradient ascent. The iteration is deterministic:
// fixed starting point, fixed step rule, convergence on the configured
// tolerance.
func (c *Constructor) meanVariance(symbols []string, scores []float64, in Inputs) (map[string]float64, error) {
	n := len(symbols)
	cov, err := covarianceMatrix(in.Universe, symbols, in.Date, c.cfg.CovarianceLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("mean-variance covariance: %w", err)
	}

	if c.maxPos <= 0 {
		return nil, &contracts.ConstraintInfeasibleError{
			Date:       in.Date,
			Constraint: "max position size admits no investment",
		}
	}

	lambda := c.cfg.RiskAversion
	w := make([]float64, n)
	start := math.Min(1.0/float64(n), c.maxPos)
	for i := range w {
		w[i] = start
	}

	// Step size scaled by the largest diagonal variance so the gradient
	// step stays stable across volatility regimes.
	maxVar := 0.0
	for i := 0; i < n; i++ {
		if cov[i][i] > maxVar {
			maxVar = cov[i][i]
		}
	}
	step := 0.05
	if maxVar > 0 {
		step = 0.05 / (1 + 2*lambda*maxVar)
	}

	const maxIterations = 2000
	for iter := 0; iter < maxIterations; iter++ {
		grad := make([]float64, n)
		for i := 0; i < n; i++ {
			risk := 0.0
			for j := 0; j < n; j++ {
				risk += cov[i][j] * w[j]
			}
			grad[i] = scores[i] - 2*lambda*risk
		}

		next := make([]float64, n)
		for i := 0; i < n; i++ {
			next[i] = w[i] + step*grad[i]
		}
		projectBoxSimplex(next, c.maxPos)

		delta := 0.0
		for i := 0; i < n; i++ {
			delta += math.Abs(next[i] - w[i])
		}
		w = next
		if delta < c.cfg.ConvergenceTolerance {
			break
		}
	}

	weights := make(map[string]float64, n)
	for i, symbol := range symbols {
		if w[i] > 0 {
			weights[symbol] = w[i]
		}
	}
	if len(weights) == 0 {
		return nil, &contracts.ConstraintInfeasibleError{
			Date:       in.Date,
			Constraint: "mean-variance optimization produced no feasible allocation",
		}
	}
	return weights, nil
}

// projectBoxSimplex projects w in place onto {0 ≤ w_i ≤ max, Σw ≤ 1}.
// If the box-clipped point already satisfies the budget it is kept;
// otherwise a uniform shift θ is found by bisection so that the shifted,
// clipped weights sum to exactly 1.
func projectBoxSimplex(w []float64, maxPos float64) {
	total := 0.0
	for i := range w {
		w[i] = math.Min(math.Max(w[i], 0), maxPos)
		total += w[i]
	}
	if total <= 1 {
		return
	}

	clipShifted := func(theta float64) float64 {
		s := 0.0
		for _, v := range w {
			s += math.Min(math.Max(v-theta, 0), maxPos)
		}
		return s
	}

	lo, hi := 0.0, maxPos+1
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		if clipShifted(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}
	theta := (lo + hi) / 2
	for i := range w {
		w[i] = math.Min(math.Max(w[i]-theta, 0), maxPos)
	}
}
