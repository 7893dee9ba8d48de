package portfolio

import (
	"fmt"
	"math"
)

// hierarchicalRiskParity allocates by clustering instruments on their
// return correlation structure and splitting the risk budget recursively
// down the cluster hierarchy. Clustering is single-linkage on the
// correlation distance sqrt((1-ρ)/2); equal distances are broken by the
// lexicographically smallest symbol pair so the result is reproducible.
func (c *Constructor) hierarchicalRiskParity(symbols []string, in Inputs) (map[string]float64, error) {
	cov, err := covarianceMatrix(in.Universe, symbols, in.Date, c.cfg.CovarianceLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("hrp covariance: %w", err)
	}

	if len(symbols) == 1 {
		return map[string]float64{symbols[0]: 1}, nil
	}

	corr := correlationFromCovariance(cov)
	n := len(symbols)
	dist := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			d := (1 - corr[i][j]) / 2
			if d < 0 {
				d = 0
			}
			dist[i][j] = math.Sqrt(d)
		}
	}

	order := quasiDiagOrder(symbols, dist)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	bisect(order, cov, weights)

	out := make(map[string]float64, n)
	for _, idx := range order {
		out[symbols[idx]] = weights[idx]
	}
	return out, nil
}

// quasiDiagOrder performs deterministic single-linkage agglomerative
// clustering and returns the leaf ordering of the resulting tree, which
// places correlated instruments adjacently.
func quasiDiagOrder(symbols []string, dist [][]float64) []int {
	type cluster struct {
		members []int // leaf order within the cluster
	}

	clusters := make([]*cluster, len(symbols))
	for i := range symbols {
		clusters[i] = &cluster{members: []int{i}}
	}

	linkDist := func(a, b *cluster) float64 {
		min := math.Inf(1)
		for _, i := range a.members {
			for _, j := range b.members {
				if dist[i][j] < min {
					min = dist[i][j]
				}
			}
		}
		return min
	}

	for len(clusters) > 1 {
		bestA, bestB := 0, 1
		bestD := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				d := linkDist(clusters[a], clusters[b])
				if d < bestD || (d == bestD && tieBreak(symbols, clusters[a].members, clusters[b].members, clusters[bestA].members, clusters[bestB].members)) {
					bestD = d
					bestA, bestB = a, b
				}
			}
		}

		merged := &cluster{
			members: append(append([]int{}, clusters[bestA].members...), clusters[bestB].members...),
		}
		next := make([]*cluster, 0, len(clusters)-1)
		for i, cl := range clusters {
			if i != bestA && i != bestB {
				next = append(next, cl)
			}
		}
		clusters = append(next, merged)
	}

	return clusters[0].members
}

// tieBreak prefers the candidate pair whose smallest member symbols sort
// lexicographically first.
func tieBreak(symbols []string, a1, b1, a2, b2 []int) bool {
	k1 := symbols[a1[0]] + "\x00" + symbols[b1[0]]
	k2 := symbols[a2[0]] + "\x00" + symbols[b2[0]]
	return k1 < k2
}

// bisect splits the ordered instrument list in half and allocates weight
// between the halves inversely proportional to cluster variance,
// recursing into each half.
func bisect(order []int, cov [][]float64, weights []float64) {
	if len(order) < 2 {
		return
	}

	mid := len(order) / 2
	left, right := order[:mid], order[mid:]

	varLeft := clusterVariance(left, cov)
	varRight := clusterVariance(right, cov)

	alpha := 0.5
	if varLeft+varRight > 0 {
		alpha = 1 - varLeft/(varLeft+varRight)
	}

	for _, i := range left {
		weights[i] *= alpha
	}
	for _, i := range right {
		weights[i] *= 1 - alpha
	}

	bisect(left, cov, weights)
	bisect(right, cov, weights)
}

// clusterVariance computes the variance of an inverse-variance-weighted
// sub-portfolio over the cluster's members.
func clusterVariance(members []int, cov [][]float64) float64 {
	ivp := make([]float64, len(members))
	total := 0.0
	for k, i := range members {
		v := cov[i][i]
		if v <= 0 {
			v = 1e-12
		}
		ivp[k] = 1 / v
		total += ivp[k]
	}
	for k := range ivp {
		ivp[k] /= total
	}

	variance := 0.0
	for a, i := range members {
		for b, j := range members {
			variance += ivp[a] * ivp[b] * cov[i][j]
		}
	}
	return variance
}
