package portfolio

import (
	"fmt"
	"time"

	"github.com/quantfold/quantfold/internal/contracts"
	"github.com/quantfold/quantfold/internal/strategyconfig"
	"github.com/quantfold/quantfold/pkg/logger"
)

// Allocation methods.
const (
	MethodEqualWeight  = "equal_weight"
	MethodRiskParity   = "risk_parity"
	MethodMeanVariance = "mean_variance"
	MethodHRP          = "hierarchical_risk_parity"
)

// Inputs is one rebalance date's portfolio construction input: the
// ranked universe snapshot, the instrument histories needed for risk
// estimation, sector assignments, and the prior weights for
// turnover-aware rebalancing (nil on the first rebalance).
type Inputs struct {
	Date      time.Time
	Composite *contracts.CompositeSnapshot
	Universe  map[string]*contracts.InstrumentSeries
	Sectors   map[string]string
	Prior     map[string]float64
}

// Constructor maps a ranked universe snapshot into target position
// weights under position, sector and turnover constraints.
type Constructor struct {
	cfg    strategyconfig.PortfolioConfig
	minPos float64
	maxPos float64
	logger *logger.Logger
}

// NewConstructor creates a portfolio constructor.
func NewConstructor(cfg strategyconfig.PortfolioConfig, minPos, maxPos float64, log *logger.Logger) *Constructor {
	return &Constructor{
		cfg:    cfg,
		minPos: minPos,
		maxPos: maxPos,
		logger: log,
	}
}

// Construct builds target weights for one rebalance date. Selection
// takes the top-K instruments by composite score with deterministic
// tie-breaks; the configured allocation method produces raw weights;
// position bounds, sector caps and the turnover cap are applied in that
// order. An empty eligible universe or an infeasible constraint set
// aborts with ConstraintInfeasibleError.
func (c *Constructor) Construct(in Inputs) (*contracts.TargetWeights, error) {
	selected := in.Composite.TopK(c.cfg.TopK)
	if len(selected) == 0 {
		return nil, &contracts.ConstraintInfeasibleError{
			Date:       in.Date,
			Constraint: "empty eligible universe",
		}
	}

	symbols := make([]string, len(selected))
	scores := make([]float64, len(selected))
	for i, r := range selected {
		symbols[i] = r.Symbol
		scores[i] = r.Score
	}

	var (
		weights map[string]float64
		err     error
	)
	switch c.cfg.OptimizationMethod {
	case MethodEqualWeight:
		weights = c.equalWeight(symbols)
	case MethodRiskParity:
		weights, err = c.riskParity(symbols, in)
	case MethodMeanVariance:
		weights, err = c.meanVariance(symbols, scores, in)
	case MethodHRP:
		weights, err = c.hierarchicalRiskParity(symbols, in)
	default:
		return nil, fmt.Errorf("unknown optimization method %q", c.cfg.OptimizationMethod)
	}
	if err != nil {
		return nil, err
	}

	weights = c.applyPositionBounds(weights)
	if len(weights) == 0 {
		return nil, &contracts.ConstraintInfeasibleError{
			Date:       in.Date,
			Constraint: "no allocation satisfies the position size bounds",
		}
	}

	weights = c.applySectorCaps(weights, in.Sectors)
	weights = c.applyTurnoverCap(weights, in.Prior)
	weights = c.dropBelowMin(weights)

	c.logger.WithFields(map[string]interface{}{
		"date":      in.Date.Format("2006-01-02"),
		"method":    c.cfg.OptimizationMethod,
		"positions": len(weights),
		"exposure":  fmt.Sprintf("%.4f", sum(weights)),
	}).Debug("Target portfolio constructed")

	return &contracts.TargetWeights{Date: in.Date, Weights: weights}, nil
}

func sum(weights map[string]float64) float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return total
}
