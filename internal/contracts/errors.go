package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Per-instrument, per-date failures. The instrument is excluded from
// that date's cross-section; these never abort a run.
var (
	ErrMissingData         = errors.New("missing data")
	ErrInsufficientHistory = errors.New("insufficient history")
)

// ConstraintInfeasibleError reports a portfolio construction whose
// constraint set admits no solution. It aborts the backtest run, since
// downstream periods depend on consistent holdings state.
type ConstraintInfeasibleError struct {
	Date       time.Time
	Constraint string
}

func (e *ConstraintInfeasibleError) Error() string {
	return fmt.Sprintf("infeasible constraints on %s: %s",
		e.Date.Format("2006-01-02"), e.Constraint)
}

// IsExcludable reports whether err is a per-instrument failure that the
// caller should absorb by excluding the instrument from the
// cross-section.
func IsExcludable(err error) bool {
	return errors.Is(err, ErrMissingData) || errors.Is(err, ErrInsufficientHistory)
}
