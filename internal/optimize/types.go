package optimize

import (
	"errors"
	"math"
)

// #region errors
var (
	// ErrDimension is returned when vectors disagree with the matrix shape.
	ErrDimension = errors.New("dimension mismatch")

	// ErrBounds is returned when a lower bound exceeds its upper bound.
	ErrBounds = errors.New("invalid bounds")
)

// #endregion errors

// #region prior
// Prior holds the regularisation strengths. The log-prior is
// L1·Σw − L2·Σw², so with w ≤ 0 both terms penalise large weights.
type Prior struct {
	L1 float64
	L2 float64
}

// DefaultPrior is L1 = 1, no L2 term.
func DefaultPrior() Prior {
	return Prior{L1: 1}
}

// #endregion prior

// #region settings
// Settings configures Minimize.
type Settings struct {
	Lower     float64 // per-coordinate lower bound
	Upper     float64 // per-coordinate upper bound
	Precision float64 // stop when relative reduction <= Precision·machine epsilon
	PGTol     float64 // stop when projected gradient max-norm <= PGTol
	MaxIter   int
	History   int // number of correction pairs kept
}

// DefaultSettings mirrors the usual L-BFGS-B defaults with weights in [-25, 0].
func DefaultSettings() Settings {
	return Settings{
		Lower:     -25,
		Upper:     0,
		Precision: 1e7,
		PGTol:     1e-5,
		MaxIter:   15000,
		History:   10,
	}
}

// machineEpsilon is the float64 unit roundoff used by the precision test.
var machineEpsilon = math.Nextafter(1, 2) - 1

// #endregion settings

// #region result
// Status reports why Minimize stopped.
type Status int

const (
	Converged Status = iota
	MaxIterations
	LineSearchFailed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterations:
		return "max_iterations"
	case LineSearchFailed:
		return "line_search_failed"
	default:
		return "unknown"
	}
}

// Result is the last iterate of a minimisation.
type Result struct {
	X          []float64
	F          float64
	Grad       []float64
	Iterations int
	FuncEvals  int
	Status     Status
}

// Func evaluates the objective and its gradient at x.
type Func func(x []float64) (float64, []float64)

// #endregion result
