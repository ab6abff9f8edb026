package selection

import "errors"

// #region errors
var (
	// ErrLengthMismatch is returned when constraint strings and scores differ in length.
	ErrLengthMismatch = errors.New("constraint and score lengths differ")
)

// #endregion errors

// #region record
// Record carries one constraint through selection. Column is its position in
// the active matrix, or -1 when inactive.
type Record struct {
	Index            int
	String           string
	Discriminativity float64
	Active           bool
	Column           int
}

// Options controls which constraints are kept.
type Options struct {
	Threshold      float64 // keep scores strictly above this
	MaxConstraints int     // 0 = unlimited
}

// DefaultOptions keeps every constraint with positive discriminativity.
func DefaultOptions() Options {
	return Options{}
}

// #endregion record
