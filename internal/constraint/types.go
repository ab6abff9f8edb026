package constraint

import "errors"

// #region errors
var (
	// ErrMalformedConstraint is returned for constraint strings that cannot be
	// parsed: a missing family separator, unbalanced brackets, misplaced
	// anchors, unknown features or segments.
	ErrMalformedConstraint = errors.New("malformed constraint")
)

// #endregion errors

// #region constraint
// Constraint counts the violations a word incurs. Words are sequences of
// segments without boundary markers.
type Constraint interface {
	String() string
	Violations(word []string) int
}

// FamilyNgram is the only interpreted constraint family.
const FamilyNgram = "Ngram"

// #endregion constraint

// #region zero
// zero stands in for constraints of an unknown family.
type zero struct {
	str string
}

func (z zero) String() string { return z.str }

func (z zero) Violations([]string) int { return 0 }

// #endregion zero
