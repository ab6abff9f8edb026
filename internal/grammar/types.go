package grammar

import (
	"errors"

	"github.com/danielpatrickdp/phoment/internal/constraint"
)

// #region errors
var (
	// ErrMalformedGrammar is returned for unparseable grammar lines.
	ErrMalformedGrammar = errors.New("malformed grammar")

	// ErrLengthMismatch is returned when constraints and weights differ in length.
	ErrLengthMismatch = errors.New("constraint and weight lengths differ")
)

// #endregion errors

// #region grammar
// Grammar is an ordered list of weighted constraints. A form's probability is
// proportional to exp(Σ w_j·v_j); weights are non-positive after fitting.
type Grammar struct {
	Constraints []string
	Weights     []float64
}

// Len returns the number of constraints.
func (g *Grammar) Len() int { return len(g.Constraints) }

// Scorer evaluates forms against a compiled grammar.
type Scorer struct {
	constraints []constraint.Constraint
	weights     []float64
}

// Score is one scored form.
type Score struct {
	Violations []int
	Harmony    float64
}

// #endregion grammar
