package violation

import "errors"

// #region errors
var (
	// ErrNoTrainingRows is returned when discriminativity would divide by a
	// training set of size zero.
	ErrNoTrainingRows = errors.New("no training rows")

	// ErrNoContrastRows is returned when discriminativity would divide by a
	// contrast set of size zero.
	ErrNoContrastRows = errors.New("no contrast rows")

	// ErrMalformedTriple is returned for unparseable violation triples.
	ErrMalformedTriple = errors.New("malformed violation triple")

	// ErrMalformedScore is returned for unparseable discriminativity lines.
	ErrMalformedScore = errors.New("malformed discriminativity score")

	// ErrOutOfRange is returned for triples outside the matrix shape.
	ErrOutOfRange = errors.New("index out of range")

	// ErrUnknownConstraint is returned when a discriminativity file names a
	// constraint that is not in the current constraint list.
	ErrUnknownConstraint = errors.New("unknown constraint")
)

// #endregion errors

// #region triple
// Triple is one nonzero violation count in COO form.
type Triple struct {
	Row   int
	Col   int
	Count int
}

// Sink receives triples as they are produced.
type Sink interface {
	WriteTriple(Triple) error
}

// #endregion triple

// #region result
// Result summarises a violation evaluation.
type Result struct {
	Discriminativity []float64 // one score per constraint, in input order
	NonZero          int       // number of triples emitted
}

// #endregion result
