package features

import (
	"errors"
	"fmt"
)

// #region errors
var (
	// ErrMalformedFeatureTable is returned for a feature table row whose value
	// count or characters do not match the header, or for a repeated segment.
	ErrMalformedFeatureTable = errors.New("malformed feature table")

	// ErrUnknownNaturalClass is returned when a segment set is not one of the
	// enumerated natural classes.
	ErrUnknownNaturalClass = errors.New("unknown natural class")

	// ErrUnknownFeature is returned when a feature descriptor names a feature
	// that is not in the table header.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrMalformedFeatspec is returned for descriptors with a bad polarity or a
	// repeated feature.
	ErrMalformedFeatspec = errors.New("malformed feature specification")
)

// LineError ties a parse failure to a 1-based line of the input.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// #endregion errors

// #region featspec
// Spec is a single (feature index, polarity) conjunct. Polarity is '+' or '-'.
type Spec struct {
	Index    int
	Polarity byte
}

// Featspec is a conjunction of feature values in strictly increasing feature
// index order. The empty Featspec denotes the whole inventory.
type Featspec []Spec

// Equal reports whether two featspecs have the same conjuncts in the same order.
func (f Featspec) Equal(other Featspec) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// #endregion featspec

// #region natural-class
// NaturalClass is a sorted set of segments together with the first featspec
// that picked it out during enumeration.
type NaturalClass struct {
	Segments []string
	Featspec Featspec
}

// #endregion natural-class
