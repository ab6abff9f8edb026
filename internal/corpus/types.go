package corpus

import "errors"

// #region errors
var (
	// ErrMalformedWordFile is returned for unparseable counts, duplicate forms,
	// or training rows that follow contrast rows.
	ErrMalformedWordFile = errors.New("malformed word file")
)

// #endregion errors

// #region entry
// Entry is one attested form and its frequency.
type Entry struct {
	Form  string
	Count int
}

// #endregion entry

// #region lexicon
// Lexicon is the canonical row order for learning: training forms (count > 0)
// first, contrast forms (count 0) after. Rows are never reordered.
type Lexicon struct {
	Forms     []string
	Counts    []int
	NTraining int
}

// Len returns the number of rows.
func (l *Lexicon) Len() int { return len(l.Forms) }

// NContrast returns the number of contrast rows.
func (l *Lexicon) NContrast() int { return len(l.Forms) - l.NTraining }

// IsTraining reports whether row i is a training row.
func (l *Lexicon) IsTraining(i int) bool { return i < l.NTraining }

// Total returns the summed training counts.
func (l *Lexicon) Total() int {
	total := 0
	for _, c := range l.Counts {
		total += c
	}
	return total
}

// Words returns every form split into segments.
func (l *Lexicon) Words() [][]string {
	out := make([][]string, len(l.Forms))
	for i, f := range l.Forms {
		out[i] = Split(f)
	}
	return out
}

// FloatCounts returns the counts as float64 for the optimizer.
func (l *Lexicon) FloatCounts() []float64 {
	out := make([]float64, len(l.Counts))
	for i, c := range l.Counts {
		out[i] = float64(c)
	}
	return out
}

// #endregion lexicon

// #region contrast-options
// ContrastOptions controls sampling of the contrast set.
type ContrastOptions struct {
	Keep float64 // probability of keeping each unattested neighbour
	Seed int64
}

// DefaultContrastOptions keeps half of the neighbours.
func DefaultContrastOptions() ContrastOptions {
	return ContrastOptions{Keep: 0.5, Seed: 1}
}

// #endregion contrast-options
