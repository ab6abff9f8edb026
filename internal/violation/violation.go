package violation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/phoment/internal/constraint"
	"github.com/danielpatrickdp/phoment/internal/corpus"
)

// #region evaluate
// Evaluate counts the violations of every constraint on every lexicon row,
// emits each nonzero count to sink, and scores each constraint's
// discriminativity: mean violations per contrast row minus mean violations per
// training row. progress, if non-nil, is called after each constraint.
func Evaluate(lex *corpus.Lexicon, cons []constraint.Constraint, sink Sink, progress func(done int)) (Result, error) {
	if err := checkRows(lex); err != nil {
		return Result{}, err
	}

	words := lex.Words()
	res := Result{Discriminativity: make([]float64, len(cons))}
	for j, con := range cons {
		var trn, alt int
		for i, w := range words {
			n := con.Violations(w)
			if n == 0 {
				continue
			}
			if err := sink.WriteTriple(Triple{Row: i, Col: j, Count: n}); err != nil {
				return Result{}, fmt.Errorf("store violations of %s: %w", con, err)
			}
			res.NonZero++
			if lex.IsTraining(i) {
				trn += n
			} else {
				alt += n
			}
		}
		res.Discriminativity[j] = discriminativity(trn, alt, lex)
		if progress != nil {
			progress(j + 1)
		}
	}
	return res, nil
}

// ScoreTriples recomputes discriminativity for nCons constraints from a stored
// triples file. Constraints without any triple score 0.
func ScoreTriples(r io.Reader, lex *corpus.Lexicon, nCons int) ([]float64, error) {
	if err := checkRows(lex); err != nil {
		return nil, err
	}
	trn := make([]int, nCons)
	alt := make([]int, nCons)
	err := ReadTriples(r, func(t Triple) error {
		if t.Row >= lex.Len() || t.Col >= nCons {
			return fmt.Errorf("%w: triple (%d, %d) for %d rows, %d constraints", ErrOutOfRange, t.Row, t.Col, lex.Len(), nCons)
		}
		if lex.IsTraining(t.Row) {
			trn[t.Col] += t.Count
		} else {
			alt[t.Col] += t.Count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scores := make([]float64, nCons)
	for j := range scores {
		scores[j] = discriminativity(trn[j], alt[j], lex)
	}
	return scores, nil
}

func checkRows(lex *corpus.Lexicon) error {
	if lex.NTraining == 0 {
		return ErrNoTrainingRows
	}
	if lex.NContrast() == 0 {
		return ErrNoContrastRows
	}
	return nil
}

func discriminativity(trn, alt int, lex *corpus.Lexicon) float64 {
	return float64(alt)/float64(lex.NContrast()) - float64(trn)/float64(lex.NTraining)
}

// #endregion evaluate

// #region triple-io
// TripleWriter writes "row<TAB>col<TAB>count" lines.
type TripleWriter struct {
	w     *bufio.Writer
	count int
}

// NewTripleWriter wraps w.
func NewTripleWriter(w io.Writer) *TripleWriter {
	return &TripleWriter{w: bufio.NewWriter(w)}
}

// WriteTriple implements Sink.
func (tw *TripleWriter) WriteTriple(t Triple) error {
	if _, err := fmt.Fprintf(tw.w, "%d\t%d\t%d\n", t.Row, t.Col, t.Count); err != nil {
		return fmt.Errorf("write triple: %w", err)
	}
	tw.count++
	return nil
}

// Count returns the number of triples written.
func (tw *TripleWriter) Count() int { return tw.count }

// Flush flushes buffered output.
func (tw *TripleWriter) Flush() error { return tw.w.Flush() }

// ReadTriples streams the triples in r to fn.
func ReadTriples(r io.Reader, fn func(Triple) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return fmt.Errorf("%w: line %d: want 3 fields, got %d", ErrMalformedTriple, lineNo, len(fields))
		}
		var vals [3]int
		for k, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: line %d: %q", ErrMalformedTriple, lineNo, f)
			}
			vals[k] = n
		}
		if err := fn(Triple{Row: vals[0], Col: vals[1], Count: vals[2]}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan triples: %w", err)
	}
	return nil
}

// LoadMatrix builds the rows x len(columns) matrix of the triples in r whose
// constraint index appears in columns (constraint index -> matrix column).
func LoadMatrix(r io.Reader, rows int, columns map[int]int) (*Matrix, error) {
	b := NewBuilder(rows, len(columns))
	err := ReadTriples(r, func(t Triple) error {
		col, ok := columns[t.Col]
		if !ok {
			return nil
		}
		return b.Add(t.Row, col, t.Count)
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// #endregion triple-io

// #region discrim-io
// WriteDiscriminativity writes "constraint<TAB>score" lines.
func WriteDiscriminativity(w io.Writer, conStrs []string, scores []float64) error {
	bw := bufio.NewWriter(w)
	for j, s := range conStrs {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", s, strconv.FormatFloat(scores[j], 'g', -1, 64)); err != nil {
			return fmt.Errorf("write discriminativity: %w", err)
		}
	}
	return bw.Flush()
}

// ReadDiscriminativity reads scores for conStrs. Constraints missing from the
// file score -Inf and are never selected.
func ReadDiscriminativity(r io.Reader, conStrs []string) ([]float64, error) {
	index := make(map[string]int, len(conStrs))
	scores := make([]float64, len(conStrs))
	for j, s := range conStrs {
		index[s] = j
		scores[j] = math.Inf(-1)
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		conStr, scoreStr, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing score", ErrMalformedScore, lineNo)
		}
		j, known := index[conStr]
		if !known {
			return nil, fmt.Errorf("%w: line %d: %s", ErrUnknownConstraint, lineNo, conStr)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(scoreStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedScore, lineNo, err)
		}
		scores[j] = score
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan discriminativity: %w", err)
	}
	return scores, nil
}

// #endregion discrim-io
