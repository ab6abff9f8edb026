package selection

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// #region select
// Select returns the active constraints ordered by descending
// discriminativity, ties broken by original index. Only scores above
// opts.Threshold survive, and at most opts.MaxConstraints are kept when it is
// positive.
func Select(conStrs []string, scores []float64, opts Options) ([]Record, error) {
	if len(conStrs) != len(scores) {
		return nil, fmt.Errorf("%w: %d constraints, %d scores", ErrLengthMismatch, len(conStrs), len(scores))
	}

	var active []Record
	for i, s := range scores {
		if s > opts.Threshold {
			active = append(active, Record{Index: i, String: conStrs[i], Discriminativity: s, Active: true})
		}
	}
	sort.SliceStable(active, func(a, b int) bool {
		if active[a].Discriminativity != active[b].Discriminativity {
			return active[a].Discriminativity > active[b].Discriminativity
		}
		return active[a].Index < active[b].Index
	})
	if opts.MaxConstraints > 0 && len(active) > opts.MaxConstraints {
		active = active[:opts.MaxConstraints]
	}
	for c := range active {
		active[c].Column = c
	}
	return active, nil
}

// All returns one record per constraint in original order, with the active
// ones marked and carrying their column.
func All(conStrs []string, scores []float64, active []Record) []Record {
	out := make([]Record, len(conStrs))
	for i, s := range conStrs {
		out[i] = Record{Index: i, String: s, Discriminativity: scores[i], Column: -1}
	}
	for _, r := range active {
		out[r.Index].Active = true
		out[r.Index].Column = r.Column
	}
	return out
}

// #endregion select

// #region accessors
// ColumnMap maps constraint index to matrix column.
func ColumnMap(records []Record) map[int]int {
	m := make(map[int]int, len(records))
	for _, r := range records {
		if r.Active {
			m[r.Index] = r.Column
		}
	}
	return m
}

// Strings returns the constraint strings in column order.
func Strings(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.String
	}
	return out
}

// Scores returns the discriminativity scores in column order.
func Scores(records []Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Discriminativity
	}
	return out
}

// #endregion accessors

// #region io
// WriteActive writes "constraint<TAB>score" for each active record, in the
// order given.
func WriteActive(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if !r.Active {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", r.String, strconv.FormatFloat(r.Discriminativity, 'g', -1, 64)); err != nil {
			return fmt.Errorf("write active constraints: %w", err)
		}
	}
	return bw.Flush()
}

// #endregion io
