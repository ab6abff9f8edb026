package violation

import (
	"fmt"
	"sort"
)

// #region builder
// Builder accumulates triples for a sparse matrix of fixed shape. Duplicate
// (row, col) entries are summed by Build.
type Builder struct {
	rows, cols int
	triples    []Triple
}

// NewBuilder creates a builder for a rows x cols matrix.
func NewBuilder(rows, cols int) *Builder {
	return &Builder{rows: rows, cols: cols}
}

// Add inserts one triple.
func (b *Builder) Add(row, col, count int) error {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return fmt.Errorf("%w: (%d, %d) in %dx%d matrix", ErrOutOfRange, row, col, b.rows, b.cols)
	}
	if count == 0 {
		return nil
	}
	b.triples = append(b.triples, Triple{Row: row, Col: col, Count: count})
	return nil
}

// WriteTriple implements Sink.
func (b *Builder) WriteTriple(t Triple) error {
	return b.Add(t.Row, t.Col, t.Count)
}

// Len returns the number of triples added so far.
func (b *Builder) Len() int { return len(b.triples) }

// Build returns the CSR matrix equal to the sum of all added triples.
func (b *Builder) Build() *Matrix {
	ts := append([]Triple(nil), b.triples...)
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Row != ts[j].Row {
			return ts[i].Row < ts[j].Row
		}
		return ts[i].Col < ts[j].Col
	})

	m := &Matrix{rows: b.rows, cols: b.cols, indptr: make([]int, b.rows+1)}
	for i := 0; i < len(ts); {
		t := ts[i]
		sum := 0
		for i < len(ts) && ts[i].Row == t.Row && ts[i].Col == t.Col {
			sum += ts[i].Count
			i++
		}
		if sum == 0 {
			continue
		}
		m.indices = append(m.indices, t.Col)
		m.data = append(m.data, sum)
		m.indptr[t.Row+1]++
	}
	for r := 0; r < b.rows; r++ {
		m.indptr[r+1] += m.indptr[r]
	}
	return m
}

// #endregion builder

// #region matrix
// Matrix is an immutable compressed-sparse-row integer matrix.
type Matrix struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []int
}

// Dims returns the matrix shape.
func (m *Matrix) Dims() (rows, cols int) { return m.rows, m.cols }

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int { return len(m.data) }

// Row returns the column indices and values of row i. The slices alias the
// matrix storage and must not be modified.
func (m *Matrix) Row(i int) (cols []int, vals []int) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// At returns entry (i, j).
func (m *Matrix) At(i, j int) int {
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// MulVec stores M·x in dst, which must have length rows.
func (m *Matrix) MulVec(dst, x []float64) {
	for i := 0; i < m.rows; i++ {
		var s float64
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			s += float64(m.data[k]) * x[m.indices[k]]
		}
		dst[i] = s
	}
}

// TMulVec stores Mᵀ·y in dst, which must have length cols.
func (m *Matrix) TMulVec(dst, y []float64) {
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < m.rows; i++ {
		if y[i] == 0 {
			continue
		}
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			dst[m.indices[k]] += float64(m.data[k]) * y[i]
		}
	}
}

// #endregion matrix
