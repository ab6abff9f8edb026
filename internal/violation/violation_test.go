package violation

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/phoment/internal/constraint"
	"github.com/danielpatrickdp/phoment/internal/corpus"
)

// #region helpers
// tableConstraint returns a fixed count per form.
type tableConstraint struct {
	name   string
	counts map[string]int
}

func (c tableConstraint) String() string { return c.name }

func (c tableConstraint) Violations(word []string) int {
	return c.counts[strings.Join(word, " ")]
}

func scenarioLexicon() *corpus.Lexicon {
	return &corpus.Lexicon{
		Forms:     []string{"p a", "t a", "a a"},
		Counts:    []int{5, 3, 0},
		NTraining: 2,
	}
}

// #endregion helpers

// #region evaluate-tests
func TestEvaluateScenario(t *testing.T) {
	lex := scenarioLexicon()
	cons := []constraint.Constraint{
		tableConstraint{name: "contrast-only", counts: map[string]int{"a a": 2}},
		tableConstraint{name: "everywhere", counts: map[string]int{"p a": 1, "t a": 1, "a a": 1}},
		tableConstraint{name: "training-only", counts: map[string]int{"p a": 1}},
		tableConstraint{name: "never"},
	}

	b := NewBuilder(lex.Len(), len(cons))
	var done []int
	res, err := Evaluate(lex, cons, b, func(n int) { done = append(done, n) })
	require.NoError(t, err)

	assert.InDelta(t, 2.0, res.Discriminativity[0], 1e-12)
	assert.InDelta(t, 0.0, res.Discriminativity[1], 1e-12)
	assert.InDelta(t, -0.5, res.Discriminativity[2], 1e-12)
	assert.InDelta(t, 0.0, res.Discriminativity[3], 1e-12)
	assert.Equal(t, 5, res.NonZero)
	assert.Equal(t, []int{1, 2, 3, 4}, done)

	m := b.Build()
	assert.Equal(t, 2, m.At(2, 0))
	assert.Equal(t, 0, m.At(0, 0))
	assert.Equal(t, 1, m.At(1, 1))
	assert.Equal(t, 5, m.NNZ())
}

func TestEvaluateNeedsBothSets(t *testing.T) {
	cons := []constraint.Constraint{tableConstraint{name: "c"}}

	_, err := Evaluate(&corpus.Lexicon{Forms: []string{"a"}, Counts: []int{0}}, cons, NewBuilder(1, 1), nil)
	assert.ErrorIs(t, err, ErrNoTrainingRows)

	_, err = Evaluate(&corpus.Lexicon{Forms: []string{"a"}, Counts: []int{1}, NTraining: 1}, cons, NewBuilder(1, 1), nil)
	assert.ErrorIs(t, err, ErrNoContrastRows)
}

func TestScoreTriplesMatchesEvaluate(t *testing.T) {
	lex := scenarioLexicon()
	cons := []constraint.Constraint{
		tableConstraint{name: "a", counts: map[string]int{"a a": 2, "p a": 1}},
		tableConstraint{name: "b", counts: map[string]int{"t a": 4}},
		tableConstraint{name: "c"},
	}

	var buf bytes.Buffer
	tw := NewTripleWriter(&buf)
	res, err := Evaluate(lex, cons, tw, nil)
	require.NoError(t, err)
	require.NoError(t, tw.Flush())
	assert.Equal(t, 3, tw.Count())
	assert.Equal(t, "0\t0\t1\n2\t0\t2\n1\t1\t4\n", buf.String())

	scores, err := ScoreTriples(strings.NewReader(buf.String()), lex, len(cons))
	require.NoError(t, err)
	assert.InDeltaSlice(t, res.Discriminativity, scores, 1e-12)
}

func TestScoreTriplesOutOfRange(t *testing.T) {
	_, err := ScoreTriples(strings.NewReader("9\t0\t1\n"), scenarioLexicon(), 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

// #endregion evaluate-tests

// #region matrix-tests
func TestBuilderSumsDuplicates(t *testing.T) {
	b := NewBuilder(3, 2)
	require.NoError(t, b.Add(1, 1, 2))
	require.NoError(t, b.Add(0, 0, 1))
	require.NoError(t, b.Add(1, 1, 3))
	require.NoError(t, b.Add(2, 0, 0))
	assert.Equal(t, 3, b.Len())

	m := b.Build()
	rows, cols := m.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 5, m.At(1, 1))
	assert.Equal(t, 1, m.At(0, 0))
	assert.Equal(t, 2, m.NNZ())

	c, v := m.Row(2)
	assert.Empty(t, c)
	assert.Empty(t, v)

	assert.ErrorIs(t, b.Add(3, 0, 1), ErrOutOfRange)
	assert.ErrorIs(t, b.Add(0, 2, 1), ErrOutOfRange)
}

func TestMatrixProducts(t *testing.T) {
	b := NewBuilder(2, 3)
	require.NoError(t, b.Add(0, 0, 1))
	require.NoError(t, b.Add(0, 2, 2))
	require.NoError(t, b.Add(1, 1, 3))
	m := b.Build()

	h := make([]float64, 2)
	m.MulVec(h, []float64{1, 10, 100})
	assert.Equal(t, []float64{201, 30}, h)

	s := make([]float64, 3)
	m.TMulVec(s, []float64{2, 1})
	assert.Equal(t, []float64{2, 3, 4}, s)
}

func TestLoadMatrixProjectsColumns(t *testing.T) {
	triples := "0\t5\t1\n1\t2\t3\n1\t5\t2\n0\t7\t9\n"
	m, err := LoadMatrix(strings.NewReader(triples), 2, map[int]int{5: 0, 2: 1})
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 1, m.At(0, 0))
	assert.Equal(t, 2, m.At(1, 0))
	assert.Equal(t, 3, m.At(1, 1))
	assert.Equal(t, 3, m.NNZ())
}

func TestReadTriplesMalformed(t *testing.T) {
	noop := func(Triple) error { return nil }
	assert.ErrorIs(t, ReadTriples(strings.NewReader("1\t2\n"), noop), ErrMalformedTriple)
	assert.ErrorIs(t, ReadTriples(strings.NewReader("1\tx\t2\n"), noop), ErrMalformedTriple)
	assert.ErrorIs(t, ReadTriples(strings.NewReader("1\t-1\t2\n"), noop), ErrMalformedTriple)
}

// #endregion matrix-tests

// #region discrim-io-tests
func TestDiscriminativityRoundTrip(t *testing.T) {
	cons := []string{"Ngram:a", "Ngram:[+syl]", "Ngram:^[-syl]"}
	scores := []float64{0.125, -1.0 / 3.0, 2}

	var buf bytes.Buffer
	require.NoError(t, WriteDiscriminativity(&buf, cons, scores))

	got, err := ReadDiscriminativity(&buf, cons)
	require.NoError(t, err)
	assert.Equal(t, scores, got)
}

func TestReadDiscriminativityMissingAndUnknown(t *testing.T) {
	cons := []string{"Ngram:a", "Ngram:b"}
	got, err := ReadDiscriminativity(strings.NewReader("Ngram:b\t0.5\n"), cons)
	require.NoError(t, err)
	assert.True(t, math.IsInf(got[0], -1))
	assert.Equal(t, 0.5, got[1])

	_, err = ReadDiscriminativity(strings.NewReader("Ngram:c\t0.5\n"), cons)
	assert.ErrorIs(t, err, ErrUnknownConstraint)

	_, err = ReadDiscriminativity(strings.NewReader("Ngram:a\tnope\n"), cons)
	assert.ErrorIs(t, err, ErrMalformedScore)
}

// #endregion discrim-io-tests
