package grammar

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/phoment/internal/constraint"
	"github.com/danielpatrickdp/phoment/internal/features"
)

// #region helpers
const table = `	syl cons nasal
p	-+-
t	-+-
m	-++
a	+-0
i	+-0
`

func registry(t *testing.T) *constraint.Registry {
	t.Helper()
	fs, err := features.Read(strings.NewReader(table))
	require.NoError(t, err)
	return constraint.NewRegistry(fs, log.New(io.Discard, "", 0))
}

var testForms = []string{"p a", "m a m a", "a t i", "t"}

// #endregion helpers

func TestNewLengthMismatch(t *testing.T) {
	_, err := New([]string{"Ngram:a"}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSaveLoadReproducesScores(t *testing.T) {
	g, err := New(
		[]string{"Ngram:[+nasal]", "Ngram:^[+syl]", "Ngram:[-syl]$"},
		[]float64{-1.0 / 3.0, -2.718281828459045, -0.1},
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "grammar.txt")
	require.NoError(t, g.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, g, loaded)

	reg := registry(t)
	before, err := g.Compile(reg)
	require.NoError(t, err)
	after, err := loaded.Compile(reg)
	require.NoError(t, err)
	for _, f := range testForms {
		assert.Equal(t, before.Score(f), after.Score(f), f)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScore(t *testing.T) {
	g, err := New([]string{"Ngram:[+nasal]", "Ngram:^[+syl]"}, []float64{-1, -2})
	require.NoError(t, err)
	s, err := g.Compile(registry(t))
	require.NoError(t, err)

	sc := s.Score("m a m a")
	assert.Equal(t, []int{2, 0}, sc.Violations)
	assert.Equal(t, -2.0, sc.Harmony)

	sc = s.Score("a t i")
	assert.Equal(t, []int{0, 1}, sc.Violations)
	assert.Equal(t, -2.0, sc.Harmony)
}

func TestWriteTestResults(t *testing.T) {
	g, err := New([]string{"Ngram:[+nasal]", "Ngram:^[+syl]"}, []float64{-1, -2.5})
	require.NoError(t, err)
	s, err := g.Compile(registry(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTestResults(&buf, s, []string{"m a", "a m"}))
	assert.Equal(t, "m a\t1\t0\t-1.000000\na m\t1\t1\t-3.500000\n", buf.String())
}

func TestReadMalformed(t *testing.T) {
	_, err := Read(strings.NewReader("Ngram:a\n"))
	assert.ErrorIs(t, err, ErrMalformedGrammar)
	_, err = Read(strings.NewReader("Ngram:a\tx\n"))
	assert.ErrorIs(t, err, ErrMalformedGrammar)
}

func TestCompileMalformedConstraint(t *testing.T) {
	g, err := New([]string{"Ngram:[+bogus]"}, []float64{-1})
	require.NoError(t, err)
	_, err = g.Compile(registry(t))
	assert.ErrorIs(t, err, constraint.ErrMalformedConstraint)
}
