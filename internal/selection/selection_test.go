package selection

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cons   = []string{"Ngram:a", "Ngram:b", "Ngram:c", "Ngram:d", "Ngram:e"}
	scores = []float64{0.5, 2, -1, 0.5, math.Inf(-1)}
)

func TestSelectOrdersAndFilters(t *testing.T) {
	got, err := Select(cons, scores, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ngram:b", "Ngram:a", "Ngram:d"}, Strings(got))
	assert.Equal(t, []float64{2, 0.5, 0.5}, Scores(got))
	for c, r := range got {
		assert.Equal(t, c, r.Column)
		assert.True(t, r.Active)
	}
	assert.Equal(t, map[int]int{1: 0, 0: 1, 3: 2}, ColumnMap(got))
}

func TestSelectThresholdAndLimit(t *testing.T) {
	got, err := Select(cons, scores, Options{Threshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ngram:b"}, Strings(got))

	got, err = Select(cons, scores, Options{Threshold: -5, MaxConstraints: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ngram:b", "Ngram:a"}, Strings(got))
}

func TestSelectLengthMismatch(t *testing.T) {
	_, err := Select(cons, scores[:2], DefaultOptions())
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestAllMarksActive(t *testing.T) {
	active, err := Select(cons, scores, Options{MaxConstraints: 1})
	require.NoError(t, err)

	all := All(cons, scores, active)
	require.Len(t, all, len(cons))
	assert.True(t, all[1].Active)
	assert.Equal(t, 0, all[1].Column)
	assert.False(t, all[0].Active)
	assert.Equal(t, -1, all[0].Column)
}

func TestWriteActive(t *testing.T) {
	active, err := Select(cons, scores, DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteActive(&buf, All(cons, scores, active)))
	// original order, inactive rows skipped
	assert.Equal(t, "Ngram:a\t0.5\nNgram:b\t2\nNgram:d\t0.5\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteActive(&buf, active))
	assert.Equal(t, "Ngram:b\t2\nNgram:a\t0.5\nNgram:d\t0.5\n", buf.String())
}
