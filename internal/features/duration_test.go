package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/table"
)

func durationTable(t *testing.T) *table.Table {
	t.Helper()
	tb := table.New(table.DefaultIndexName, []int64{1000, 2000, 3999, 10000, 20000})
	tb, err := tb.WithInt(table.SetColumn, []int64{1, 1, 1, 2, 3})
	require.NoError(t, err)
	tb, err = tb.WithString(table.CategoryColumn, []string{"walk", "walk", "walk", "walk", "run"})
	require.NoError(t, err)
	return tb
}

func TestDuration(t *testing.T) {
	out, err := Duration(durationTable(t))
	require.NoError(t, err)
	// 2999 ms truncates to 2 s; single-row sets last 0 s.
	assert.Equal(t, []float64{2, 2, 2, 0, 0}, mustFloat(t, out, DurationColumn))
}

func TestDuration_RequiresSet(t *testing.T) {
	tb := table.New("", []int64{1, 2})
	_, err := Duration(tb)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestMeanDurationBy(t *testing.T) {
	got, err := MeanDurationBy(durationTable(t), table.CategoryColumn)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got["walk"], 1e-12)
	assert.Equal(t, 0.0, got["run"])
}

func TestInterpolate(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 6), map[string][]float64{
		"x": {nan, 1, nan, nan, 4, nan},
		"y": {1, 2, 3, 4, 5, 6},
	})
	out, err := Interpolate(tb, []string{"x", "y"})
	require.NoError(t, err)

	x := mustFloat(t, out, "x")
	assert.True(t, math.IsNaN(x[0]))
	assert.Equal(t, []float64{1, 2, 3, 4, 4}, x[1:])
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, mustFloat(t, out, "y"))
	assert.True(t, math.IsNaN(mustFloat(t, tb, "x")[2]))
}
