package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/table"
)

func TestSchemaError_WrapsLookup(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 2), map[string][]float64{"x": {1, 2}})
	_, err := floatColumns(tb, []string{"missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.True(t, errors.Is(err, table.ErrNoColumn))
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRequireColumn_Kind(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 2), map[string][]float64{"x": {1, 2}})
	assert.NoError(t, requireColumn(tb, table.SetColumn, table.Int))
	err := requireColumn(tb, "x", table.Int)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected int column")
}

func TestDataSufficiencyError_Message(t *testing.T) {
	e := &DataSufficiencyError{Stage: "temporal", Set: 3, Rows: 2, Window: 5}
	assert.Equal(t, "temporal: set 3 has 2 rows, fewer than window 5; derived values left undefined", e.Error())
}

func TestNotify_NilSinkLogs(t *testing.T) {
	prev := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = prev })
	var logged []string
	monitoring.SetLogger(func(format string, args ...interface{}) {
		logged = append(logged, format)
	})

	notify(nil, &DataSufficiencyError{Stage: "frequency", Set: 1, Rows: 1, Window: 14})
	require.Len(t, logged, 1)
	assert.Equal(t, "warning: %v", logged[0])
}

func TestPerSegment_PropagatesErrors(t *testing.T) {
	sets := append(repeatSet(1, 2), repeatSet(2, 2)...)
	tb := buildTable(t, sets, map[string][]float64{"x": {1, 2, 3, 4}})

	boom := errors.New("boom")
	_, err := perSegment(tb, 2, func(seg table.Segment, sub *table.Table) (*table.Table, error) {
		if seg.ID == 2 {
			return nil, boom
		}
		return sub, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "set 2")
}

func TestPerSegment_PreservesFirstAppearanceOrder(t *testing.T) {
	sets := []int64{5, 5, 1, 1, 3}
	tb := buildTable(t, sets, map[string][]float64{"x": {0, 1, 2, 3, 4}})

	out, err := perSegment(tb, 0, func(_ table.Segment, sub *table.Table) (*table.Table, error) {
		return sub, nil
	})
	require.NoError(t, err)
	assert.Equal(t, tb.Index(), out.Index())
	got, err := out.Int(table.SetColumn)
	require.NoError(t, err)
	assert.Equal(t, sets, got)
}
