package features

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/table"
)

// buildTable creates a table sampled every 200 ms with the given set ids and
// Float columns (added in name order).
func buildTable(t *testing.T, sets []int64, cols map[string][]float64) *table.Table {
	t.Helper()
	index := make([]int64, len(sets))
	for i := range index {
		index[i] = int64(i) * 200
	}
	tb, err := table.New(table.DefaultIndexName, index).WithInt(table.SetColumn, sets)
	require.NoError(t, err)

	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tb, err = tb.WithFloat(name, cols[name])
		require.NoError(t, err)
	}
	return tb
}

func repeatSet(id int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = id
	}
	return out
}

func ramp(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

type noticeCollector struct {
	mu      sync.Mutex
	notices []*DataSufficiencyError
}

func (c *noticeCollector) sink(e *DataSufficiencyError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, e)
}

func mustFloat(t *testing.T, tb *table.Table, name string) []float64 {
	t.Helper()
	vals, err := tb.Float(name)
	require.NoError(t, err)
	return vals
}
