package features

import (
	"github.com/banshee-data/motion.report/internal/table"
)

// DurationColumn holds the elapsed time of each row's segment.
const DurationColumn = "duration"

// Duration annotates every row with the elapsed time of its segment: last
// index minus first index, in whole seconds truncated toward zero. The index
// is epoch milliseconds.
func Duration(t *table.Table) (*table.Table, error) {
	if err := requireColumn(t, table.SetColumn, table.Int); err != nil {
		return nil, err
	}
	segs, err := t.Segments(table.SetColumn)
	if err != nil {
		return nil, err
	}
	index := t.Index()
	out := make([]float64, t.Len())
	for _, seg := range segs {
		first, last := index[seg.Rows[0]], index[seg.Rows[len(seg.Rows)-1]]
		secs := float64((last - first) / 1000)
		for _, r := range seg.Rows {
			out[r] = secs
		}
	}
	return t.WithFloat(DurationColumn, out)
}

// MeanDurationBy averages the duration column over the rows of each value
// of a String column such as category, so long sets weigh more than short
// ones.
func MeanDurationBy(t *table.Table, column string) (map[string]float64, error) {
	if err := requireColumn(t, column, table.String); err != nil {
		return nil, err
	}
	withDur, err := Duration(t)
	if err != nil {
		return nil, err
	}
	keys, _ := withDur.Strings(column)
	dur, _ := withDur.Float(DurationColumn)

	sum := map[string]float64{}
	count := map[string]int{}
	for r, k := range keys {
		sum[k] += dur[r]
		count[k]++
	}
	out := make(map[string]float64, len(sum))
	for k, s := range sum {
		out[k] = s / float64(count[k])
	}
	return out, nil
}
