package features

import (
	"github.com/banshee-data/motion.report/internal/table"
)

// DefaultOverlapStride keeps every second complete row.
const DefaultOverlapStride = 2

// ReduceOverlap drops every row with a NaN in any Float column (the warm-up
// rows of the windowed stages), then keeps one row in stride, starting with
// the stride-th remaining row. With stride 2 that is exactly floor(n/2) of
// the n complete rows, and adjacent survivors were at least two rows apart.
func ReduceOverlap(t *table.Table, stride int) (*table.Table, error) {
	if stride < 1 {
		return nil, configErr("overlap_stride", stride, "must be at least 1")
	}
	complete := t.CompleteRows()
	keep := make([]int, 0, len(complete)/stride)
	for i := stride - 1; i < len(complete); i += stride {
		keep = append(keep, complete[i])
	}
	return t.Take(keep), nil
}
