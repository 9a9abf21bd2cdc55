package features

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/table"
)

func workerLimit(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}

// notify delivers a sufficiency notice. Sinks may be called concurrently
// from segment workers.
func notify(sink NoticeSink, e *DataSufficiencyError) {
	if sink == nil {
		monitoring.Logf("warning: %v", e)
		return
	}
	sink(e)
}

// segmentFunc computes the fragment for one segment. sub holds only that
// segment's rows and is owned by the call.
type segmentFunc func(seg table.Segment, sub *table.Table) (*table.Table, error)

// perSegment maps fn over every set of t and concatenates the fragments in
// order of first appearance. At most workers segments run at once.
func perSegment(t *table.Table, workers int, fn segmentFunc) (*table.Table, error) {
	if err := requireColumn(t, table.SetColumn, table.Int); err != nil {
		return nil, err
	}
	segs, err := t.Segments(table.SetColumn)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return fn(table.Segment{}, t)
	}

	parts := make([]*table.Table, len(segs))
	var g errgroup.Group
	g.SetLimit(workerLimit(workers))
	for i, seg := range segs {
		i, seg := i, seg
		g.Go(func() error {
			out, err := fn(seg, t.Take(seg.Rows))
			if err != nil {
				return fmt.Errorf("set %d: %w", seg.ID, err)
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return table.Concat(parts...)
}

// nanSlice returns n NaN values.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}
