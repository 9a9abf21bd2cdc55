package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/table"
)

// Aggregation names a rolling-window statistic.
type Aggregation string

const (
	AggMean   Aggregation = "mean"
	AggStd    Aggregation = "std"
	AggMin    Aggregation = "min"
	AggMax    Aggregation = "max"
	AggMedian Aggregation = "median"
	AggSlope  Aggregation = "slope"
)

type aggregator func(window []float64) float64

var aggregators = map[Aggregation]aggregator{
	AggMean: func(w []float64) float64 { return stat.Mean(w, nil) },
	// population standard deviation
	AggStd:    func(w []float64) float64 { return stat.PopStdDev(w, nil) },
	AggMin:    floats.Min,
	AggMax:    floats.Max,
	AggMedian: median,
	AggSlope:  slope,
}

// Aggregations lists the supported statistics.
func Aggregations() []Aggregation {
	out := make([]Aggregation, 0, len(aggregators))
	for a := range aggregators {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// median sorts a copy, so the window is left untouched.
func median(w []float64) float64 {
	m, err := stats.Median(w)
	if err != nil {
		return nan
	}
	return m
}

// slope is the least-squares slope of the window against sample position.
func slope(w []float64) float64 {
	xs := make([]float64, len(w))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, w, nil, false)
	return beta
}

// TemporalColumn names a rolling aggregate column.
func TemporalColumn(channel string, agg Aggregation, window int) string {
	return fmt.Sprintf("%s_temp_%s_ws_%d", channel, agg, window)
}

// Temporal computes trailing rolling-window statistics per segment.
type Temporal struct {
	Window       int // samples
	Aggregations []Aggregation
	Workers      int
	Notices      NoticeSink
}

// Validate checks the window size and aggregation names.
func (tp Temporal) Validate() error {
	if tp.Window < 1 {
		return configErr("temporal_window", tp.Window, "must be at least 1 sample")
	}
	if len(tp.Aggregations) == 0 {
		return configErr("temporal_aggregations", tp.Aggregations, "at least one aggregation required")
	}
	for _, a := range tp.Aggregations {
		if _, ok := aggregators[a]; !ok {
			return configErr("temporal_aggregations", a, "unknown aggregation, want one of %v", Aggregations())
		}
		if a == AggSlope && tp.Window < 2 {
			return configErr("temporal_window", tp.Window, "slope needs a window of at least 2 samples")
		}
	}
	return nil
}

// Apply appends <channel>_temp_<agg>_ws_<window> for every channel and
// aggregation. Windows are computed inside each set only, so the first
// Window-1 rows of every set are NaN.
func (tp Temporal) Apply(t *table.Table, channels []string) (*table.Table, error) {
	if err := tp.Validate(); err != nil {
		return nil, err
	}
	if _, err := floatColumns(t, channels); err != nil {
		return nil, err
	}
	return perSegment(t, tp.Workers, func(seg table.Segment, sub *table.Table) (*table.Table, error) {
		if n := sub.Len(); n > 0 && n < tp.Window {
			notify(tp.Notices, &DataSufficiencyError{Stage: "temporal", Set: seg.ID, Rows: n, Window: tp.Window})
		}
		cols, err := floatColumns(sub, channels)
		if err != nil {
			return nil, err
		}
		out := sub
		for i, ch := range channels {
			for _, agg := range tp.Aggregations {
				vals := rolling(cols[i], tp.Window, aggregators[agg])
				if out, err = out.WithFloat(TemporalColumn(ch, agg, tp.Window), vals); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	})
}

// rolling applies fn to each trailing window of w samples. Rows without a
// full window, and windows holding NaN, yield NaN.
func rolling(xs []float64, w int, fn aggregator) []float64 {
	out := nanSlice(len(xs))
	for i := w - 1; i < len(xs); i++ {
		win := xs[i-w+1 : i+1]
		if hasNaN(win) {
			continue
		}
		out[i] = fn(win)
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
