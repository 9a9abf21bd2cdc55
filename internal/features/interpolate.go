package features

import (
	"math"

	"github.com/banshee-data/motion.report/internal/table"
)

var nan = math.NaN()

// Interpolate fills missing values of each channel linearly by row
// position. Gaps between two defined values are interpolated, trailing gaps
// repeat the last defined value and leading gaps stay NaN.
func Interpolate(t *table.Table, channels []string) (*table.Table, error) {
	cols, err := floatColumns(t, channels)
	if err != nil {
		return nil, err
	}
	out := t
	for i, name := range channels {
		out, err = out.WithFloat(name, interpolateLinear(cols[i]))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func interpolateLinear(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	last := -1
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if last >= 0 && i-last > 1 {
			step := (v - out[last]) / float64(i-last)
			for j := last + 1; j < i; j++ {
				out[j] = out[last] + step*float64(j-last)
			}
		}
		last = i
	}
	if last >= 0 {
		for j := last + 1; j < len(out); j++ {
			out[j] = out[last]
		}
	}
	return out
}
