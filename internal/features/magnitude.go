package features

import (
	"math"
	"strings"

	"github.com/banshee-data/motion.report/internal/table"
)

var axes = [3]string{"_x", "_y", "_z"}

// MagnitudeColumn names the magnitude channel of a sensor.
func MagnitudeColumn(sensor string) string { return sensor + "_r" }

// DetectSensors returns every sensor prefix with complete x/y/z Float
// channels, in column order.
func DetectSensors(t *table.Table) []string {
	var sensors []string
	seen := map[string]bool{}
	for _, name := range t.FloatColumns() {
		if !strings.HasSuffix(name, axes[0]) {
			continue
		}
		sensor := strings.TrimSuffix(name, axes[0])
		if seen[sensor] {
			continue
		}
		complete := true
		for _, ax := range axes[1:] {
			if k, err := t.Kind(sensor + ax); err != nil || k != table.Float {
				complete = false
			}
		}
		if complete {
			seen[sensor] = true
			sensors = append(sensors, sensor)
		}
	}
	return sensors
}

// Magnitude appends <sensor>_r = sqrt(x²+y²+z²) for each sensor. The stage
// is row-local.
func Magnitude(t *table.Table, sensors []string) (*table.Table, error) {
	out := t
	for _, s := range sensors {
		cols, err := floatColumns(t, []string{s + axes[0], s + axes[1], s + axes[2]})
		if err != nil {
			return nil, err
		}
		r := make([]float64, t.Len())
		for i := range r {
			x, y, z := cols[0][i], cols[1][i], cols[2][i]
			r[i] = math.Sqrt(x*x + y*y + z*z)
		}
		if out, err = out.WithFloat(MagnitudeColumn(s), r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
