package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporalColumn(t *testing.T) {
	assert.Equal(t, "acc_x_temp_mean_ws_5", TemporalColumn("acc_x", AggMean, 5))
	assert.Equal(t, "pca_1_temp_std_ws_5", TemporalColumn("pca_1", AggStd, 5))
}

func TestTemporal_WindowBoundary(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 10), map[string][]float64{"acc_x": ramp(0, 10)})

	out, err := Temporal{Window: 5, Aggregations: []Aggregation{AggMean, AggStd}}.Apply(tb, []string{"acc_x"})
	require.NoError(t, err)

	mean := mustFloat(t, out, "acc_x_temp_mean_ws_5")
	std := mustFloat(t, out, "acc_x_temp_std_ws_5")
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(mean[i]), "row %d", i)
		assert.True(t, math.IsNaN(std[i]), "row %d", i)
	}
	for i := 4; i < 10; i++ {
		assert.InDelta(t, float64(i)-2, mean[i], 1e-12, "row %d", i)
		assert.InDelta(t, math.Sqrt2, std[i], 1e-12, "row %d", i)
	}
}

func TestTemporal_SegmentIsolation(t *testing.T) {
	sets := append(repeatSet(1, 5), repeatSet(2, 5)...)
	x := append(ramp(0, 5), ramp(100, 5)...)
	tb := buildTable(t, sets, map[string][]float64{"acc_x": x})

	out, err := Temporal{Window: 3, Aggregations: []Aggregation{AggMean}}.Apply(tb, []string{"acc_x"})
	require.NoError(t, err)

	mean := mustFloat(t, out, "acc_x_temp_mean_ws_3")
	// The first W-1 rows of the second set never see the first set.
	assert.True(t, math.IsNaN(mean[5]))
	assert.True(t, math.IsNaN(mean[6]))
	assert.InDelta(t, 101.0, mean[7], 1e-12)
	assert.InDelta(t, 3.0, mean[4], 1e-12)
	assert.Equal(t, tb.Index(), out.Index())
}

func TestTemporal_ShortSegmentNotice(t *testing.T) {
	sets := append(repeatSet(1, 10), repeatSet(2, 3)...)
	tb := buildTable(t, sets, map[string][]float64{"acc_x": ramp(0, 13)})

	var c noticeCollector
	out, err := Temporal{Window: 5, Aggregations: []Aggregation{AggMean}, Notices: c.sink}.Apply(tb, []string{"acc_x"})
	require.NoError(t, err)
	require.Equal(t, 13, out.Len())

	mean := mustFloat(t, out, "acc_x_temp_mean_ws_5")
	for i := 10; i < 13; i++ {
		assert.True(t, math.IsNaN(mean[i]))
	}
	require.Len(t, c.notices, 1)
	assert.Equal(t, int64(2), c.notices[0].Set)
	assert.Equal(t, 3, c.notices[0].Rows)
	assert.Equal(t, "temporal", c.notices[0].Stage)
}

func TestTemporal_ExtraAggregations(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 4), map[string][]float64{"x": {1, 5, 2, 8}})

	out, err := Temporal{
		Window:       4,
		Aggregations: []Aggregation{AggMin, AggMax, AggMedian, AggSlope},
	}.Apply(tb, []string{"x"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, mustFloat(t, out, "x_temp_min_ws_4")[3])
	assert.Equal(t, 8.0, mustFloat(t, out, "x_temp_max_ws_4")[3])
	assert.Equal(t, 3.5, mustFloat(t, out, "x_temp_median_ws_4")[3])
	assert.InDelta(t, 1.8, mustFloat(t, out, "x_temp_slope_ws_4")[3], 1e-9)
}

func TestTemporal_Validate(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 4), map[string][]float64{"x": {1, 2, 3, 4}})

	_, err := Temporal{Window: 0, Aggregations: []Aggregation{AggMean}}.Apply(tb, []string{"x"})
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = Temporal{Window: 3, Aggregations: []Aggregation{"variance"}}.Apply(tb, []string{"x"})
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = Temporal{Window: 1, Aggregations: []Aggregation{AggSlope}}.Apply(tb, []string{"x"})
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = Temporal{Window: 3, Aggregations: []Aggregation{AggMean}}.Apply(tb, []string{"y"})
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestTemporal_RequiresSetColumn(t *testing.T) {
	tb := buildTable(t, repeatSet(1, 4), map[string][]float64{"x": {1, 2, 3, 4}}).Drop("set")

	_, err := Temporal{Window: 2, Aggregations: []Aggregation{AggMean}}.Apply(tb, []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}
