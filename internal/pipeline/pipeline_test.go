package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/features"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/table"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

var channels = []string{"acc_x", "acc_y", "acc_z", "gyr_x", "gyr_y", "gyr_z"}

func quiet(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

func intPtr(v int) *int { return &v }

// recording builds sets sampled at 5 Hz, each channel a sine at its own
// frequency and phase.
func recording(t *testing.T, sizes ...int) *table.Table {
	t.Helper()
	var index, sets []int64
	for s, n := range sizes {
		for i := 0; i < n; i++ {
			index = append(index, int64(len(index))*200)
			sets = append(sets, int64(s+1))
		}
	}
	tb, err := table.New(table.DefaultIndexName, index).WithInt(table.SetColumn, sets)
	require.NoError(t, err)

	for c, name := range channels {
		freq := 0.3 + 0.15*float64(c)
		vals := make([]float64, len(index))
		for i := range vals {
			secs := float64(index[i]) / 1000
			vals[i] = math.Sin(2*math.Pi*freq*secs+float64(c)) + 0.1*float64(sets[i])
		}
		tb, err = tb.WithFloat(name, vals)
		require.NoError(t, err)
	}
	labels := make([]string, len(index))
	for i := range labels {
		labels[i] = "bench"
	}
	tb, err = tb.WithString(table.LabelColumn, labels)
	require.NoError(t, err)
	return tb
}

func testConfig() *config.PipelineConfig {
	cfg := config.EmptyPipelineConfig()
	cfg.TemporalWindow = intPtr(5)
	cfg.FrequencyWindow = intPtr(5)
	cfg.ClusterK = intPtr(3)
	cfg.Workers = intPtr(2)
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ClusterK = intPtr(1)
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, features.ErrConfiguration))

	var ce *features.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cluster_k", ce.Param)
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		StageInterpolate, StageDuration, StageLowPass, StagePCA, StageMagnitude,
		StageTemporal, StageFrequency, StageOverlap, StageCluster, StageExport,
	}, p.StageNames())
}

func TestStageNames_NoInterpolate(t *testing.T) {
	cfg := testConfig()
	off := false
	cfg.Interpolate = &off
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, StageDuration, p.StageNames()[0])
}

func TestSensorsOf(t *testing.T) {
	assert.Equal(t, []string{"acc", "gyr"}, sensorsOf(channels))
	assert.Empty(t, sensorsOf([]string{"acc_x", "acc_y", "gyr_x"}))
}

func TestRun(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)

	out, rep, err := p.Run(context.Background(), recording(t, 20, 20))
	require.NoError(t, err)

	// 16 complete rows per set after the 5-sample warm-up, then every second.
	assert.Equal(t, 16, out.Len())
	assert.Len(t, out.CompleteRows(), out.Len())

	for _, col := range []string{
		"pca_1", "pca_3", "acc_r", "gyr_r",
		features.TemporalColumn("acc_r", features.AggMean, 5),
		features.TemporalColumn("gyr_z", features.AggStd, 5),
		features.PSEColumn("acc_x"),
		features.ClusterColumn,
		table.LabelColumn,
	} {
		assert.True(t, out.Has(col), "missing %s", col)
	}
	assert.False(t, out.Has("pca_4"))
	assert.False(t, out.Has(features.DurationColumn))

	clusters, err := out.Int(features.ClusterColumn)
	require.NoError(t, err)
	for _, c := range clusters {
		assert.True(t, c >= 0 && c < 3, "cluster %d out of range", c)
	}

	assert.Len(t, rep.PCARatio, len(channels))
	assert.Greater(t, rep.Inertia, 0.0)
	assert.Empty(t, rep.Notices())
	require.Len(t, rep.Stages, len(p.StageNames()))
	assert.Equal(t, StageExport, rep.Stages[len(rep.Stages)-1].Name)
	assert.Equal(t, 40, rep.Stages[0].Rows)
	assert.Equal(t, 16, rep.Stages[len(rep.Stages)-1].Rows)
}

func TestRun_Deterministic(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)
	in := recording(t, 20, 20)

	a, _, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	b, _, err := p.Run(context.Background(), in)
	require.NoError(t, err)

	ca, _ := a.Int(features.ClusterColumn)
	cb, _ := b.Int(features.ClusterColumn)
	assert.Equal(t, ca, cb)
}

func TestRun_ShortSetNotices(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)

	out, rep, err := p.Run(context.Background(), recording(t, 20, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 16, out.Len())

	notices := rep.Notices()
	require.Len(t, notices, 2)
	stages := map[string]bool{}
	for _, n := range notices {
		assert.Equal(t, int64(2), n.Set)
		assert.Equal(t, 3, n.Rows)
		stages[n.Stage] = true
	}
	assert.Equal(t, map[string]bool{"temporal": true, "frequency": true}, stages)
}

func TestRun_StageTimings(t *testing.T) {
	quiet(t)
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.AutoStep(time.Second)
	p, err := New(testConfig(), WithClock(clock))
	require.NoError(t, err)

	_, rep, err := p.Run(context.Background(), recording(t, 20, 20))
	require.NoError(t, err)
	for _, st := range rep.Stages {
		assert.Equal(t, time.Second, st.Elapsed, st.Name)
	}
}

func TestRun_Cancelled(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.Run(ctx, recording(t, 20, 20))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_MissingChannel(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)

	_, _, err = p.Run(context.Background(), recording(t, 20, 20).Drop("gyr_z"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, features.ErrSchema))
	assert.Contains(t, err.Error(), StageInterpolate+":")
}

func TestRun_TooFewRowsToCluster(t *testing.T) {
	quiet(t)
	cfg := testConfig()
	cfg.ClusterK = intPtr(20)
	p, err := New(cfg)
	require.NoError(t, err)

	_, _, err = p.Run(context.Background(), recording(t, 20, 20))
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageCluster+":")
	assert.True(t, errors.Is(err, features.ErrConfiguration))
}

func TestRunUntil(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)

	out, rep, err := p.RunUntil(context.Background(), recording(t, 20, 20), StageOverlap)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Len())
	assert.True(t, out.Has(features.DurationColumn))
	assert.False(t, out.Has(features.ClusterColumn))
	assert.Equal(t, StageFrequency, rep.Stages[len(rep.Stages)-1].Name)

	_, _, err = p.RunUntil(context.Background(), recording(t, 20), "plot")
	assert.ErrorContains(t, err, `unknown stage "plot"`)
}

func TestDiagnose(t *testing.T) {
	quiet(t)
	p, err := New(testConfig())
	require.NoError(t, err)

	d, err := p.Diagnose(context.Background(), recording(t, 20, 20), []int{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 16, d.Rows)
	assert.Len(t, d.PCARatio, len(channels))
	require.Len(t, d.InertiaCurve, 3)
	for i, pt := range d.InertiaCurve {
		assert.Equal(t, i+2, pt.K)
	}
	assert.GreaterOrEqual(t, d.InertiaCurve[0].Inertia, d.InertiaCurve[2].Inertia)

	_, err = p.Diagnose(context.Background(), recording(t, 20, 20), []int{20})
	assert.Error(t, err)
}

// TestRun_ConstantAndRampSets checks that rows keep their labels and that
// every set loses its own warm-up rows.
func TestRun_ConstantAndRampSets(t *testing.T) {
	quiet(t)
	const n, window = 20, 5
	var index, sets []int64
	var labels []string
	acc := map[string][]float64{}
	for s := 1; s <= 2; s++ {
		for i := 0; i < n; i++ {
			index = append(index, int64(len(index))*200)
			sets = append(sets, int64(s))
			v := 1.0
			label := "A"
			if s == 2 {
				v, label = float64(i), "B"
			}
			labels = append(labels, label)
			acc["acc_x"] = append(acc["acc_x"], v)
			acc["acc_y"] = append(acc["acc_y"], 2*v+1)
			acc["acc_z"] = append(acc["acc_z"], -v)
		}
	}
	in, err := table.New(table.DefaultIndexName, index).WithInt(table.SetColumn, sets)
	require.NoError(t, err)
	for _, name := range []string{"acc_x", "acc_y", "acc_z"} {
		in, err = in.WithFloat(name, acc[name])
		require.NoError(t, err)
	}
	in, err = in.WithString(table.LabelColumn, labels)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Predictors = []string{"acc_x", "acc_y", "acc_z"}
	cfg.TemporalWindow = intPtr(window)
	cfg.FrequencyWindow = intPtr(window)
	cfg.ClusterK = intPtr(2)
	p, err := New(cfg)
	require.NoError(t, err)

	out, _, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Has(features.DurationColumn))
	assert.Equal(t, (n-window+1)*2/2, out.Len())

	pos := make(map[int64]int, len(index))
	for i, ts := range index {
		pos[ts] = i
	}
	gotLabels, err := out.Strings(table.LabelColumn)
	require.NoError(t, err)
	gotSets, err := out.Int(table.SetColumn)
	require.NoError(t, err)

	perSet := map[int64]int{}
	for r, ts := range out.Index() {
		i, ok := pos[ts]
		require.True(t, ok, "unknown timestamp %d", ts)
		assert.Equal(t, labels[i], gotLabels[r], "label at %d", ts)
		assert.Equal(t, sets[i], gotSets[r], "set at %d", ts)
		assert.GreaterOrEqual(t, i%n, window-1, "warm-up row %d of set %d survived", i%n, sets[i])
		perSet[gotSets[r]]++
	}
	assert.Equal(t, map[int64]int{1: 8, 2: 8}, perSet)
}
