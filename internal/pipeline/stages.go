package pipeline

import (
	"context"
	"strings"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/features"
	"github.com/banshee-data/motion.report/internal/table"
)

// Stage is one step of the batch.
type Stage interface {
	Name() string
	Apply(ctx context.Context, t *table.Table) (*table.Table, error)
}

// Stage names in execution order.
const (
	StageInterpolate = "interpolate"
	StageDuration    = "duration"
	StageLowPass     = "lowpass"
	StagePCA         = "pca"
	StageMagnitude   = "magnitude"
	StageTemporal    = "temporal"
	StageFrequency   = "frequency"
	StageOverlap     = "overlap"
	StageCluster     = "cluster"
	StageExport      = "export"
)

type stageFunc struct {
	name string
	fn   func(ctx context.Context, t *table.Table) (*table.Table, error)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	return s.fn(ctx, t)
}

// sensorsOf returns the prefixes whose x, y and z axes are all predictors.
func sensorsOf(predictors []string) []string {
	have := make(map[string]bool, len(predictors))
	for _, p := range predictors {
		have[p] = true
	}
	var sensors []string
	for _, p := range predictors {
		if !strings.HasSuffix(p, "_x") {
			continue
		}
		s := strings.TrimSuffix(p, "_x")
		if have[s+"_y"] && have[s+"_z"] {
			sensors = append(sensors, s)
		}
	}
	return sensors
}

// buildStages wires the configured stages. Results that outlive a stage
// (variance ratios, inertia, notices) go to rep.
func buildStages(cfg *config.PipelineConfig, rep *Report) []Stage {
	predictors := cfg.GetPredictors()
	sensors := sensorsOf(predictors)
	windowed := append([]string(nil), predictors...)
	for _, s := range sensors {
		windowed = append(windowed, features.MagnitudeColumn(s))
	}

	var stages []Stage
	if cfg.GetInterpolate() {
		stages = append(stages, stageFunc{StageInterpolate, func(_ context.Context, t *table.Table) (*table.Table, error) {
			return features.Interpolate(t, predictors)
		}})
	}

	stages = append(stages,
		stageFunc{StageDuration, func(_ context.Context, t *table.Table) (*table.Table, error) {
			return features.Duration(t)
		}},
		stageFunc{StageLowPass, func(_ context.Context, t *table.Table) (*table.Table, error) {
			return cfg.LowPass().Apply(t, predictors)
		}},
		stageFunc{StagePCA, func(_ context.Context, t *table.Table) (*table.Table, error) {
			m, err := features.FitPCA(t, predictors, cfg.GetPCAComponents())
			if err != nil {
				return nil, err
			}
			rep.setPCA(m.Ratio)
			return m.Transform(t)
		}},
		stageFunc{StageMagnitude, func(_ context.Context, t *table.Table) (*table.Table, error) {
			return features.Magnitude(t, sensors)
		}},
		stageFunc{StageTemporal, func(_ context.Context, t *table.Table) (*table.Table, error) {
			tp := cfg.Temporal()
			tp.Notices = rep.addNotice
			return tp.Apply(t, windowed)
		}},
		stageFunc{StageFrequency, func(_ context.Context, t *table.Table) (*table.Table, error) {
			f := cfg.Frequency()
			f.Notices = rep.addNotice
			return f.Apply(t, windowed)
		}},
		stageFunc{StageOverlap, func(_ context.Context, t *table.Table) (*table.Table, error) {
			return features.ReduceOverlap(t, cfg.GetOverlapStride())
		}},
		stageFunc{StageCluster, func(_ context.Context, t *table.Table) (*table.Table, error) {
			km := cfg.KMeans()
			cols := cfg.GetClusterColumns()
			m, err := km.Fit(t, cols)
			if err != nil {
				return nil, err
			}
			rep.setInertia(m.Inertia)
			labels, err := m.Predict(t)
			if err != nil {
				return nil, err
			}
			return t.WithInt(features.ClusterColumn, labels)
		}},
		stageFunc{StageExport, func(_ context.Context, t *table.Table) (*table.Table, error) {
			return t.Drop(features.DurationColumn), nil
		}},
	)
	return stages
}
