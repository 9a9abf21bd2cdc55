package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/features"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/table"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// StageTiming records one executed stage.
type StageTiming struct {
	Name    string
	Elapsed time.Duration
	Rows    int
	Columns int
}

// Report summarizes one run. Notices may arrive concurrently from segment
// workers.
type Report struct {
	mu       sync.Mutex
	notices  []*features.DataSufficiencyError
	Stages   []StageTiming
	PCARatio []float64 // variance ratio of every component, descending
	Inertia  float64   // k-means inertia, 0 when clustering did not run
}

func (r *Report) addNotice(e *features.DataSufficiencyError) {
	monitoring.Logf("warning: %v", e)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, e)
}

// Notices returns the data-sufficiency notices raised during the run.
func (r *Report) Notices() []*features.DataSufficiencyError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*features.DataSufficiencyError(nil), r.notices...)
}

func (r *Report) setPCA(ratio []float64) { r.PCARatio = append([]float64(nil), ratio...) }
func (r *Report) setInertia(v float64)   { r.Inertia = v }

// Pipeline runs the configured stages in order.
type Pipeline struct {
	cfg   *config.PipelineConfig
	clock timeutil.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for stage timings.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New validates cfg and returns a Pipeline.
func New(cfg *config.PipelineConfig, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, clock: timeutil.RealClock{}}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StageNames lists the stages Run executes, in order.
func (p *Pipeline) StageNames() []string {
	stages := buildStages(p.cfg, &Report{})
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every stage and returns the feature table. The context is
// checked between stages.
func (p *Pipeline) Run(ctx context.Context, in *table.Table) (*table.Table, *Report, error) {
	return p.run(ctx, in, "")
}

// RunUntil executes the stages that precede stop, for diagnostics that
// inspect intermediate tables.
func (p *Pipeline) RunUntil(ctx context.Context, in *table.Table, stop string) (*table.Table, *Report, error) {
	found := false
	for _, n := range p.StageNames() {
		if n == stop {
			found = true
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("unknown stage %q", stop)
	}
	return p.run(ctx, in, stop)
}

func (p *Pipeline) run(ctx context.Context, in *table.Table, stop string) (*table.Table, *Report, error) {
	rep := &Report{}
	t := in
	for _, s := range buildStages(p.cfg, rep) {
		if s.Name() == stop {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, rep, err
		}
		done := monitoring.Timed(s.Name())
		start := p.clock.Now()
		out, err := s.Apply(ctx, t)
		if err != nil {
			return nil, rep, fmt.Errorf("%s: %w", s.Name(), err)
		}
		t = out
		rep.Stages = append(rep.Stages, StageTiming{
			Name:    s.Name(),
			Elapsed: p.clock.Since(start),
			Rows:    t.Len(),
			Columns: len(t.Columns()),
		})
		done()
	}
	return t, rep, nil
}

// Diagnostics supports choosing the PCA component count and cluster k.
type Diagnostics struct {
	PCARatio     []float64
	InertiaCurve []features.InertiaPoint
	Rows         int
}

// Diagnose runs every stage before clustering, then fits one k-means model
// per k in ks on the reduced table.
func (p *Pipeline) Diagnose(ctx context.Context, in *table.Table, ks []int) (*Diagnostics, error) {
	reduced, rep, err := p.run(ctx, in, StageCluster)
	if err != nil {
		return nil, err
	}
	curve, err := p.cfg.KMeans().InertiaCurve(reduced, p.cfg.GetClusterColumns(), ks)
	if err != nil {
		return nil, fmt.Errorf("inertia curve: %w", err)
	}
	return &Diagnostics{PCARatio: rep.PCARatio, InertiaCurve: curve, Rows: reduced.Len()}, nil
}
