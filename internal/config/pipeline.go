package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/motion.report/internal/features"
	"github.com/banshee-data/motion.report/internal/table"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig holds every feature-engineering parameter. Nil fields fall
// back to the defaults returned by the Get* methods, so partial files are
// safe.
type PipelineConfig struct {
	// Input
	IndexColumn *string  `json:"index_column,omitempty"`
	Predictors  []string `json:"predictors,omitempty"`
	Interpolate *bool    `json:"interpolate,omitempty"`

	// Low-pass filter
	SamplingFrequency *float64 `json:"sampling_frequency,omitempty"` // Hz
	CutoffFrequency   *float64 `json:"cutoff_frequency,omitempty"`   // Hz
	FilterOrder       *int     `json:"filter_order,omitempty"`
	ZeroPhase         *bool    `json:"zero_phase,omitempty"`

	// PCA
	PCAComponents *int `json:"pca_components,omitempty"`

	// Windowed features
	TemporalWindow       *int     `json:"temporal_window,omitempty"`
	TemporalAggregations []string `json:"temporal_aggregations,omitempty"`
	FrequencyWindow      *int     `json:"frequency_window,omitempty"`
	OverlapStride        *int     `json:"overlap_stride,omitempty"`

	// Clustering
	ClusterK         *int     `json:"cluster_k,omitempty"`
	ClusterColumns   []string `json:"cluster_columns,omitempty"`
	ClusterRestarts  *int     `json:"cluster_restarts,omitempty"`
	ClusterMaxIter   *int     `json:"cluster_max_iter,omitempty"`
	ClusterTolerance *float64 `json:"cluster_tolerance,omitempty"`
	ClusterSeed      *int64   `json:"cluster_seed,omitempty"`

	// Execution
	Workers    *int    `json:"workers,omitempty"`     // 0 means GOMAXPROCS
	RunTimeout *string `json:"run_timeout,omitempty"` // duration string like "10m"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a PipelineConfig with every field set to
// its default.
func DefaultPipelineConfig() *PipelineConfig {
	e := EmptyPipelineConfig()
	return &PipelineConfig{
		IndexColumn:          ptrString(e.GetIndexColumn()),
		Predictors:           e.GetPredictors(),
		Interpolate:          ptrBool(e.GetInterpolate()),
		SamplingFrequency:    ptrFloat64(e.GetSamplingFrequency()),
		CutoffFrequency:      ptrFloat64(e.GetCutoffFrequency()),
		FilterOrder:          ptrInt(e.GetFilterOrder()),
		ZeroPhase:            ptrBool(e.GetZeroPhase()),
		PCAComponents:        ptrInt(e.GetPCAComponents()),
		TemporalWindow:       ptrInt(e.GetTemporalWindow()),
		TemporalAggregations: e.GetTemporalAggregations(),
		FrequencyWindow:      ptrInt(e.GetFrequencyWindow()),
		OverlapStride:        ptrInt(e.GetOverlapStride()),
		ClusterK:             ptrInt(e.GetClusterK()),
		ClusterColumns:       e.GetClusterColumns(),
		ClusterRestarts:      ptrInt(e.GetClusterRestarts()),
		ClusterMaxIter:       ptrInt(e.GetClusterMaxIter()),
		ClusterTolerance:     ptrFloat64(e.GetClusterTolerance()),
		ClusterSeed:          ptrInt64(e.GetClusterSeed()),
		Workers:              ptrInt(e.GetWorkers()),
		RunTimeout:           ptrString(""),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every parameter by building the stages it configures.
// Stage errors are *features.ConfigurationError.
func (c *PipelineConfig) Validate() error {
	if err := c.LowPass().Validate(); err != nil {
		return err
	}
	if err := c.Temporal().Validate(); err != nil {
		return err
	}
	if err := c.Frequency().Validate(); err != nil {
		return err
	}
	// Row count is only known at run time.
	if err := c.KMeans().Validate(math.MaxInt); err != nil {
		return err
	}
	if n := c.GetPCAComponents(); n < 1 || n > len(c.GetPredictors()) {
		return &features.ConfigurationError{Param: "pca_components", Value: n,
			Reason: fmt.Sprintf("must be in [1, %d]", len(c.GetPredictors()))}
	}
	if s := c.GetOverlapStride(); s < 1 {
		return &features.ConfigurationError{Param: "overlap_stride", Value: s, Reason: "must be at least 1"}
	}
	if len(c.GetClusterColumns()) == 0 {
		return &features.ConfigurationError{Param: "cluster_columns", Value: c.ClusterColumns, Reason: "at least one column required"}
	}
	if w := c.GetWorkers(); w < 0 {
		return &features.ConfigurationError{Param: "workers", Value: w, Reason: "must be non-negative"}
	}
	if c.RunTimeout != nil && *c.RunTimeout != "" {
		if _, err := time.ParseDuration(*c.RunTimeout); err != nil {
			return fmt.Errorf("invalid run_timeout '%s': %w", *c.RunTimeout, err)
		}
	}
	return nil
}

// LowPass returns the configured low-pass stage.
func (c *PipelineConfig) LowPass() features.LowPass {
	return features.LowPass{
		SamplingFrequency: c.GetSamplingFrequency(),
		CutoffFrequency:   c.GetCutoffFrequency(),
		Order:             c.GetFilterOrder(),
		Causal:            !c.GetZeroPhase(),
		Workers:           c.GetWorkers(),
	}
}

// Temporal returns the configured temporal stage.
func (c *PipelineConfig) Temporal() features.Temporal {
	aggs := make([]features.Aggregation, 0, len(c.GetTemporalAggregations()))
	for _, a := range c.GetTemporalAggregations() {
		aggs = append(aggs, features.Aggregation(a))
	}
	return features.Temporal{
		Window:       c.GetTemporalWindow(),
		Aggregations: aggs,
		Workers:      c.GetWorkers(),
	}
}

// Frequency returns the configured frequency stage.
func (c *PipelineConfig) Frequency() features.Frequency {
	return features.Frequency{
		Window:            c.GetFrequencyWindow(),
		SamplingFrequency: c.GetSamplingFrequency(),
		Workers:           c.GetWorkers(),
	}
}

// KMeans returns the configured cluster assigner.
func (c *PipelineConfig) KMeans() features.KMeans {
	return features.KMeans{
		K:         c.GetClusterK(),
		Restarts:  c.GetClusterRestarts(),
		MaxIter:   c.GetClusterMaxIter(),
		Tolerance: c.GetClusterTolerance(),
		Seed:      c.GetClusterSeed(),
		Workers:   c.GetWorkers(),
	}
}

// GetIndexColumn returns the index_column value or the default.
func (c *PipelineConfig) GetIndexColumn() string {
	if c.IndexColumn == nil || *c.IndexColumn == "" {
		return table.DefaultIndexName
	}
	return *c.IndexColumn
}

// GetPredictors returns the predictor channels or the default six IMU axes.
func (c *PipelineConfig) GetPredictors() []string {
	if len(c.Predictors) == 0 {
		return []string{"acc_x", "acc_y", "acc_z", "gyr_x", "gyr_y", "gyr_z"}
	}
	return append([]string(nil), c.Predictors...)
}

// GetInterpolate returns the interpolate value or the default.
func (c *PipelineConfig) GetInterpolate() bool {
	if c.Interpolate == nil {
		return true
	}
	return *c.Interpolate
}

// GetSamplingFrequency returns the sampling_frequency value or the default.
func (c *PipelineConfig) GetSamplingFrequency() float64 {
	if c.SamplingFrequency == nil {
		return 5 // 200 ms step
	}
	return *c.SamplingFrequency
}

// GetCutoffFrequency returns the cutoff_frequency value or the default.
func (c *PipelineConfig) GetCutoffFrequency() float64 {
	if c.CutoffFrequency == nil {
		return 1.3
	}
	return *c.CutoffFrequency
}

// GetFilterOrder returns the filter_order value or the default.
func (c *PipelineConfig) GetFilterOrder() int {
	if c.FilterOrder == nil {
		return 5
	}
	return *c.FilterOrder
}

// GetZeroPhase returns the zero_phase value or the default.
func (c *PipelineConfig) GetZeroPhase() bool {
	if c.ZeroPhase == nil {
		return true
	}
	return *c.ZeroPhase
}

// GetPCAComponents returns the pca_components value or the default.
func (c *PipelineConfig) GetPCAComponents() int {
	if c.PCAComponents == nil {
		return 3
	}
	return *c.PCAComponents
}

// GetTemporalWindow returns the temporal_window value or the default.
func (c *PipelineConfig) GetTemporalWindow() int {
	if c.TemporalWindow == nil {
		return 5 // 1 s at 5 Hz
	}
	return *c.TemporalWindow
}

// GetTemporalAggregations returns the temporal_aggregations value or the default.
func (c *PipelineConfig) GetTemporalAggregations() []string {
	if len(c.TemporalAggregations) == 0 {
		return []string{"mean", "std"}
	}
	return append([]string(nil), c.TemporalAggregations...)
}

// GetFrequencyWindow returns the frequency_window value or the default.
func (c *PipelineConfig) GetFrequencyWindow() int {
	if c.FrequencyWindow == nil {
		return 14 // 2.8 s at 5 Hz
	}
	return *c.FrequencyWindow
}

// GetOverlapStride returns the overlap_stride value or the default.
func (c *PipelineConfig) GetOverlapStride() int {
	if c.OverlapStride == nil {
		return features.DefaultOverlapStride
	}
	return *c.OverlapStride
}

// GetClusterK returns the cluster_k value or the default.
func (c *PipelineConfig) GetClusterK() int {
	if c.ClusterK == nil {
		return 5
	}
	return *c.ClusterK
}

// GetClusterColumns returns the cluster_columns value or the default.
func (c *PipelineConfig) GetClusterColumns() []string {
	if len(c.ClusterColumns) == 0 {
		return []string{"acc_x", "acc_y", "acc_z"}
	}
	return append([]string(nil), c.ClusterColumns...)
}

// GetClusterRestarts returns the cluster_restarts value or the default.
func (c *PipelineConfig) GetClusterRestarts() int {
	if c.ClusterRestarts == nil {
		return 20
	}
	return *c.ClusterRestarts
}

// GetClusterMaxIter returns the cluster_max_iter value or the default.
func (c *PipelineConfig) GetClusterMaxIter() int {
	if c.ClusterMaxIter == nil {
		return 300
	}
	return *c.ClusterMaxIter
}

// GetClusterTolerance returns the cluster_tolerance value or the default.
func (c *PipelineConfig) GetClusterTolerance() float64 {
	if c.ClusterTolerance == nil {
		return 1e-4
	}
	return *c.ClusterTolerance
}

// GetClusterSeed returns the cluster_seed value or the default.
func (c *PipelineConfig) GetClusterSeed() int64 {
	if c.ClusterSeed == nil {
		return 0
	}
	return *c.ClusterSeed
}

// GetWorkers returns the workers value or the default.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetRunTimeout parses and returns the RunTimeout. Zero means no limit.
func (c *PipelineConfig) GetRunTimeout() time.Duration {
	if c.RunTimeout == nil || *c.RunTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.RunTimeout)
	if err != nil {
		return 0
	}
	return d
}
