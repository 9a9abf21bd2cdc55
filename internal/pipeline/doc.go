// Package pipeline composes the feature stages into the batch that turns
// cleaned recordings into the classification feature table.
//
// Responsibilities: stage ordering, per-run reporting (timings, PCA
// variance ratios, cluster inertia, data-sufficiency notices) and
// cancellation between stages.
// Key types: Pipeline, Stage, Report.
//
// Dependency rule: pipeline depends on config, features, table, monitoring
// and timeutil. Reading, writing and the run ledger are the caller's job.
package pipeline
