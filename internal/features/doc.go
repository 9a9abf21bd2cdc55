// Package features implements the feature-engineering stages that turn
// cleaned motion-sensor recordings into a classification feature table.
//
// Responsibilities: interpolation, segment duration, Butterworth low-pass
// filtering, PCA, magnitude channels, per-segment temporal and frequency
// abstraction, overlap reduction and k-means clustering.
//
// Every stage reads an immutable *table.Table and returns a new one.
// Window-based stages (Temporal, Frequency) run once per segment on that
// segment's rows only and concatenate the fragments afterwards, so no
// window ever mixes samples from two sets.
//
// Dependency rule: features depends on table and monitoring only. Stage
// ordering and persistence belong to the pipeline package.
package features
