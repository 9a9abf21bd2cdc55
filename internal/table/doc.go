// Package table owns the columnar, time-indexed data model that every
// feature stage consumes and produces.
//
// Responsibilities: column storage by kind (Float, Int, String), row
// subsetting, per-segment grouping and ordered concatenation.
// Key types: Table, Kind, Segment.
//
// A Table is immutable by convention. Every operation returns a new Table
// and column slices are never written after construction, so unchanged
// columns are shared between versions without copying.
//
// Dependency rule: table depends on nothing else in this module.
package table
