// Package exposure turns an entity's readings into timed entries and
// piecewise-constant segments, and aggregates entries into ExposureStats.
//
// Aggregate is a single pass: freeze minutes (temperature strictly below the
// freeze threshold), heat minutes (strictly above the range maximum), the
// zero-tolerance freeze flag, the cumulative CCM violation flag, and
// min/avg/max over entries that carry a temperature.
package exposure
