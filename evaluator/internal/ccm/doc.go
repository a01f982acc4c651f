// Package ccm computes the cumulative cold-chain monitor (CCM) signal, a
// secondary thermal-stress indicator independent of the Q10 model.
//
// Two metrics are produced from an entity's readings:
//   - delta accumulation: the sum of absolute consecutive temperature changes
//     at or above a noise threshold (default 1.0 °C)
//   - area above baseline: the trapezoidal integral, in °C·minutes, of the
//     excess over a baseline temperature (default 8.0 °C)
//
// Fewer than two readings yield zero for both metrics.
package ccm
