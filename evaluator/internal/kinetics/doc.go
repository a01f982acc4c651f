// Package kinetics models heat-driven potency loss with the Q10 temperature
// coefficient.
//
// Model.AccelerationFactor converts a temperature into a rate multiplier
// relative to the profile's ideal storage temperature: exactly 1.0 at or below
// ideal, q10^((t-ideal)/10) above it. Freeze exposure is deliberately not
// modelled here; it is handled by the rule chain's zero-tolerance freeze rule.
//
// Model.CumulativeDegradationHours integrates piecewise-constant exposure
// segments into equivalent hours at ideal storage. Overflow and NaN in the
// exponential are mapped to +Inf, which downstream code treats as immediate
// total loss rather than an error.
package kinetics
