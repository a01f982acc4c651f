// Package types defines the shared data model of vvmguard: temperature
// readings, reference profiles, lots and the DecisionResult produced for each
// evaluated lot. These are the canonical in-memory representations consumed by
// the evaluation core and by the surrounding collectors, stores and exporters.
//
// The closed vocabularies used on the wire (DecisionCode, Stage, AlertLevel,
// Status) are declared here so that every consumer agrees on their spelling.
package types
