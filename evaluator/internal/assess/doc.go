// Package assess orchestrates one lot's safety evaluation.
//
// Evaluator.Evaluate runs the per-lot pipeline:
//
//  1. sort readings chronologically (ties keep input order) and build segments
//  2. compute CCM metrics (informational)
//  3. integrate Q10 degradation hours
//  4. HER = hours / (shelf_life_days * 24); a non-positive shelf life forces 1.0
//  5. run the rule chain with stats and HER
//  6. map the verdict to SAFE / PARTIAL / DISCARD
//  7. compute the remaining thaw window
//  8. derive the RED / YELLOW / GREEN alert level
//  9. generate ordered recommendations
//
// Profiles come from an injected, read-only ProfileLookup. The Evaluator holds
// no mutable state: the same readings, profile and now always produce the
// same DecisionResult, and one Evaluator may serve many goroutines.
package assess
