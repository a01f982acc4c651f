package assess

import (
	"fmt"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Recommend returns ordered follow-up actions for an evaluated lot. The list
// starts with the status-level action, then adds stage, thaw and warning
// specific steps. Callers may append their own.
func Recommend(r types.DecisionResult) []string {
	var recs []string

	switch r.Status {
	case types.StatusDiscard:
		recs = append(recs,
			"discard the lot immediately",
			fmt.Sprintf("record the discard reason (%s) in the store ledger", r.DecisionCode),
			"notify the cold chain manager",
		)
	case types.StatusPartial:
		recs = append(recs,
			"use within 3 months at most",
			"mark affected vials with their VVM stage",
			"distribute with priority (use first)",
		)
	case types.StatusSafe:
		recs = append(recs, "lot is safe for normal use")
	default:
		recs = append(recs, "check data logger connectivity and device health")
		if r.IsThawing {
			recs = append(recs, thawAdvice(r)...)
		}
		return recs
	}

	if r.Status != types.StatusDiscard {
		switch r.Stage {
		case types.StageC:
			recs = append(recs, "stage C: close to end of thermal stability, use only after supervisor review")
		case types.StageB:
			recs = append(recs, "stage B: noticeable heat degradation, prioritise this lot")
		case types.StageA:
			recs = append(recs, "stage A: early heat exposure, keep monitoring the VVM")
		}
	}

	if r.IsThawing && r.Status != types.StatusDiscard {
		recs = append(recs, thawAdvice(r)...)
	}

	if r.HasWarning && r.Status != types.StatusDiscard {
		recs = append(recs, "investigate the storage temperature excursion and check the refrigerator")
	}
	return recs
}

func thawAdvice(r types.DecisionResult) []string {
	if r.ThawRemainingHours == nil {
		return nil
	}
	h := *r.ThawRemainingHours
	switch {
	case h <= 0:
		return []string{"thaw window exhausted: do not use"}
	case h < 24:
		return []string{fmt.Sprintf("thaw window closes in %.1f h: use today", h)}
	default:
		return []string{fmt.Sprintf("use within the thaw window (%.1f h remaining), do not refreeze", h)}
	}
}
