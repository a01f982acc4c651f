package rules

import (
	"math"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/stage"
	"github.com/vvmguard/vvmguard/pkg/types"
)

// ExpiryDateLayout is the accepted expiry date format.
const ExpiryDateLayout = "2006-01-02"

// ExpiryRule rejects lots past their labelled expiry date. A date that cannot
// be parsed is rejection evidence, not an error.
type ExpiryRule struct{}

func (ExpiryRule) Name() string { return "expiry" }

func (r ExpiryRule) Evaluate(in Input, ev *Evaluation) (types.DecisionCode, bool) {
	if in.ExpiryDate == "" {
		return "", false
	}
	expiry, err := time.Parse(ExpiryDateLayout, in.ExpiryDate)
	if err != nil {
		ev.Addf(r.Name(), "malformed expiry date %q", in.ExpiryDate)
		return types.DecisionRejectedExpired, true
	}
	today := time.Date(in.Now.Year(), in.Now.Month(), in.Now.Day(), 0, 0, 0, 0, time.UTC)
	if today.After(expiry) {
		ev.Addf(r.Name(), "expired on %s", in.ExpiryDate)
		return types.DecisionRejectedExpired, true
	}
	ev.Addf(r.Name(), "expiry date %s not reached", in.ExpiryDate)
	return "", false
}

// StageRule sets the VVM stage. With a HER the stage is ratio-based and a
// HER of 1.0 or more rejects the lot; without one the stage falls back to the
// cumulative minutes above the storage range and never decides.
type StageRule struct{}

func (StageRule) Name() string { return "stage" }

func (r StageRule) Evaluate(in Input, ev *Evaluation) (types.DecisionCode, bool) {
	if in.HER == nil {
		ev.Stage = stage.FromMinutes(in.Stats.HeatDurationMinutes)
		ev.Addf(r.Name(), "stage %s from %.2f days above %.1f °C (no HER)",
			ev.Stage, in.Stats.HeatDurationMinutes/(24*60), in.Profile.TemperatureRange.Max)
		return "", false
	}

	her := *in.HER
	ev.Stage = stage.FromHER(her)
	switch ev.Stage {
	case types.StageD:
		ev.Addf(r.Name(), "stage D: HER %.3f >= %.1f, thermal stability budget exhausted", her, stage.HERD)
		return types.DecisionRejectedHeatCritical, true
	case types.StageC:
		ev.Addf(r.Name(), "stage C: HER %.3f, close to end of thermal stability", her)
	case types.StageB:
		ev.Addf(r.Name(), "stage B: HER %.3f, noticeable heat degradation", her)
	case types.StageA:
		ev.Addf(r.Name(), "stage A: HER %.3f, early heat exposure", her)
	default:
		ev.Addf(r.Name(), "stage NONE: HER %.3f below %.1f", her, stage.HERA)
	}
	return "", false
}

// ThawRule tracks the refrigerated-use window of ultra-cold-chain products
// that have a recorded thaw start. Other lots pass silently.
type ThawRule struct{}

func (ThawRule) Name() string { return "thaw" }

func (r ThawRule) Evaluate(in Input, ev *Evaluation) (types.DecisionCode, bool) {
	tp := in.Profile.ThawPolicy
	if !tp.Thawing() {
		return "", false
	}
	window := tp.ThawDurationDays * 24
	// A thaw start recorded ahead of now has not used any of the window yet.
	elapsed := math.Max(0, in.Now.Sub(*tp.ThawStart).Hours())
	if elapsed > window {
		ev.Addf(r.Name(), "thaw window exceeded: %.1f h since thaw start, limit %.1f h", elapsed, window)
		return types.DecisionRejectedThawExpired, true
	}
	ev.Addf(r.Name(), "thaw window: %.1f h remaining of %.1f h", window-elapsed, window)
	return "", false
}

// FreezeRule applies the zero-tolerance freeze policy to freeze-sensitive
// products. Freeze-stable products only get an informational reason.
type FreezeRule struct{}

func (FreezeRule) Name() string { return "freeze" }

func (r FreezeRule) Evaluate(in Input, ev *Evaluation) (types.DecisionCode, bool) {
	st := in.Stats
	threshold := in.Profile.DecisionThresholds.FreezeThreshold
	if !st.HasFreeze {
		ev.Addf(r.Name(), "no freeze exposure below %.1f °C", threshold)
		return "", false
	}
	if in.Profile.FreezeStable {
		ev.Addf(r.Name(), "freeze exposure of %.1f min below %.1f °C tolerated: product is freeze-stable",
			st.FreezeDurationMinutes, threshold)
		return "", false
	}
	ev.Addf(r.Name(), "freeze exposure: %.1f min below %.1f °C%s",
		st.FreezeDurationMinutes, threshold, actionSuffix(in.Profile.Actions.OnFreeze))
	return types.DecisionRejectedFreeze, true
}

// HeatCriticalRule rejects on an instantaneous maximum above the critical
// limit or on a cumulative CCM violation.
type HeatCriticalRule struct{}

func (HeatCriticalRule) Name() string { return "heat" }

func (r HeatCriticalRule) Evaluate(in Input, ev *Evaluation) (types.DecisionCode, bool) {
	st := in.Stats
	th := in.Profile.DecisionThresholds
	if st.MaxTemp > th.CriticalTempLimit {
		ev.Addf(r.Name(), "critical heat: max temperature %.1f > %.1f °C%s",
			st.MaxTemp, th.CriticalTempLimit, actionSuffix(in.Profile.Actions.OnHeat))
		return types.DecisionRejectedHeatCritical, true
	}
	if st.HasCCMViolation {
		ev.Addf(r.Name(), "cumulative heat exposure %.1f min above %.1f °C exceeds CCM limit %.1f min%s",
			st.HeatDurationMinutes, in.Profile.TemperatureRange.Max, th.CCMLimit,
			actionSuffix(in.Profile.Actions.OnHeat))
		return types.DecisionRejectedHeatCritical, true
	}
	ev.Addf(r.Name(), "max temperature %.1f °C and %.1f min above range within limits",
		st.MaxTemp, st.HeatDurationMinutes)
	return "", false
}

// WarningRule flags excursions outside the nominal safe band without
// changing the verdict.
type WarningRule struct{}

func (WarningRule) Name() string { return "warning" }

func (r WarningRule) Evaluate(in Input, ev *Evaluation) (types.DecisionCode, bool) {
	band := in.Profile.TemperatureRange
	st := in.Stats
	if st.MinTemp < band.Min || st.MaxTemp > band.Max {
		ev.Warning = true
		ev.Addf(r.Name(), "excursion outside %.1f–%.1f °C: min %.1f, max %.1f",
			band.Min, band.Max, st.MinTemp, st.MaxTemp)
		return "", false
	}
	ev.Addf(r.Name(), "temperatures within %.1f–%.1f °C", band.Min, band.Max)
	return "", false
}

// DefaultRule accepts unconditionally and terminates the chain.
type DefaultRule struct{}

func (DefaultRule) Name() string { return "default" }

func (r DefaultRule) Evaluate(_ Input, ev *Evaluation) (types.DecisionCode, bool) {
	ev.Addf(r.Name(), "no rule rejected the lot")
	return types.DecisionAccepted, true
}

func actionSuffix(action string) string {
	if action == "" {
		return ""
	}
	return ". " + action
}
