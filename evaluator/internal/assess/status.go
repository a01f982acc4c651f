package assess

import (
	"fmt"
	"math"
	"time"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// PartialHER is the HER above which an accepted lot is only partially usable.
// AlertYellowHER is the HER at which the alert level turns yellow.
const (
	PartialHER     = 0.5
	AlertYellowHER = 0.5
	AlertRedHER    = 1.0
)

// HeatExposureRatio divides degradation hours by the shelf life in hours.
// A non-positive or non-finite shelf life yields 1.0: misconfiguration is
// treated as total loss.
func HeatExposureRatio(degradationHours, shelfLifeDays float64) float64 {
	if math.IsNaN(shelfLifeDays) || math.IsInf(shelfLifeDays, 0) || shelfLifeDays <= 0 {
		return 1.0
	}
	return degradationHours / (shelfLifeDays * 24)
}

// BudgetConsumedPct expresses HER as a percentage capped at 100. A NaN HER
// counts as fully consumed.
func BudgetConsumedPct(her float64) float64 {
	if math.IsNaN(her) {
		return 100
	}
	return math.Min(100, her*100)
}

// StatusFor maps a verdict to the coarse stock status.
func StatusFor(code types.DecisionCode, her float64, st types.ExposureStats) types.Status {
	switch {
	case code.IsRejection():
		return types.StatusDiscard
	case code == types.DecisionAccepted:
		if her > PartialHER || st.HasCCMViolation {
			return types.StatusPartial
		}
		return types.StatusSafe
	default:
		return types.StatusUnknown
	}
}

// AlertFor applies the alert matrix and returns the level with its reason.
func AlertFor(status types.Status, her float64, thawing bool) (types.AlertLevel, string) {
	switch {
	case status == types.StatusDiscard:
		return types.AlertRed, fmt.Sprintf("RED: stock must be discarded (HER %.2f)", her)
	case her >= AlertRedHER:
		return types.AlertRed, fmt.Sprintf("RED: thermal stability budget exhausted (HER %.2f)", her)
	case thawing:
		return types.AlertYellow, "YELLOW: product is in its thaw window"
	case her >= AlertYellowHER:
		return types.AlertYellow, fmt.Sprintf("YELLOW: high stability budget consumption (HER %.2f)", her)
	default:
		return types.AlertGreen, "GREEN: within optimal limits"
	}
}

// ThawRemaining returns the hours left in the thaw window, floored at zero,
// and whether the lot is thawing at all. A thaw start after now counts as no
// time elapsed.
func ThawRemaining(tp types.ThawPolicy, now time.Time) (*float64, bool) {
	if !tp.Thawing() {
		return nil, false
	}
	elapsed := math.Max(0, now.Sub(*tp.ThawStart).Hours())
	remaining := math.Max(0, tp.ThawDurationDays*24-elapsed)
	return &remaining, true
}
