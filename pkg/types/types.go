package types

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TemperatureReading is one logged temperature sample for an entity.
// Readings are produced upstream and never modified by the evaluator.
type TemperatureReading struct {
	EntityID   string    `json:"entity_id"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ExposureSegment is a piecewise-constant exposure interval between two
// consecutive readings: the earlier reading's temperature held for DurationHours.
type ExposureSegment struct {
	Temperature   float64
	DurationHours float64
}

// TemperatureRange is the nominal safe storage band in °C.
type TemperatureRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// DecisionThresholds holds the per-profile limits used by the rule chain.
type DecisionThresholds struct {
	// FreezeThreshold is the temperature strictly below which an entry counts as freezing.
	FreezeThreshold float64 `yaml:"freeze_threshold" json:"freeze_threshold"`

	// CCMLimit is the cumulative minutes above TemperatureRange.Max tolerated
	// before the exposure counts as a CCM violation.
	CCMLimit float64 `yaml:"ccm_limit" json:"ccm_limit"`

	// CriticalTempLimit is the instantaneous maximum above which stock is lost.
	CriticalTempLimit float64 `yaml:"critical_temp_limit" json:"critical_temp_limit"`
}

// ThawPolicy describes the refrigerated-use window of ultra-cold-chain products.
type ThawPolicy struct {
	UltraColdRequired bool       `yaml:"ultra_cold_required" json:"ultra_cold_required"`
	ThawStart         *time.Time `yaml:"thaw_start" json:"thaw_start,omitempty"`
	ThawDurationDays  float64    `yaml:"thaw_duration_days" json:"thaw_duration_days"`
}

// Thawing reports whether the policy applies and a thaw start has been recorded.
func (p ThawPolicy) Thawing() bool {
	return p.UltraColdRequired && p.ThawStart != nil
}

// Actions are operator instructions appended to rejection reasons.
type Actions struct {
	OnFreeze string `yaml:"on_freeze" json:"on_freeze,omitempty"`
	OnHeat   string `yaml:"on_heat" json:"on_heat,omitempty"`
}

// ReferenceProfile is the thermal-stability description of one vaccine product.
// Profiles are loaded once per run and are read-only during evaluation.
type ReferenceProfile struct {
	ID                 string             `yaml:"id" json:"id"`
	Category           string             `yaml:"category" json:"category"`
	FreezeStable       bool               `yaml:"freeze_stable" json:"freeze_stable"`
	Q10Value           float64            `yaml:"q10_value" json:"q10_value"`
	IdealTemp          float64            `yaml:"ideal_temp" json:"ideal_temp"`
	ShelfLifeDays      float64            `yaml:"shelf_life_days" json:"shelf_life_days"`
	TemperatureRange   TemperatureRange   `yaml:"temperature_range" json:"temperature_range"`
	DecisionThresholds DecisionThresholds `yaml:"decision_thresholds" json:"decision_thresholds"`
	ThawPolicy         ThawPolicy         `yaml:"thaw_policy" json:"thaw_policy"`
	Actions            Actions            `yaml:"actions" json:"actions"`
}

// Lot is one evaluated entity: a stock lot of a given profile.
type Lot struct {
	ID        string `yaml:"id" json:"id"`
	ProfileID string `yaml:"profile" json:"profile_id"`

	// ExpiryDate is the labelled expiry in YYYY-MM-DD form. Empty means unknown.
	// A malformed value is kept as-is and rejected by the rule chain.
	ExpiryDate string `yaml:"expiry_date" json:"expiry_date,omitempty"`
}

// ExposureStats aggregates one entity's timed entries.
type ExposureStats struct {
	EntryCount            int     `json:"entry_count"`
	FreezeDurationMinutes float64 `json:"freeze_duration_minutes"`
	HeatDurationMinutes   float64 `json:"heat_duration_minutes"`
	HasFreeze             bool    `json:"has_freeze"`
	HasCCMViolation       bool    `json:"has_ccm_violation"`
	AvgTemp               float64 `json:"avg_temp"`
	MinTemp               float64 `json:"min_temp"`
	MaxTemp               float64 `json:"max_temp"`
	NoEntries             bool    `json:"no_entries,omitempty"`
}

// CCMMetrics is the secondary cumulative-stress signal.
type CCMMetrics struct {
	Delta             float64 `json:"delta"`
	AreaAboveBaseline float64 `json:"area_above_baseline"`
	Method            string  `json:"method"`
}

// Stage is the VVM severity stage. Values are ordered by severity.
type Stage int

const (
	StageNone Stage = iota
	StageA
	StageB
	StageC
	StageD
)

var stageNames = [...]string{"NONE", "A", "B", "C", "D"}

func (s Stage) String() string {
	if s < StageNone || s > StageD {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if s < StageNone || s > StageD {
		return nil, fmt.Errorf("types: invalid stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if string(b) == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("types: unknown stage %q", string(b))
}

// DecisionCode is the terminal verdict of one evaluation.
type DecisionCode string

const (
	DecisionAccepted             DecisionCode = "ACCEPTED"
	DecisionRejectedExpired      DecisionCode = "REJECTED_EXPIRED"
	DecisionRejectedFreeze       DecisionCode = "REJECTED_FREEZE"
	DecisionRejectedHeatCritical DecisionCode = "REJECTED_HEAT_CRITICAL"
	DecisionRejectedThawExpired  DecisionCode = "REJECTED_THAW_EXPIRED"
	DecisionNoData               DecisionCode = "NO_DATA"
)

// IsRejection reports whether c is one of the REJECTED_* codes.
func (c DecisionCode) IsRejection() bool {
	switch c {
	case DecisionRejectedExpired, DecisionRejectedFreeze,
		DecisionRejectedHeatCritical, DecisionRejectedThawExpired:
		return true
	}
	return false
}

// AlertLevel is the operational alert colour.
type AlertLevel string

const (
	AlertGreen  AlertLevel = "GREEN"
	AlertYellow AlertLevel = "YELLOW"
	AlertRed    AlertLevel = "RED"
)

// Severity orders alert levels: GREEN=0, YELLOW=1, RED=2, unknown=-1.
func (a AlertLevel) Severity() int {
	switch a {
	case AlertGreen:
		return 0
	case AlertYellow:
		return 1
	case AlertRed:
		return 2
	default:
		return -1
	}
}

// Status is the coarse stock disposition derived from the verdict.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusPartial Status = "PARTIAL"
	StatusDiscard Status = "DISCARD"
	StatusUnknown Status = "UNKNOWN"
)

// Reason is one audit entry. Rule names the producer ("expiry", "stage", ...).
type Reason struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// DecisionResult is the complete outcome of evaluating one lot.
type DecisionResult struct {
	EntityID                   string        `json:"entity_id"`
	ProfileID                  string        `json:"profile_id"`
	Category                   string        `json:"category,omitempty"`
	DecisionCode               DecisionCode  `json:"decision_code"`
	Status                     Status        `json:"status"`
	Stage                      Stage         `json:"stage"`
	AlertLevel                 AlertLevel    `json:"alert_level"`
	HER                        float64       `json:"her"`
	DegradationHours           float64       `json:"degradation_hours"`
	CCM                        CCMMetrics    `json:"ccm"`
	StabilityBudgetConsumedPct float64       `json:"stability_budget_consumed_pct"`
	ThawRemainingHours         *float64      `json:"thaw_remaining_hours,omitempty"`
	IsThawing                  bool          `json:"is_thawing"`
	HasWarning                 bool          `json:"has_warning"`
	Stats                      ExposureStats `json:"stats"`
	Reasons                    []Reason      `json:"reasons"`
	Recommendations            []string      `json:"recommendations"`
	EvaluatedAt                time.Time     `json:"evaluated_at"`
}

// MarshalJSON renders non-finite HER and degradation values as "+Inf" since
// encoding/json rejects them.
func (r DecisionResult) MarshalJSON() ([]byte, error) {
	type plain DecisionResult
	return json.Marshal(struct {
		plain
		HER              any `json:"her"`
		DegradationHours any `json:"degradation_hours"`
	}{
		plain:            plain(r),
		HER:              jsonNumber(r.HER),
		DegradationHours: jsonNumber(r.DegradationHours),
	})
}

func jsonNumber(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return v
}
