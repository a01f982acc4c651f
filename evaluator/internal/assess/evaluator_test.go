package assess

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/kinetics"
	"github.com/vvmguard/vvmguard/pkg/types"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

type profiles map[string]types.ReferenceProfile

func (p profiles) Profile(id string) (types.ReferenceProfile, bool) {
	v, ok := p[id]
	return v, ok
}

func measles() types.ReferenceProfile {
	return types.ReferenceProfile{
		ID:               "measles",
		Category:         "live-attenuated",
		Q10Value:         2,
		IdealTemp:        5,
		ShelfLifeDays:    30,
		TemperatureRange: types.TemperatureRange{Min: 2, Max: 8},
		DecisionThresholds: types.DecisionThresholds{
			FreezeThreshold:   -0.5,
			CCMLimit:          600,
			CriticalTempLimit: 12,
		},
	}
}

var lot = types.Lot{ID: "lot-1", ProfileID: "measles", ExpiryDate: "2027-01-01"}

// hourly builds one reading per step hours, ending at start+step*(n-1).
func hourly(start time.Time, stepHours float64, temps ...float64) []types.TemperatureReading {
	out := make([]types.TemperatureReading, len(temps))
	for i, v := range temps {
		out[i] = types.TemperatureReading{
			EntityID:   lot.ID,
			Value:      v,
			RecordedAt: start.Add(time.Duration(float64(i) * stepHours * float64(time.Hour))),
		}
	}
	return out
}

func evaluate(t *testing.T, p types.ReferenceProfile, readings []types.TemperatureReading) types.DecisionResult {
	t.Helper()
	res, err := New(profiles{p.ID: p}).Evaluate(types.Lot{ID: lot.ID, ProfileID: p.ID, ExpiryDate: lot.ExpiryDate}, readings, now)
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	return res
}

func hasReason(res types.DecisionResult, rule, substr string) bool {
	for _, r := range res.Reasons {
		if r.Rule == rule && strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// --- end-to-end scenarios ---

func TestEvaluate_ThirtyDaysAtIdeal(t *testing.T) {
	// At the ideal temperature the factor is exactly 1, so degradation equals
	// elapsed time and the HER is elapsed time over shelf life.
	tests := []struct {
		name      string
		shelfLife float64
		her       float64
		decision  types.DecisionCode
		status    types.Status
		alert     types.AlertLevel
	}{
		{"long shelf life", 3650, 720.0 / (3650 * 24), types.DecisionAccepted, types.StatusSafe, types.AlertGreen},
		{"shelf life fully consumed", 30, 1.0, types.DecisionRejectedHeatCritical, types.StatusDiscard, types.AlertRed},
	}
	start := now.Add(-30 * 24 * time.Hour)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := measles()
			p.ShelfLifeDays = tc.shelfLife
			res := evaluate(t, p, hourly(start, 720, 5, 5))

			if !almostEqual(res.DegradationHours, 720, 1e-9) {
				t.Errorf("DegradationHours = %v, want 720", res.DegradationHours)
			}
			if !almostEqual(res.HER, tc.her, 1e-9) {
				t.Errorf("HER = %v, want %v", res.HER, tc.her)
			}
			if res.DecisionCode != tc.decision || res.Status != tc.status || res.AlertLevel != tc.alert {
				t.Errorf("decision/status/alert = %s/%s/%s, want %s/%s/%s",
					res.DecisionCode, res.Status, res.AlertLevel, tc.decision, tc.status, tc.alert)
			}
		})
	}
}

func TestEvaluate_HeatThenIdeal(t *testing.T) {
	start := now.Add(-36 * time.Hour)
	readings := []types.TemperatureReading{
		{EntityID: lot.ID, Value: 15, RecordedAt: start},
		{EntityID: lot.ID, Value: 5, RecordedAt: start.Add(24 * time.Hour)},
		{EntityID: lot.ID, Value: 5, RecordedAt: start.Add(36 * time.Hour)},
	}
	p := measles()
	p.DecisionThresholds.CCMLimit = 2000
	p.DecisionThresholds.CriticalTempLimit = 20
	res := evaluate(t, p, readings)

	if !almostEqual(res.DegradationHours, 60, 1e-9) {
		t.Errorf("DegradationHours = %v, want 60", res.DegradationHours)
	}
	if !almostEqual(res.HER, 60.0/720.0, 1e-9) {
		t.Errorf("HER = %v, want %v", res.HER, 60.0/720.0)
	}
	if res.Status != types.StatusSafe || res.Stage != types.StageNone {
		t.Errorf("status/stage = %s/%s, want SAFE/NONE", res.Status, res.Stage)
	}
	if !res.HasWarning {
		t.Error("HasWarning = false, want true for 15 °C excursion")
	}
}

func TestEvaluate_FreezeRejects(t *testing.T) {
	start := now.Add(-time.Hour)
	res := evaluate(t, measles(), hourly(start, 1, -2.0, 5))

	if res.DecisionCode != types.DecisionRejectedFreeze {
		t.Fatalf("DecisionCode = %s, want REJECTED_FREEZE", res.DecisionCode)
	}
	if res.Status != types.StatusDiscard || res.AlertLevel != types.AlertRed {
		t.Errorf("status/alert = %s/%s, want DISCARD/RED", res.Status, res.AlertLevel)
	}
	if res.Stats.FreezeDurationMinutes != 60 {
		t.Errorf("FreezeDurationMinutes = %v, want 60", res.Stats.FreezeDurationMinutes)
	}
}

func TestEvaluate_CriticalHeatReasonCitesValues(t *testing.T) {
	start := now.Add(-2 * time.Hour)
	res := evaluate(t, measles(), hourly(start, 1, 5, 13.0, 5))

	if res.DecisionCode != types.DecisionRejectedHeatCritical {
		t.Fatalf("DecisionCode = %s, want REJECTED_HEAT_CRITICAL", res.DecisionCode)
	}
	if !hasReason(res, "heat", "13.0 > 12.0") {
		t.Errorf("reasons %v do not cite 13.0 > 12.0", res.Reasons)
	}
}

func TestEvaluate_NoReadings(t *testing.T) {
	res := evaluate(t, measles(), nil)

	if res.DecisionCode != types.DecisionNoData {
		t.Fatalf("DecisionCode = %s, want NO_DATA", res.DecisionCode)
	}
	if res.Status != types.StatusUnknown || res.AlertLevel != types.AlertGreen {
		t.Errorf("status/alert = %s/%s, want UNKNOWN/GREEN", res.Status, res.AlertLevel)
	}
	if res.HER != 0 || res.DegradationHours != 0 {
		t.Errorf("HER/hours = %v/%v, want 0/0", res.HER, res.DegradationHours)
	}
	if len(res.Recommendations) == 0 || !strings.Contains(res.Recommendations[0], "data logger") {
		t.Errorf("Recommendations = %v, want logger check first", res.Recommendations)
	}
}

func TestEvaluate_ZeroShelfLifeIsFailSafe(t *testing.T) {
	p := measles()
	p.ShelfLifeDays = 0
	res := evaluate(t, p, hourly(now.Add(-time.Hour), 1, 5, 5))

	if res.HER != 1.0 {
		t.Errorf("HER = %v, want 1.0", res.HER)
	}
	if res.Stage != types.StageD || res.DecisionCode != types.DecisionRejectedHeatCritical {
		t.Errorf("stage/decision = %s/%s, want D/REJECTED_HEAT_CRITICAL", res.Stage, res.DecisionCode)
	}
	if res.AlertLevel != types.AlertRed {
		t.Errorf("AlertLevel = %s, want RED", res.AlertLevel)
	}
	if res.StabilityBudgetConsumedPct != 100 {
		t.Errorf("StabilityBudgetConsumedPct = %v, want 100", res.StabilityBudgetConsumedPct)
	}
}

func TestEvaluate_InfiniteDegradation(t *testing.T) {
	p := measles()
	p.Q10Value = 1e10
	p.DecisionThresholds.CriticalTempLimit = 1e7
	p.DecisionThresholds.CCMLimit = 1e9
	res := evaluate(t, p, hourly(now.Add(-time.Hour), 1, 1e6, 5))

	if !math.IsInf(res.HER, 1) {
		t.Fatalf("HER = %v, want +Inf", res.HER)
	}
	if res.Stage != types.StageD || res.DecisionCode != types.DecisionRejectedHeatCritical {
		t.Errorf("stage/decision = %s/%s, want D/REJECTED_HEAT_CRITICAL", res.Stage, res.DecisionCode)
	}
	if res.StabilityBudgetConsumedPct != 100 {
		t.Errorf("StabilityBudgetConsumedPct = %v, want 100", res.StabilityBudgetConsumedPct)
	}
}

func TestEvaluate_PartialOnHighHER(t *testing.T) {
	// 18 days at 15 °C is 36 degradation days: HER 0.6 on a 60-day shelf life.
	p := measles()
	p.ShelfLifeDays = 60
	p.DecisionThresholds.CriticalTempLimit = 20
	p.DecisionThresholds.CCMLimit = 1e6
	res := evaluate(t, p, hourly(now.Add(-18*24*time.Hour), 18*24, 15, 5))

	if !almostEqual(res.HER, 0.6, 1e-9) {
		t.Fatalf("HER = %v, want 0.6", res.HER)
	}
	if res.DecisionCode != types.DecisionAccepted || res.Status != types.StatusPartial {
		t.Errorf("decision/status = %s/%s, want ACCEPTED/PARTIAL", res.DecisionCode, res.Status)
	}
	if res.Stage != types.StageB || res.AlertLevel != types.AlertYellow {
		t.Errorf("stage/alert = %s/%s, want B/YELLOW", res.Stage, res.AlertLevel)
	}
	if !almostEqual(res.StabilityBudgetConsumedPct, 60, 1e-9) {
		t.Errorf("StabilityBudgetConsumedPct = %v, want 60", res.StabilityBudgetConsumedPct)
	}
}

func TestEvaluate_ThawCountdown(t *testing.T) {
	p := measles()
	p.Category = "mrna"
	p.FreezeStable = true
	start := now.Add(-10 * 24 * time.Hour)
	p.ThawPolicy = types.ThawPolicy{UltraColdRequired: true, ThawStart: &start, ThawDurationDays: 30}
	res := evaluate(t, p, hourly(now.Add(-time.Hour), 1, 5, 5))

	if !res.IsThawing || res.ThawRemainingHours == nil {
		t.Fatalf("thaw state = %v/%v, want thawing with remaining hours", res.IsThawing, res.ThawRemainingHours)
	}
	if !almostEqual(*res.ThawRemainingHours, 480, 1e-9) {
		t.Errorf("ThawRemainingHours = %v, want 480", *res.ThawRemainingHours)
	}
	if res.AlertLevel != types.AlertYellow || res.Status != types.StatusSafe {
		t.Errorf("alert/status = %s/%s, want YELLOW/SAFE", res.AlertLevel, res.Status)
	}
	if res.Category != "mrna" {
		t.Errorf("Category = %q, want mrna", res.Category)
	}
}

func TestEvaluate_ThawExpiredFloorsAtZero(t *testing.T) {
	p := measles()
	start := now.Add(-40 * 24 * time.Hour)
	p.ThawPolicy = types.ThawPolicy{UltraColdRequired: true, ThawStart: &start, ThawDurationDays: 30}
	res := evaluate(t, p, hourly(now.Add(-time.Hour), 1, 5, 5))

	if res.DecisionCode != types.DecisionRejectedThawExpired {
		t.Errorf("DecisionCode = %s, want REJECTED_THAW_EXPIRED", res.DecisionCode)
	}
	if res.ThawRemainingHours == nil || *res.ThawRemainingHours != 0 {
		t.Errorf("ThawRemainingHours = %v, want 0", res.ThawRemainingHours)
	}
}

func TestEvaluate_ThawStartAfterNow(t *testing.T) {
	p := measles()
	p.FreezeStable = true
	start := now.Add(48 * time.Hour)
	p.ThawPolicy = types.ThawPolicy{UltraColdRequired: true, ThawStart: &start, ThawDurationDays: 30}
	res := evaluate(t, p, hourly(now.Add(-time.Hour), 1, 5, 5))

	if res.ThawRemainingHours == nil || *res.ThawRemainingHours != 720 {
		t.Errorf("ThawRemainingHours = %v, want the full 720 h window", res.ThawRemainingHours)
	}
	if res.DecisionCode != types.DecisionAccepted {
		t.Errorf("DecisionCode = %s, want ACCEPTED", res.DecisionCode)
	}
	if !hasReason(res, "thaw", "720.0 h remaining of 720.0 h") {
		t.Errorf("reasons = %+v, want thaw window capped at its length", res.Reasons)
	}
}

func TestEvaluate_StageFollowsHERWhenChainStopsEarly(t *testing.T) {
	p := measles()
	expired := types.Lot{ID: lot.ID, ProfileID: p.ID, ExpiryDate: "2026-01-01"}
	// 576 h at the ideal temperature against a 30 day shelf life: HER 0.8.
	res, err := New(profiles{p.ID: p}).Evaluate(expired, hourly(now.Add(-576*time.Hour), 576, 5, 5), now)
	if err != nil {
		t.Fatalf("Evaluate() unexpected error: %v", err)
	}
	if res.DecisionCode != types.DecisionRejectedExpired {
		t.Fatalf("DecisionCode = %s, want REJECTED_EXPIRED", res.DecisionCode)
	}
	if !almostEqual(res.HER, 0.8, 1e-9) {
		t.Errorf("HER = %v, want 0.8", res.HER)
	}
	if res.Stage != types.StageC {
		t.Errorf("Stage = %s, want C", res.Stage)
	}
}

func TestEvaluate_ReasonsEndWithAlert(t *testing.T) {
	res := evaluate(t, measles(), hourly(now.Add(-time.Hour), 1, 5, 5))
	if len(res.Reasons) == 0 {
		t.Fatal("no reasons")
	}
	last := res.Reasons[len(res.Reasons)-1]
	if last.Rule != "alert" || !strings.HasPrefix(last.Message, "GREEN") {
		t.Errorf("last reason = %+v, want GREEN alert reason", last)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	ev := New(profiles{"measles": measles()})
	readings := hourly(now.Add(-6*time.Hour), 1, 5, 9, 11, 7, 4, 3, 5)
	a, err := ev.Evaluate(lot, readings, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ev.Evaluate(lot, readings, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated evaluation differs:\n%+v\n%+v", a, b)
	}
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	ev := New(profiles{"measles": measles()})
	readings := hourly(now.Add(-3*time.Hour), 1, 5, 9, 11, 7)
	shuffled := []types.TemperatureReading{readings[2], readings[0], readings[3], readings[1]}

	a, _ := ev.Evaluate(lot, readings, now)
	b, _ := ev.Evaluate(lot, shuffled, now)
	if a.HER != b.HER || a.DecisionCode != b.DecisionCode {
		t.Errorf("shuffled input changed result: %v/%s vs %v/%s", a.HER, a.DecisionCode, b.HER, b.DecisionCode)
	}
}

// --- errors ---

func TestEvaluate_UnknownProfile(t *testing.T) {
	_, err := New(profiles{}).Evaluate(lot, nil, now)
	if !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("error = %v, want ErrUnknownProfile", err)
	}
}

func TestEvaluate_InvalidModel(t *testing.T) {
	p := measles()
	p.Q10Value = 0
	_, err := New(profiles{p.ID: p}).Evaluate(lot, hourly(now.Add(-time.Hour), 1, 5, 5), now)
	if !errors.Is(err, kinetics.ErrInvalidModel) {
		t.Fatalf("error = %v, want ErrInvalidModel", err)
	}
}

// --- status / alert matrix ---

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		code types.DecisionCode
		her  float64
		ccm  bool
		want types.Status
	}{
		{"rejection", types.DecisionRejectedExpired, 0, false, types.StatusDiscard},
		{"accepted low HER", types.DecisionAccepted, 0.3, false, types.StatusSafe},
		{"accepted at 0.5", types.DecisionAccepted, 0.5, false, types.StatusSafe},
		{"accepted above 0.5", types.DecisionAccepted, 0.51, false, types.StatusPartial},
		{"accepted with ccm violation", types.DecisionAccepted, 0.1, true, types.StatusPartial},
		{"no data", types.DecisionNoData, 0, false, types.StatusUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := StatusFor(tc.code, tc.her, types.ExposureStats{HasCCMViolation: tc.ccm})
			if got != tc.want {
				t.Errorf("StatusFor = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAlertFor(t *testing.T) {
	tests := []struct {
		name    string
		status  types.Status
		her     float64
		thawing bool
		want    types.AlertLevel
	}{
		{"discard", types.StatusDiscard, 0, false, types.AlertRed},
		{"her at 1", types.StatusSafe, 1.0, false, types.AlertRed},
		{"her at 0.5", types.StatusSafe, 0.5, false, types.AlertYellow},
		{"thawing", types.StatusSafe, 0.1, true, types.AlertYellow},
		{"green", types.StatusSafe, 0.49, false, types.AlertGreen},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, why := AlertFor(tc.status, tc.her, tc.thawing)
			if got != tc.want {
				t.Errorf("AlertFor = %s, want %s", got, tc.want)
			}
			if !strings.HasPrefix(why, string(tc.want)) {
				t.Errorf("reason %q does not start with %s", why, tc.want)
			}
		})
	}
}

func TestHeatExposureRatio(t *testing.T) {
	if got := HeatExposureRatio(60, 30); !almostEqual(got, 60.0/720.0, 1e-12) {
		t.Errorf("HeatExposureRatio(60, 30) = %v", got)
	}
	for _, shelf := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if got := HeatExposureRatio(10, shelf); got != 1.0 {
			t.Errorf("HeatExposureRatio(10, %v) = %v, want 1.0", shelf, got)
		}
	}
}

func TestBudgetConsumedPct(t *testing.T) {
	tests := []struct {
		her, want float64
	}{
		{0, 0},
		{0.42, 42},
		{1.5, 100},
		{math.Inf(1), 100},
		{math.NaN(), 100},
	}
	for _, tc := range tests {
		if got := BudgetConsumedPct(tc.her); !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("BudgetConsumedPct(%v) = %v, want %v", tc.her, got, tc.want)
		}
	}
}

func TestThawRemaining_FutureStartKeepsFullWindow(t *testing.T) {
	start := now.Add(time.Hour)
	got, thawing := ThawRemaining(types.ThawPolicy{UltraColdRequired: true, ThawStart: &start, ThawDurationDays: 2}, now)
	if !thawing || got == nil || *got != 48 {
		t.Errorf("ThawRemaining = %v/%v, want 48/true", got, thawing)
	}
}

// --- recommendations ---

func TestRecommend_DiscardFirst(t *testing.T) {
	recs := Recommend(types.DecisionResult{Status: types.StatusDiscard, DecisionCode: types.DecisionRejectedFreeze})
	if len(recs) != 3 || recs[0] != "discard the lot immediately" {
		t.Fatalf("Recommend(discard) = %v", recs)
	}
	if !strings.Contains(recs[1], "REJECTED_FREEZE") {
		t.Errorf("second recommendation %q does not cite the decision", recs[1])
	}
}

func TestRecommend_PartialStageAndThaw(t *testing.T) {
	h := 12.0
	recs := Recommend(types.DecisionResult{
		Status:             types.StatusPartial,
		Stage:              types.StageB,
		IsThawing:          true,
		ThawRemainingHours: &h,
		HasWarning:         true,
	})
	want := []string{
		"use within 3 months at most",
		"mark affected vials with their VVM stage",
		"distribute with priority (use first)",
		"stage B: noticeable heat degradation, prioritise this lot",
		"thaw window closes in 12.0 h: use today",
		"investigate the storage temperature excursion and check the refrigerator",
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("Recommend =\n%q\nwant\n%q", recs, want)
	}
}

// --- reaffirm ---

func TestReaffirm_RejectionStands(t *testing.T) {
	res := evaluate(t, measles(), hourly(now.Add(-time.Hour), 1, 5, 5))
	if res.DecisionCode != types.DecisionAccepted {
		t.Fatalf("precondition: DecisionCode = %s, want ACCEPTED", res.DecisionCode)
	}
	rejectedAt := now.Add(-40 * 24 * time.Hour)
	got := Reaffirm(res, types.DecisionRejectedFreeze, rejectedAt)

	if got.DecisionCode != types.DecisionRejectedFreeze || got.Status != types.StatusDiscard || got.AlertLevel != types.AlertRed {
		t.Errorf("verdict = %s/%s/%s, want REJECTED_FREEZE/DISCARD/RED", got.DecisionCode, got.Status, got.AlertLevel)
	}
	if !hasReason(got, "history", "REJECTED_FREEZE") {
		t.Errorf("reasons = %+v, want history reason", got.Reasons)
	}
	last := got.Reasons[len(got.Reasons)-1]
	if last.Rule != "alert" || !strings.HasPrefix(last.Message, "RED") {
		t.Errorf("last reason = %+v, want RED alert reason", last)
	}
	for _, r := range got.Reasons[:len(got.Reasons)-1] {
		if r.Rule == "alert" {
			t.Errorf("stale alert reason kept: %+v", r)
		}
	}
	if len(got.Recommendations) == 0 || got.Recommendations[0] != "discard the lot immediately" {
		t.Errorf("Recommendations = %v", got.Recommendations)
	}
}

func TestReaffirm_Unchanged(t *testing.T) {
	accepted := evaluate(t, measles(), hourly(now.Add(-time.Hour), 1, 5, 5))
	if got := Reaffirm(accepted, types.DecisionAccepted, now); !reflect.DeepEqual(got, accepted) {
		t.Errorf("Reaffirm with a non-rejection changed the result: %+v", got)
	}
	frozen := evaluate(t, measles(), hourly(now.Add(-2*time.Hour), 1, -3, 5, 5))
	if got := Reaffirm(frozen, types.DecisionRejectedHeatCritical, now); got.DecisionCode != types.DecisionRejectedFreeze {
		t.Errorf("DecisionCode = %s, want the current rejection kept", got.DecisionCode)
	}
}
