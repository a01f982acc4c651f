package ccm

import (
	"math"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Default monitor settings.
const (
	DefaultDeltaThreshold = 1.0
	DefaultBaseTemp       = 8.0
)

// Method is the provenance tag attached to Combined results.
const Method = "delta+auc"

// Monitor computes CCM metrics. The zero value is not usable; call New.
type Monitor struct {
	threshold float64
	baseTemp  float64
}

// New returns a Monitor. Non-positive threshold and non-finite base fall back
// to the defaults.
func New(threshold, baseTemp float64) *Monitor {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultDeltaThreshold
	}
	if math.IsNaN(baseTemp) || math.IsInf(baseTemp, 0) {
		baseTemp = DefaultBaseTemp
	}
	return &Monitor{threshold: threshold, baseTemp: baseTemp}
}

// DeltaAccumulation sums absolute consecutive deltas that meet or exceed the
// threshold. Smaller deltas are sensor noise and contribute nothing.
func (m *Monitor) DeltaAccumulation(readings []types.TemperatureReading) float64 {
	if len(readings) < 2 {
		return 0
	}
	sorted := types.SortReadings(readings)

	var total float64
	prev := sorted[0].Value
	for _, r := range sorted[1:] {
		if d := math.Abs(r.Value - prev); d >= m.threshold {
			total += d
		}
		prev = r.Value
	}
	return total
}

// AreaAboveBaseline integrates max(0, t-base) over time in minutes using the
// trapezoid rule. Only intervals with at least one endpoint above base count.
func (m *Monitor) AreaAboveBaseline(readings []types.TemperatureReading) float64 {
	if len(readings) < 2 {
		return 0
	}
	sorted := types.SortReadings(readings)

	var total float64
	for i := 0; i < len(sorted)-1; i++ {
		a, b := sorted[i], sorted[i+1]
		if a.Value <= m.baseTemp && b.Value <= m.baseTemp {
			continue
		}
		minutes := b.RecordedAt.Sub(a.RecordedAt).Minutes()
		excess := (math.Max(0, a.Value-m.baseTemp) + math.Max(0, b.Value-m.baseTemp)) / 2
		total += excess * minutes
	}
	return total
}

// Combined returns both metrics with the provenance tag.
func (m *Monitor) Combined(readings []types.TemperatureReading) types.CCMMetrics {
	return types.CCMMetrics{
		Delta:             m.DeltaAccumulation(readings),
		AreaAboveBaseline: m.AreaAboveBaseline(readings),
		Method:            Method,
	}
}
