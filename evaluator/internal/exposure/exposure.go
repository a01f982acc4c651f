package exposure

import (
	"math"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Entry is one temperature held for a duration. A NaN Temperature marks a
// sensor gap: the entry is excluded from every aggregate.
type Entry struct {
	Temperature     float64
	DurationMinutes float64
}

// HasTemperature reports whether the entry carries a value.
func (e Entry) HasTemperature() bool {
	return !math.IsNaN(e.Temperature)
}

// Limits are the thresholds Aggregate compares entries against.
type Limits struct {
	FreezeThreshold float64
	MaxLimit        float64
	CCMLimit        float64
}

// LimitsFor extracts the aggregation limits of a profile.
func LimitsFor(p types.ReferenceProfile) Limits {
	return Limits{
		FreezeThreshold: p.DecisionThresholds.FreezeThreshold,
		MaxLimit:        p.TemperatureRange.Max,
		CCMLimit:        p.DecisionThresholds.CCMLimit,
	}
}

// Aggregate computes ExposureStats over entries in one pass.
// Empty input yields zero stats with NoEntries set.
func Aggregate(entries []Entry, lim Limits) types.ExposureStats {
	if len(entries) == 0 {
		return types.ExposureStats{NoEntries: true}
	}

	st := types.ExposureStats{EntryCount: len(entries)}
	var (
		sum    float64
		valued int
	)
	for _, e := range entries {
		if !e.HasTemperature() {
			continue
		}
		t := e.Temperature
		if t < lim.FreezeThreshold {
			st.FreezeDurationMinutes += e.DurationMinutes
		}
		if t > lim.MaxLimit {
			st.HeatDurationMinutes += e.DurationMinutes
		}
		if valued == 0 || t < st.MinTemp {
			st.MinTemp = t
		}
		if valued == 0 || t > st.MaxTemp {
			st.MaxTemp = t
		}
		sum += t
		valued++
	}
	if valued > 0 {
		st.AvgTemp = sum / float64(valued)
	}
	st.HasFreeze = st.FreezeDurationMinutes > 0
	st.HasCCMViolation = st.HeatDurationMinutes > lim.CCMLimit
	return st
}

// Entries converts readings into entries. Readings are sorted chronologically
// first; each entry lasts until the next reading and the last one lasts zero.
func Entries(readings []types.TemperatureReading) []Entry {
	sorted := types.SortReadings(readings)
	out := make([]Entry, len(sorted))
	for i, r := range sorted {
		out[i].Temperature = r.Value
		if i < len(sorted)-1 {
			out[i].DurationMinutes = sorted[i+1].RecordedAt.Sub(r.RecordedAt).Minutes()
		}
	}
	return out
}

// Segments builds left-endpoint exposure segments between consecutive
// readings, sorted chronologically. Fewer than two readings yield none.
func Segments(readings []types.TemperatureReading) []types.ExposureSegment {
	if len(readings) < 2 {
		return nil
	}
	sorted := types.SortReadings(readings)
	out := make([]types.ExposureSegment, 0, len(sorted)-1)
	for i := 0; i < len(sorted)-1; i++ {
		out = append(out, types.ExposureSegment{
			Temperature:   sorted[i].Value,
			DurationHours: sorted[i+1].RecordedAt.Sub(sorted[i].RecordedAt).Hours(),
		})
	}
	return out
}
