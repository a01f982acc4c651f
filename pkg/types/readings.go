package types

import "sort"

// SortReadings returns a chronologically sorted copy of readings.
// Readings with equal timestamps keep their input order.
func SortReadings(readings []TemperatureReading) []TemperatureReading {
	out := make([]TemperatureReading, len(readings))
	copy(out, readings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out
}
