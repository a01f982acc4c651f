// Package stage classifies cumulative heat exposure into VVM stages.
//
// Two independent strategies exist and are never reconciled here: FromHER,
// which is authoritative whenever a Heat Exposure Ratio has been computed,
// and FromDuration/FromMinutes, a fallback for contexts without one.
// All bands are half-open and lower-inclusive.
package stage

import (
	"math"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Duration band lower bounds, in days above the storage range.
const (
	DaysA = 2.0
	DaysB = 6.0
	DaysC = 11.0
	DaysD = 14.0
)

// HER band lower bounds.
const (
	HERA = 0.1
	HERB = 0.4
	HERC = 0.7
	HERD = 1.0
)

// FromDuration classifies cumulative heat exposure in days.
func FromDuration(days float64) types.Stage {
	switch {
	case days >= DaysD:
		return types.StageD
	case days >= DaysC:
		return types.StageC
	case days >= DaysB:
		return types.StageB
	case days >= DaysA:
		return types.StageA
	default:
		return types.StageNone
	}
}

// FromMinutes classifies cumulative heat exposure in minutes.
func FromMinutes(minutes float64) types.Stage {
	return FromDuration(minutes / (24 * 60))
}

// FromHER classifies a Heat Exposure Ratio. NaN is treated as total loss.
func FromHER(her float64) types.Stage {
	switch {
	case math.IsNaN(her), her >= HERD:
		return types.StageD
	case her >= HERC:
		return types.StageC
	case her >= HERB:
		return types.StageB
	case her >= HERA:
		return types.StageA
	default:
		return types.StageNone
	}
}
