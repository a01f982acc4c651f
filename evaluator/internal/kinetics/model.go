package kinetics

import (
	"errors"
	"fmt"
	"math"

	"github.com/vvmguard/vvmguard/pkg/types"
)

var (
	// ErrInvalidModel is returned by New for a non-positive or non-finite
	// Q10 value or a non-finite ideal temperature.
	ErrInvalidModel = errors.New("kinetics: invalid model parameters")

	// ErrInvalidSegment is returned for segments with a negative or
	// non-finite duration or a NaN temperature.
	ErrInvalidSegment = errors.New("kinetics: invalid exposure segment")
)

// Model is a Q10 degradation calculator for one reference profile.
// A Model is immutable and safe for concurrent use.
type Model struct {
	q10   float64
	ideal float64
}

// New returns a Model for the given Q10 coefficient and ideal temperature (°C).
func New(q10, idealTemp float64) (*Model, error) {
	if math.IsNaN(q10) || math.IsInf(q10, 0) || q10 <= 0 {
		return nil, fmt.Errorf("%w: q10 must be a positive number, got %v", ErrInvalidModel, q10)
	}
	if math.IsNaN(idealTemp) || math.IsInf(idealTemp, 0) {
		return nil, fmt.Errorf("%w: ideal temperature must be finite, got %v", ErrInvalidModel, idealTemp)
	}
	return &Model{q10: q10, ideal: idealTemp}, nil
}

// Q10 returns the model coefficient.
func (m *Model) Q10() float64 { return m.q10 }

// IdealTemp returns the reference temperature in °C.
func (m *Model) IdealTemp() float64 { return m.ideal }

// AccelerationFactor returns the degradation rate multiplier at actual °C.
// Results that overflow or are not a number are reported as +Inf.
func (m *Model) AccelerationFactor(actual float64) float64 {
	if actual <= m.ideal {
		return 1.0
	}
	factor := math.Pow(m.q10, (actual-m.ideal)/10)
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return math.Inf(1)
	}
	return factor
}

// CumulativeDegradationHours sums duration × factor over segs and returns the
// equivalent hours of shelf life consumed at the ideal temperature.
//
// Each segment contributes independently. A zero-length segment contributes
// nothing even when its factor is +Inf.
func (m *Model) CumulativeDegradationHours(segs []types.ExposureSegment) (float64, error) {
	var total float64
	for i, seg := range segs {
		if err := validSegment(seg); err != nil {
			return 0, fmt.Errorf("segment %d: %w", i, err)
		}
		total += m.contribution(seg)
	}
	return total, nil
}

// contribution returns the degradation hours of a single valid segment.
func (m *Model) contribution(seg types.ExposureSegment) float64 {
	if seg.DurationHours == 0 {
		return 0
	}
	return seg.DurationHours * m.AccelerationFactor(seg.Temperature)
}

func validSegment(seg types.ExposureSegment) error {
	d := seg.DurationHours
	switch {
	case math.IsNaN(d) || math.IsInf(d, 0):
		return fmt.Errorf("%w: duration %v is not finite", ErrInvalidSegment, d)
	case d < 0:
		return fmt.Errorf("%w: negative duration %v h", ErrInvalidSegment, d)
	case math.IsNaN(seg.Temperature):
		return fmt.Errorf("%w: temperature is NaN", ErrInvalidSegment)
	}
	return nil
}
