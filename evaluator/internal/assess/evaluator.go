package assess

import (
	"errors"
	"fmt"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/ccm"
	"github.com/vvmguard/vvmguard/evaluator/internal/exposure"
	"github.com/vvmguard/vvmguard/evaluator/internal/kinetics"
	"github.com/vvmguard/vvmguard/evaluator/internal/rules"
	"github.com/vvmguard/vvmguard/evaluator/internal/stage"
	"github.com/vvmguard/vvmguard/pkg/types"
)

// ErrUnknownProfile is returned when a lot references a profile the lookup
// does not know.
var ErrUnknownProfile = errors.New("assess: unknown profile")

// ProfileLookup resolves reference profiles by id. Implementations must not
// change while a batch is being evaluated.
type ProfileLookup interface {
	Profile(id string) (types.ReferenceProfile, bool)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMonitor replaces the default CCM monitor.
func WithMonitor(m *ccm.Monitor) Option {
	return func(e *Evaluator) { e.monitor = m }
}

// WithChain replaces the default rule chain.
func WithChain(c *rules.Chain) Option {
	return func(e *Evaluator) { e.chain = c }
}

// Evaluator is the per-lot safety pipeline.
type Evaluator struct {
	lookup  ProfileLookup
	monitor *ccm.Monitor
	chain   *rules.Chain
}

// New returns an Evaluator bound to lookup.
func New(lookup ProfileLookup, opts ...Option) *Evaluator {
	e := &Evaluator{
		lookup:  lookup,
		monitor: ccm.New(ccm.DefaultDeltaThreshold, ccm.DefaultBaseTemp),
		chain:   rules.DefaultChain(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate resolves the lot's profile and evaluates readings against it.
func (e *Evaluator) Evaluate(lot types.Lot, readings []types.TemperatureReading, now time.Time) (types.DecisionResult, error) {
	if e.lookup == nil {
		return types.DecisionResult{}, fmt.Errorf("%w: %q (no profile lookup)", ErrUnknownProfile, lot.ProfileID)
	}
	p, ok := e.lookup.Profile(lot.ProfileID)
	if !ok {
		return types.DecisionResult{}, fmt.Errorf("%w: %q for lot %s", ErrUnknownProfile, lot.ProfileID, lot.ID)
	}
	return e.EvaluateProfile(lot, p, readings, now)
}

// EvaluateProfile evaluates readings for lot against an explicit profile.
//
// now is passed explicitly so callers (and tests) control the clock. It is the
// only notion of time used by the evaluation.
//
// An error is returned only for invalid input (profile model parameters or
// malformed segments); business outcomes are encoded in the result.
func (e *Evaluator) EvaluateProfile(lot types.Lot, p types.ReferenceProfile, readings []types.TemperatureReading, now time.Time) (types.DecisionResult, error) {
	sorted := types.SortReadings(readings)

	res := types.DecisionResult{
		EntityID:    lot.ID,
		ProfileID:   p.ID,
		Category:    p.Category,
		EvaluatedAt: now,
	}
	res.ThawRemainingHours, res.IsThawing = ThawRemaining(p.ThawPolicy, now)

	in := rules.Input{
		EntityID:   lot.ID,
		ExpiryDate: lot.ExpiryDate,
		Profile:    p,
		Now:        now,
	}

	if len(sorted) == 0 {
		in.Stats = exposure.Aggregate(nil, exposure.LimitsFor(p))
		e.finish(&res, e.chain.Run(in), in.Stats, false)
		return res, nil
	}

	model, err := kinetics.New(p.Q10Value, p.IdealTemp)
	if err != nil {
		return types.DecisionResult{}, fmt.Errorf("assess: lot %s profile %s: %w", lot.ID, p.ID, err)
	}
	hours, err := model.CumulativeDegradationHours(exposure.Segments(sorted))
	if err != nil {
		return types.DecisionResult{}, fmt.Errorf("assess: lot %s: %w", lot.ID, err)
	}

	res.CCM = e.monitor.Combined(sorted)
	res.DegradationHours = hours
	res.HER = HeatExposureRatio(hours, p.ShelfLifeDays)
	res.StabilityBudgetConsumedPct = BudgetConsumedPct(res.HER)

	in.Stats = exposure.Aggregate(exposure.Entries(sorted), exposure.LimitsFor(p))
	in.HER = &res.HER
	e.finish(&res, e.chain.Run(in), in.Stats, true)
	return res, nil
}

// alertRule names the reason that explains the alert level. It is always last.
const alertRule = "alert"

// finish fills the verdict-derived fields of res. When a HER was computed
// the stage follows it even if the chain stopped before the stage rule.
func (e *Evaluator) finish(res *types.DecisionResult, out rules.Outcome, st types.ExposureStats, hasHER bool) {
	res.Stats = st
	res.DecisionCode = out.Decision
	res.Stage = out.Stage
	if hasHER {
		res.Stage = stage.FromHER(res.HER)
	}
	res.HasWarning = out.Warning
	res.Status = StatusFor(out.Decision, res.HER, st)

	level, why := AlertFor(res.Status, res.HER, res.IsThawing)
	res.AlertLevel = level

	res.Reasons = append(out.Reasons, types.Reason{Rule: alertRule, Message: why})
	res.Recommendations = Recommend(*res)
}
