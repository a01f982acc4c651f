package rules

import (
	"fmt"
	"time"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Input is everything a rule may inspect for one entity.
type Input struct {
	EntityID   string
	ExpiryDate string
	Profile    types.ReferenceProfile
	Stats      types.ExposureStats

	// HER is the Heat Exposure Ratio, or nil when none was computed. Without
	// it StageRule falls back to duration-based classification.
	HER *float64

	// Now is the single evaluation instant used by time-dependent rules.
	Now time.Time
}

// Evaluation is the per-run state rules write to.
type Evaluation struct {
	Stage   types.Stage
	Warning bool
	reasons []types.Reason
}

// Addf appends a formatted reason attributed to rule.
func (e *Evaluation) Addf(rule, format string, args ...any) {
	e.reasons = append(e.reasons, types.Reason{Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// Reasons returns a copy of the reasons recorded so far.
func (e *Evaluation) Reasons() []types.Reason {
	out := make([]types.Reason, len(e.reasons))
	copy(out, e.reasons)
	return out
}

// Rule is one step of the chain. Evaluate returns terminal=true together with
// the verdict when the rule decides the outcome.
type Rule interface {
	Name() string
	Evaluate(in Input, ev *Evaluation) (code types.DecisionCode, terminal bool)
}

// Outcome is the result of one chain run.
type Outcome struct {
	Decision  types.DecisionCode
	DecidedBy string
	Stage     types.Stage
	Warning   bool
	Reasons   []types.Reason
}

// Chain evaluates rules in order. A Chain is immutable and safe for
// concurrent use as long as its rules are stateless.
type Chain struct {
	rules []Rule
}

// NewChain returns a chain over rules. DefaultRule is appended when the last
// rule is not one, so every run yields exactly one verdict.
func NewChain(rules ...Rule) *Chain {
	rs := make([]Rule, len(rules), len(rules)+1)
	copy(rs, rules)
	if len(rs) == 0 {
		rs = append(rs, DefaultRule{})
	} else if _, ok := rs[len(rs)-1].(DefaultRule); !ok {
		rs = append(rs, DefaultRule{})
	}
	return &Chain{rules: rs}
}

// DefaultChain returns the standard seven-rule chain.
func DefaultChain() *Chain {
	return NewChain(
		ExpiryRule{},
		StageRule{},
		ThawRule{},
		FreezeRule{},
		HeatCriticalRule{},
		WarningRule{},
		DefaultRule{},
	)
}

// Names returns the rule names in evaluation order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Name()
	}
	return out
}

// Run evaluates the chain against in.
func (c *Chain) Run(in Input) Outcome {
	ev := &Evaluation{}

	if in.Stats.NoEntries {
		ev.Addf("input", "no temperature entries recorded for %s", in.EntityID)
		return Outcome{
			Decision:  types.DecisionNoData,
			DecidedBy: "input",
			Reasons:   ev.Reasons(),
		}
	}

	for _, r := range c.rules {
		code, terminal := r.Evaluate(in, ev)
		if terminal {
			return Outcome{
				Decision:  code,
				DecidedBy: r.Name(),
				Stage:     ev.Stage,
				Warning:   ev.Warning,
				Reasons:   ev.Reasons(),
			}
		}
	}

	// Only a zero Chain gets here; NewChain always ends in DefaultRule.
	var d DefaultRule
	code, _ := d.Evaluate(in, ev)
	return Outcome{
		Decision:  code,
		DecidedBy: d.Name(),
		Stage:     ev.Stage,
		Warning:   ev.Warning,
		Reasons:   ev.Reasons(),
	}
}
