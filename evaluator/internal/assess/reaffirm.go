package assess

import (
	"fmt"
	"time"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Reaffirm carries an earlier rejection over to a result that no longer
// rejects, for example because the readings that caused it have left the
// evaluation window. A discarded lot never returns to use. Results that
// already reject, or a prev that is not a rejection, are returned unchanged.
func Reaffirm(res types.DecisionResult, prev types.DecisionCode, rejectedAt time.Time) types.DecisionResult {
	if res.DecisionCode.IsRejection() || !prev.IsRejection() {
		return res
	}
	res.DecisionCode = prev
	res.Status = types.StatusDiscard

	reasons := make([]types.Reason, 0, len(res.Reasons)+1)
	for _, r := range res.Reasons {
		if r.Rule != alertRule {
			reasons = append(reasons, r)
		}
	}
	reasons = append(reasons, types.Reason{
		Rule:    "history",
		Message: fmt.Sprintf("rejected as %s at %s, rejection stands", prev, rejectedAt.UTC().Format(time.RFC3339)),
	})
	level, why := AlertFor(res.Status, res.HER, res.IsThawing)
	res.AlertLevel = level
	res.Reasons = append(reasons, types.Reason{Rule: alertRule, Message: why})
	res.Recommendations = Recommend(res)
	return res
}
