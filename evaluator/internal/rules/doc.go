// Package rules implements the priority-ordered decision chain that turns an
// entity's exposure statistics into an auditable verdict.
//
// Rules run in a fixed order and the first terminal verdict wins:
//
//	1. ExpiryRule        expired or malformed expiry date  -> REJECTED_EXPIRED
//	2. StageRule         stage from HER; HER >= 1.0        -> REJECTED_HEAT_CRITICAL
//	3. ThawRule          ultra-cold thaw window exceeded   -> REJECTED_THAW_EXPIRED
//	4. FreezeRule        freeze on a freeze-sensitive lot  -> REJECTED_FREEZE
//	5. HeatCriticalRule  max above critical or CCM breach  -> REJECTED_HEAT_CRITICAL
//	6. WarningRule       excursion outside the safe band   (flag only)
//	7. DefaultRule                                         -> ACCEPTED
//
// Every rule evaluated up to and including the terminal one may append
// reasons; reasons are never removed. An input without entries short-circuits
// to NO_DATA before any rule runs.
//
// Business failures such as a malformed expiry date are verdicts, not errors.
package rules
