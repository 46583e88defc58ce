package collab

import "fmt"

type policyKind int

const (
	policyAll policyKind = iota
	policyMajority
	policyMinimum
	policyBestEffort
	policyFirstSuccess
)

// FailurePolicy decides whether a collaboration call as a whole succeeded,
// given how many units succeeded. It is independent of the aggregation
// strategy applied to the successful subset. The zero value is RequireAll.
type FailurePolicy struct {
	kind policyKind
	min  int
}

// PolicyAll requires every unit to succeed.
func PolicyAll() FailurePolicy { return FailurePolicy{kind: policyAll} }

// PolicyMajority requires strictly more than half of the units to succeed.
func PolicyMajority() FailurePolicy { return FailurePolicy{kind: policyMajority} }

// PolicyMinimum requires at least n units to succeed.
func PolicyMinimum(n int) FailurePolicy { return FailurePolicy{kind: policyMinimum, min: n} }

// PolicyBestEffort requires at least one unit to succeed.
func PolicyBestEffort() FailurePolicy { return FailurePolicy{kind: policyBestEffort} }

// PolicyFirstSuccess requires one success and cancels all remaining units as
// soon as the first unit succeeds.
func PolicyFirstSuccess() FailurePolicy { return FailurePolicy{kind: policyFirstSuccess} }

// Satisfied reports whether succeeded successes out of total units meet the
// policy's quorum.
func (p FailurePolicy) Satisfied(succeeded, total int) bool {
	switch p.kind {
	case policyAll:
		return succeeded == total
	case policyMajority:
		return succeeded > total/2
	case policyMinimum:
		return succeeded >= p.min
	case policyBestEffort, policyFirstSuccess:
		return succeeded >= 1
	}
	return false
}

// cancelOnFirstSuccess reports whether the first success should cancel all
// still-running units.
func (p FailurePolicy) cancelOnFirstSuccess() bool {
	return p.kind == policyFirstSuccess
}

func (p FailurePolicy) String() string {
	switch p.kind {
	case policyAll:
		return "require_all"
	case policyMajority:
		return "require_majority"
	case policyMinimum:
		return fmt.Sprintf("require_minimum(%d)", p.min)
	case policyBestEffort:
		return "best_effort"
	case policyFirstSuccess:
		return "first_success"
	}
	return "unknown"
}
