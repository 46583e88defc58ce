package collab

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrOverallTimeout marks a collaboration that exceeded its overall timeout
// before the failure policy was satisfied. Test with errors.Is.
var ErrOverallTimeout = errors.New("collaboration overall timeout exceeded")

// InvokerError wraps a failure reported by the external AgentInvoker,
// attributed to the agent that produced it.
type InvokerError struct {
	AgentName string
	Err       error
}

func (e *InvokerError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.AgentName, e.Err)
}

func (e *InvokerError) Unwrap() error { return e.Err }

// UnitTimeoutError marks a single invocation attempt that exceeded the
// per-unit timeout. It is classified separately from InvokerError so callers
// can distinguish slow agents from broken ones.
type UnitTimeoutError struct {
	AgentName string
	Timeout   time.Duration
}

func (e *UnitTimeoutError) Error() string {
	return fmt.Sprintf("agent %s: attempt exceeded per-unit timeout %s", e.AgentName, e.Timeout)
}

// OverallTimeoutError is returned when the overall timeout expired with the
// failure policy still unsatisfied.
type OverallTimeoutError struct {
	Timeout   time.Duration
	Succeeded int
	Total     int
	Units     []*ExecutionUnit
}

func (e *OverallTimeoutError) Error() string {
	return fmt.Sprintf("collaboration timed out after %s with %d/%d successes",
		e.Timeout, e.Succeeded, e.Total)
}

func (e *OverallTimeoutError) Unwrap() error { return ErrOverallTimeout }

// PolicyError is returned when fewer units succeeded than the failure policy
// requires. It carries every non-successful unit so nothing is swallowed.
type PolicyError struct {
	Policy    FailurePolicy
	Succeeded int
	Total     int
	Failures  []*ExecutionUnit
}

func (e *PolicyError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, u := range e.Failures {
		if u.Err != nil {
			parts = append(parts, fmt.Sprintf("%s (%s): %v", u.AgentName, u.State, u.Err))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", u.AgentName, u.State))
		}
	}
	return fmt.Sprintf("failure policy %s not satisfied: %d/%d succeeded [%s]",
		e.Policy, e.Succeeded, e.Total, strings.Join(parts, "; "))
}

// StrategyConstraintError is returned when the failure policy passed but the
// aggregation strategy's own constraints were not met, e.g. best-of-N with
// fewer successes than its minimum.
type StrategyConstraintError struct {
	Strategy string
	Reason   string
}

func (e *StrategyConstraintError) Error() string {
	return fmt.Sprintf("strategy %s constraint unmet: %s", e.Strategy, e.Reason)
}
