package collab

import "time"

// RetryPolicy controls per-unit retries of failed or timed-out invocations.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first
	// (0 = no retries). A unit's Attempt never exceeds MaxRetries + 1.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the pause before each retry. The unit's concurrency
	// slot is released for the duration of the pause.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Options configures one collaboration call. The struct is copied on entry
// and never mutated by the orchestrator.
type Options struct {
	// MaxConcurrency bounds how many units may run simultaneously
	// (0 = unbounded).
	MaxConcurrency int `yaml:"max_concurrency"`

	// OverallTimeout bounds the whole call including retries
	// (0 = unbounded). It dominates PerUnitTimeout.
	OverallTimeout time.Duration `yaml:"overall_timeout"`

	// PerUnitTimeout bounds a single invocation attempt (0 = unbounded).
	// It is enforced by the orchestrator itself, so even an invoker that
	// ignores context cancellation cannot hold a unit past this bound.
	PerUnitTimeout time.Duration `yaml:"per_unit_timeout"`

	// Policy decides whether the call as a whole succeeded.
	Policy FailurePolicy `yaml:"-"`

	// ContinueOnFailure keeps the remaining units running after one unit
	// exhausts its retries and fails. When false, the first permanent
	// failure cancels the rest of the fan-out.
	ContinueOnFailure bool `yaml:"continue_on_failure"`

	// Retry controls per-unit retry behavior.
	Retry RetryPolicy `yaml:"retry"`
}

// DefaultOptions returns permissive defaults: unbounded concurrency, no
// timeouts, best-effort policy, keep going after individual failures.
func DefaultOptions() Options {
	return Options{
		Policy:            PolicyBestEffort(),
		ContinueOnFailure: true,
	}
}
