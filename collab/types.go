// Package collab implements parallel multi-agent collaboration: a prompt is
// fanned out to several agents concurrently under resource and time bounds,
// the outcome is classified by a failure policy, and the successful outputs
// are reduced to one result by a pluggable aggregation strategy.
package collab

import (
	"context"
	"time"
)

// AgentInvoker executes one agent against a prompt and returns its output.
// The context carries cancellation and per-unit deadlines; invokers that
// ignore it are still bounded by the orchestrator's own timeout enforcement.
type AgentInvoker func(ctx context.Context, agentName, prompt string) (string, error)

// UnitState is the lifecycle state of one execution unit.
type UnitState string

const (
	UnitPending   UnitState = "pending"
	UnitRunning   UnitState = "running"
	UnitSucceeded UnitState = "succeeded"
	UnitFailed    UnitState = "failed"
	UnitCancelled UnitState = "cancelled"
	UnitTimedOut  UnitState = "timed_out"
)

// Terminal reports whether the state is final.
func (s UnitState) Terminal() bool {
	switch s {
	case UnitSucceeded, UnitFailed, UnitCancelled, UnitTimedOut:
		return true
	}
	return false
}

// ExecutionUnit is one concurrent agent attempt. Units are written only by
// the goroutine that runs them and become safe to read once Collaborate
// returns.
type ExecutionUnit struct {
	AgentName  string    `json:"agent_name"`
	State      UnitState `json:"state"`
	Attempt    int       `json:"attempt"` // 1-based; counts retries
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Output     string    `json:"output,omitempty"`
	Err        error     `json:"-"`

	// index is the unit's position in the input agent list, used as the
	// final tie-break when completion times are equal.
	index int
}

// Succeeded reports whether the unit finished with a usable output.
func (u *ExecutionUnit) Succeeded() bool {
	return u.State == UnitSucceeded
}

// Duration is the wall-clock time from first start to final completion.
func (u *ExecutionUnit) Duration() time.Duration {
	if u.StartedAt.IsZero() || u.FinishedAt.IsZero() {
		return 0
	}
	return u.FinishedAt.Sub(u.StartedAt)
}

// Result is the outcome of a successful collaboration call.
type Result struct {
	// Output is the aggregated text chosen or synthesized by the strategy.
	Output string `json:"output"`

	// StrategyName names the aggregation strategy that produced Output.
	StrategyName string `json:"strategy_name"`

	// ResultCount is the number of units folded into the aggregate.
	ResultCount int `json:"result_count"`

	// Confidence is the strategy-defined confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Units holds every execution unit, successful and failed, for
	// observability.
	Units []*ExecutionUnit `json:"units"`
}
