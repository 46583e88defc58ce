package collab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/switchboard-dev/switchboard/internal/observability"
)

// Orchestrator fans a prompt out to multiple agents and aggregates the
// results. It is stateless and safe for concurrent use.
type Orchestrator struct {
	logger *log.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger used for per-call summaries.
func WithLogger(logger *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates a collaboration orchestrator.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{logger: log.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Collaborate runs prompt against every named agent concurrently, classifies
// the outcome with opts.Policy, and reduces the successful outputs with
// strategy. The returned Result carries every unit, failed ones included.
func (o *Orchestrator) Collaborate(ctx context.Context, prompt string, agentNames []string, invoker AgentInvoker, strategy Strategy, opts Options) (*Result, error) {
	if len(agentNames) == 0 {
		return nil, errors.New("collab: no agents to collaborate")
	}
	if invoker == nil {
		return nil, errors.New("collab: nil invoker")
	}
	if strategy == nil {
		return nil, errors.New("collab: nil strategy")
	}

	ctx, span := observability.StartSpanWithOtel(ctx, "collab.collaborate",
		trace.WithAttributes(
			attribute.StringSlice("collab.agents", agentNames),
			attribute.Int("collab.agent_count", len(agentNames)),
			attribute.String("collab.strategy", strategy.Name()),
			attribute.String("collab.policy", opts.Policy.String()),
		),
	)
	defer span.End()

	start := time.Now()

	overallCtx := ctx
	if opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		overallCtx, cancel = context.WithTimeout(ctx, opts.OverallTimeout)
		defer cancel()
	}
	// runCtx is cancelled to stop the fan-out early: on the first success
	// under the first-success policy, or on the first permanent failure
	// when ContinueOnFailure is off.
	runCtx, cancelRun := context.WithCancel(overallCtx)
	defer cancelRun()

	limit := int64(opts.MaxConcurrency)
	if limit <= 0 {
		limit = int64(len(agentNames))
	}
	sem := semaphore.NewWeighted(limit)

	units := make([]*ExecutionUnit, len(agentNames))
	var wg sync.WaitGroup
	for i, name := range agentNames {
		unit := &ExecutionUnit{AgentName: name, State: UnitPending, index: i}
		units[i] = unit
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runUnit(runCtx, cancelRun, sem, unit, prompt, invoker, opts)
		}()
	}
	wg.Wait()

	succeeded := make([]*ExecutionUnit, 0, len(units))
	failures := make([]*ExecutionUnit, 0)
	for _, u := range units {
		if u.Succeeded() {
			succeeded = append(succeeded, u)
		} else {
			failures = append(failures, u)
		}
	}
	sortByCompletion(succeeded)

	span.SetAttributes(
		attribute.Int64("collab.duration_ms", time.Since(start).Milliseconds()),
		attribute.Int("collab.success_count", len(succeeded)),
		attribute.Int("collab.failure_count", len(failures)),
	)

	if !opts.Policy.Satisfied(len(succeeded), len(units)) {
		var err error
		if errors.Is(overallCtx.Err(), context.DeadlineExceeded) {
			err = &OverallTimeoutError{
				Timeout:   opts.OverallTimeout,
				Succeeded: len(succeeded),
				Total:     len(units),
				Units:     units,
			}
		} else {
			err = &PolicyError{
				Policy:    opts.Policy,
				Succeeded: len(succeeded),
				Total:     len(units),
				Failures:  failures,
			}
		}
		span.RecordError(err)
		return nil, err
	}

	// The policy gate passed, so aggregation proceeds on the parent
	// context even if the fan-out window has since closed.
	result, err := strategy.Reduce(ctx, ReduceInput{
		Succeeded: succeeded,
		Total:     len(units),
		Policy:    opts.Policy,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result.StrategyName = strategy.Name()
	result.Units = units
	o.logger.Printf("[collab] %d/%d units succeeded (policy=%s, strategy=%s) in %s",
		len(succeeded), len(units), opts.Policy, strategy.Name(), time.Since(start).Round(time.Millisecond))
	return result, nil
}

// runUnit drives one unit through its attempt loop until a terminal state.
// The unit is written only from this goroutine.
func (o *Orchestrator) runUnit(ctx context.Context, cancelAll context.CancelFunc, sem *semaphore.Weighted, unit *ExecutionUnit, prompt string, invoker AgentInvoker, opts Options) {
	for attempt := 1; ; attempt++ {
		unit.Attempt = attempt

		if err := sem.Acquire(ctx, 1); err != nil {
			o.finish(unit, UnitCancelled, "", ctx.Err())
			return
		}
		if unit.StartedAt.IsZero() {
			unit.StartedAt = time.Now()
		}
		unit.State = UnitRunning

		output, err := o.invokeOnce(ctx, invoker, unit.AgentName, prompt, opts.PerUnitTimeout)
		sem.Release(1)

		if err == nil {
			o.finish(unit, UnitSucceeded, output, nil)
			if opts.Policy.cancelOnFirstSuccess() {
				cancelAll()
			}
			return
		}

		if ctx.Err() != nil {
			o.finish(unit, UnitCancelled, "", err)
			return
		}

		state := UnitFailed
		var timeoutErr *UnitTimeoutError
		if errors.As(err, &timeoutErr) {
			state = UnitTimedOut
		}
		o.finish(unit, state, "", err)

		if attempt <= opts.Retry.MaxRetries {
			o.logger.Printf("[collab] agent %s attempt %d failed, retrying in %s: %v",
				unit.AgentName, attempt, opts.Retry.RetryDelay, err)
			if !o.backoff(ctx, opts.Retry.RetryDelay) {
				o.finish(unit, UnitCancelled, "", ctx.Err())
				return
			}
			continue
		}

		if !opts.ContinueOnFailure {
			cancelAll()
		}
		return
	}
}

// invokeOnce runs one invocation attempt. The per-unit timeout is enforced
// here with a select rather than trusted to the invoker, so an invoker that
// ignores context cancellation still cannot hold the unit past its bound.
func (o *Orchestrator) invokeOnce(ctx context.Context, invoker AgentInvoker, agentName, prompt string, timeout time.Duration) (string, error) {
	invokeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type invocation struct {
		output string
		err    error
	}
	done := make(chan invocation, 1)
	go func() {
		output, err := invoker(invokeCtx, agentName, prompt)
		done <- invocation{output: output, err: err}
	}()

	unitTimedOut := func() bool {
		return errors.Is(invokeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	}

	select {
	case inv := <-done:
		if inv.err == nil {
			return inv.output, nil
		}
		if unitTimedOut() {
			return "", &UnitTimeoutError{AgentName: agentName, Timeout: timeout}
		}
		return "", &InvokerError{AgentName: agentName, Err: inv.err}
	case <-invokeCtx.Done():
		if unitTimedOut() {
			return "", &UnitTimeoutError{AgentName: agentName, Timeout: timeout}
		}
		return "", fmt.Errorf("invocation of %s interrupted: %w", agentName, ctx.Err())
	}
}

// finish records a terminal transition.
func (o *Orchestrator) finish(unit *ExecutionUnit, state UnitState, output string, err error) {
	now := time.Now()
	if unit.StartedAt.IsZero() {
		unit.StartedAt = now
	}
	unit.State = state
	unit.Output = output
	unit.Err = err
	unit.FinishedAt = now
}

// backoff sleeps for delay, returning false if the context ended first.
func (o *Orchestrator) backoff(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
