package collab

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOrchestrator() *Orchestrator {
	return NewOrchestrator(WithLogger(log.New(io.Discard, "", 0)))
}

// blockUntilCancelled is an invoker that cooperates with cancellation but
// otherwise never finishes within test timescales.
func blockUntilCancelled(ctx context.Context, _, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Second):
		return "too late", nil
	}
}

func TestCollaborateValidation(t *testing.T) {
	o := quietOrchestrator()
	ctx := context.Background()
	echo := func(_ context.Context, agent, _ string) (string, error) { return agent, nil }

	_, err := o.Collaborate(ctx, "p", nil, echo, NewVoting(), DefaultOptions())
	assert.Error(t, err)

	_, err = o.Collaborate(ctx, "p", []string{"a"}, nil, NewVoting(), DefaultOptions())
	assert.Error(t, err)

	_, err = o.Collaborate(ctx, "p", []string{"a"}, echo, nil, DefaultOptions())
	assert.Error(t, err)
}

func TestCollaborateVoting(t *testing.T) {
	invoker := func(_ context.Context, agent, _ string) (string, error) {
		if agent == "dissenter" {
			return "no", nil
		}
		return "yes", nil
	}

	opts := DefaultOptions()
	opts.Policy = PolicyAll()
	result, err := quietOrchestrator().Collaborate(context.Background(), "vote now",
		[]string{"a", "b", "dissenter"}, invoker, NewVoting(), opts)
	require.NoError(t, err)

	assert.Equal(t, "yes", result.Output)
	assert.Equal(t, "voting", result.StrategyName)
	assert.Equal(t, 2, result.ResultCount)
	assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
	require.Len(t, result.Units, 3)
	for _, u := range result.Units {
		assert.Equal(t, UnitSucceeded, u.State)
		assert.Equal(t, 1, u.Attempt)
		assert.False(t, u.FinishedAt.Before(u.StartedAt))
	}
}

func TestRequireMajorityThreeAgents(t *testing.T) {
	failing := map[string]bool{"bad": true}
	run := func(failures ...string) (*Result, error) {
		for _, f := range failures {
			failing[f] = true
		}
		invoker := func(_ context.Context, agent, _ string) (string, error) {
			if failing[agent] {
				return "", errors.New("model unavailable")
			}
			return "answer", nil
		}
		opts := DefaultOptions()
		opts.Policy = PolicyMajority()
		return quietOrchestrator().Collaborate(context.Background(), "p",
			[]string{"good1", "good2", "bad"}, invoker, NewVoting(), opts)
	}

	// Two of three succeed: the majority holds.
	result, err := run()
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Output)

	// One of three: the policy fails with both failures attached.
	_, err = run("good2")
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, 1, policyErr.Succeeded)
	assert.Equal(t, 3, policyErr.Total)
	assert.Len(t, policyErr.Failures, 2)
	for _, u := range policyErr.Failures {
		var invokerErr *InvokerError
		require.ErrorAs(t, u.Err, &invokerErr)
		assert.Equal(t, u.AgentName, invokerErr.AgentName)
	}
}

func TestFirstSuccessCancelsRemaining(t *testing.T) {
	invoker := func(ctx context.Context, agent, prompt string) (string, error) {
		if agent == "sprinter" {
			time.Sleep(10 * time.Millisecond)
			return "done first", nil
		}
		return blockUntilCancelled(ctx, agent, prompt)
	}

	opts := DefaultOptions()
	opts.Policy = PolicyFirstSuccess()
	start := time.Now()
	result, err := quietOrchestrator().Collaborate(context.Background(), "race",
		[]string{"plodder1", "sprinter", "plodder2"}, invoker, NewFirstSuccess(), opts)
	require.NoError(t, err)

	assert.Equal(t, "done first", result.Output)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Less(t, time.Since(start), 2*time.Second, "losers must be cancelled, not awaited")

	for _, u := range result.Units {
		assert.True(t, u.State.Terminal(), "unit %s still in state %s", u.AgentName, u.State)
		if u.AgentName != "sprinter" {
			assert.Equal(t, UnitCancelled, u.State)
		}
	}
}

func TestStrategyConstraintUnderBestEffort(t *testing.T) {
	invoker := func(_ context.Context, agent, _ string) (string, error) {
		if agent == "ok1" || agent == "ok2" {
			return "fine", nil
		}
		return "", errors.New("boom")
	}

	opts := DefaultOptions() // best effort: two successes satisfy the policy
	_, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"ok1", "ok2", "bad1", "bad2", "bad3"},
		invoker, NewBestOfN(lengthScorer, WithMinimumResults(3)), opts)

	var constraintErr *StrategyConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, "best_of_n", constraintErr.Strategy)
}

func TestOverallTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.OverallTimeout = 30 * time.Millisecond

	start := time.Now()
	_, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"slow1", "slow2"}, blockUntilCancelled, NewVoting(), opts)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverallTimeout)
	var timeoutErr *OverallTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 0, timeoutErr.Succeeded)
	assert.Equal(t, 2, timeoutErr.Total)
	assert.Less(t, time.Since(start), 2*time.Second)
	for _, u := range timeoutErr.Units {
		assert.Equal(t, UnitCancelled, u.State)
	}
}

func TestOverallTimeoutAfterPolicySatisfied(t *testing.T) {
	// The quick agent satisfies best-effort before the window closes, so
	// the call succeeds even though the slow agent was cut off.
	invoker := func(ctx context.Context, agent, prompt string) (string, error) {
		if agent == "quick" {
			return "made it", nil
		}
		return blockUntilCancelled(ctx, agent, prompt)
	}

	opts := DefaultOptions()
	opts.OverallTimeout = 50 * time.Millisecond
	result, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"quick", "slow"}, invoker, NewFirstSuccess(), opts)
	require.NoError(t, err)
	assert.Equal(t, "made it", result.Output)
}

func TestPerUnitTimeoutWithUncooperativeInvoker(t *testing.T) {
	// This invoker ignores its context entirely; the orchestrator's own
	// timeout enforcement must bound it anyway.
	invoker := func(_ context.Context, _, _ string) (string, error) {
		time.Sleep(2 * time.Second)
		return "way too late", nil
	}

	opts := DefaultOptions()
	opts.PerUnitTimeout = 30 * time.Millisecond

	start := time.Now()
	_, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"stubborn"}, invoker, NewVoting(), opts)

	assert.Less(t, time.Since(start), time.Second)
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Len(t, policyErr.Failures, 1)
	assert.Equal(t, UnitTimedOut, policyErr.Failures[0].State)
	var timeoutErr *UnitTimeoutError
	assert.ErrorAs(t, policyErr.Failures[0].Err, &timeoutErr)
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	invoker := func(_ context.Context, _, _ string) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	}

	opts := DefaultOptions()
	opts.Retry = RetryPolicy{MaxRetries: 2, RetryDelay: 5 * time.Millisecond}
	result, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"flaky"}, invoker, NewFirstSuccess(), opts)
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.Output)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, result.Units[0].Attempt)
	assert.Equal(t, UnitSucceeded, result.Units[0].State)
}

func TestRetriesNeverExceedMax(t *testing.T) {
	var calls atomic.Int32
	invoker := func(_ context.Context, _, _ string) (string, error) {
		calls.Add(1)
		return "", errors.New("permanent")
	}

	opts := DefaultOptions()
	opts.Retry = RetryPolicy{MaxRetries: 2}
	_, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"doomed"}, invoker, NewVoting(), opts)

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, int32(3), calls.Load(), "one initial attempt plus two retries")
	assert.Equal(t, 3, policyErr.Failures[0].Attempt)
}

func TestMaxConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	invoker := func(_ context.Context, agent, _ string) (string, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return agent, nil
	}

	opts := DefaultOptions()
	opts.MaxConcurrency = 2
	opts.Policy = PolicyAll()
	result, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"a", "b", "c", "d", "e", "f"}, invoker, NewEnsemble(nil), opts)
	require.NoError(t, err)

	assert.Equal(t, 6, result.ResultCount)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFailFastCancelsRemaining(t *testing.T) {
	invoker := func(ctx context.Context, agent, prompt string) (string, error) {
		if agent == "bad" {
			return "", errors.New("broken")
		}
		return blockUntilCancelled(ctx, agent, prompt)
	}

	opts := DefaultOptions()
	opts.Policy = PolicyAll()
	opts.ContinueOnFailure = false

	start := time.Now()
	_, err := quietOrchestrator().Collaborate(context.Background(), "p",
		[]string{"bad", "slow1", "slow2"}, invoker, NewVoting(), opts)

	assert.Less(t, time.Since(start), 2*time.Second)
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	cancelled := 0
	for _, u := range policyErr.Failures {
		if u.State == UnitCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 2, cancelled, "remaining units must be cancelled after the first failure")
}
