package invoker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/switchboard-dev/switchboard/collab"
)

// RateLimiter throttles invocations with a global limiter plus one limiter
// per agent, so one chatty agent cannot starve the rest of their own quota.
type RateLimiter struct {
	global *rate.Limiter
	agents map[string]*rate.Limiter
	mu     sync.Mutex

	perSecond float64
	burst     int
}

// NewRateLimiter creates a limiter allowing perSecond invocations with the
// given burst, applied both globally and per agent.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		global:    rate.NewLimiter(rate.Limit(perSecond), burst),
		agents:    make(map[string]*rate.Limiter),
		perSecond: perSecond,
		burst:     burst,
	}
}

// Wait blocks until a slot is available for the agent or the context ends.
func (rl *RateLimiter) Wait(ctx context.Context, agentName string) error {
	if err := rl.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}
	if err := rl.agentLimiter(agentName).Wait(ctx); err != nil {
		return fmt.Errorf("agent rate limit: %w", err)
	}
	return nil
}

func (rl *RateLimiter) agentLimiter(agentName string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.agents[agentName]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rl.perSecond), rl.burst)
		rl.agents[agentName] = limiter
	}
	return limiter
}

// RateLimited wraps next so every invocation first waits on the limiter.
func RateLimited(next collab.AgentInvoker, limiter *RateLimiter) collab.AgentInvoker {
	return func(ctx context.Context, agentName, prompt string) (string, error) {
		if err := limiter.Wait(ctx, agentName); err != nil {
			return "", err
		}
		return next(ctx, agentName, prompt)
	}
}
