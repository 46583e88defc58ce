// Package invoker provides AgentInvoker implementations for the dispatch
// core: an OpenAI-compatible chat invoker for production, a rate-limiting
// decorator, and a mock for tests.
package invoker

import (
	"context"
	"sync"
	"time"

	"github.com/switchboard-dev/switchboard/collab"
)

// Mock is a configurable in-memory invoker for tests. It records every call
// and is safe for concurrent use.
type Mock struct {
	// Responses maps agent name to the output returned for it.
	Responses map[string]string

	// Errors maps agent name to an error returned instead of output.
	Errors map[string]error

	// Delay is slept (context-aware) before every response.
	Delay time.Duration

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded invocation.
type MockCall struct {
	AgentName string
	Prompt    string
}

// Invoke implements the invoker contract against the configured fixtures.
// Unknown agents echo their own name.
func (m *Mock) Invoke(ctx context.Context, agentName, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{AgentName: agentName, Prompt: prompt})
	m.mu.Unlock()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err, ok := m.Errors[agentName]; ok {
		return "", err
	}
	if output, ok := m.Responses[agentName]; ok {
		return output, nil
	}
	return agentName, nil
}

// Invoker adapts the mock to the collab invoker type.
func (m *Mock) Invoker() collab.AgentInvoker {
	return m.Invoke
}

// Calls returns a copy of every recorded invocation.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many invocations were recorded.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
