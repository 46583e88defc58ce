package switchboard

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchboard-dev/switchboard/collab"
	"github.com/switchboard-dev/switchboard/invoker"
	"github.com/switchboard-dev/switchboard/pkg/history"
	"github.com/switchboard-dev/switchboard/selector"
)

func testConfig() *Config {
	return &Config{
		Agents: []AgentDef{
			{
				Name:         "code-reviewer",
				Description:  "Reviews pull requests for defects and style issues",
				Capabilities: []string{"code review", "static analysis"},
				Tags:         []string{"quality"},
			},
			{
				Name:         "doc-writer",
				Description:  "Writes and edits technical documentation",
				Capabilities: []string{"writing", "documentation"},
				Tags:         []string{"docs"},
			},
			{
				Name:         "data-analyst",
				Description:  "Analyzes datasets and reports trends",
				Capabilities: []string{"data analysis", "statistics"},
				Tags:         []string{"data"},
			},
		},
	}
}

func newTestDispatcher(t *testing.T, cfg *Config, mock *invoker.Mock, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	opts = append(opts, WithDispatcherLogger(log.New(io.Discard, "", 0)))
	d, err := NewDispatcher(cfg, mock.Invoker(), opts...)
	require.NoError(t, err)
	return d
}

func TestNewDispatcherValidation(t *testing.T) {
	mock := &invoker.Mock{}

	_, err := NewDispatcher(&Config{}, mock.Invoker())
	assert.Error(t, err, "empty config must be rejected")

	_, err = NewDispatcher(testConfig(), nil)
	assert.Error(t, err, "nil invoker must be rejected")

	_, err = NewDispatcher(&Config{
		Agents: []AgentDef{{Name: "a"}},
		Collab: CollabSettings{OverallTimeout: "never"},
	}, mock.Invoker())
	assert.Error(t, err, "bad collab duration must be rejected")
}

func TestDispatchRoutesToBestAgent(t *testing.T) {
	mock := &invoker.Mock{Responses: map[string]string{
		"code-reviewer": "LGTM with two nits",
	}}
	d := newTestDispatcher(t, testConfig(), mock)

	result, err := d.Dispatch(context.Background(), "review this code for static analysis issues")
	require.NoError(t, err)

	assert.Equal(t, "code-reviewer", result.AgentName)
	assert.Equal(t, "LGTM with two nits", result.Output)
	assert.False(t, result.UsedFallback)
	assert.Greater(t, result.Confidence, 0.0)
	assert.Len(t, result.Scores, 3)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "code-reviewer", calls[0].AgentName)
}

func TestDispatchAmbiguousQuery(t *testing.T) {
	mock := &invoker.Mock{}
	d := newTestDispatcher(t, testConfig(), mock)

	_, err := d.Dispatch(context.Background(), "xylophone quantum zebra")
	require.ErrorIs(t, err, selector.ErrAmbiguous)
	assert.Zero(t, mock.CallCount(), "no agent should be invoked on ambiguity")
}

func TestDispatchFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Selector.FallbackAgent = "doc-writer"
	mock := &invoker.Mock{Responses: map[string]string{
		"doc-writer": "here is a draft",
	}}
	d := newTestDispatcher(t, cfg, mock)

	result, err := d.Dispatch(context.Background(), "xylophone quantum zebra")
	require.NoError(t, err)
	assert.Equal(t, "doc-writer", result.AgentName)
	assert.True(t, result.UsedFallback)
}

func TestDispatchInvokerFailure(t *testing.T) {
	mock := &invoker.Mock{Errors: map[string]error{
		"code-reviewer": errors.New("model unavailable"),
	}}
	d := newTestDispatcher(t, testConfig(), mock)

	_, err := d.Dispatch(context.Background(), "review this code for static analysis issues")
	require.Error(t, err)

	var invErr *collab.InvokerError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "code-reviewer", invErr.AgentName)
}

func TestDispatchRecordsHistory(t *testing.T) {
	store := history.NewMemoryStore()
	mock := &invoker.Mock{Responses: map[string]string{
		"code-reviewer": "done",
	}}
	d := newTestDispatcher(t, testConfig(), mock, WithHistory(store))

	_, err := d.Dispatch(context.Background(), "review this code for static analysis issues")
	require.NoError(t, err)

	records, err := store.ListSelections(context.Background(), history.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "code-reviewer", records[0].Selected)
	assert.Contains(t, records[0].Scores, "doc-writer")
	assert.NotEmpty(t, records[0].ID)
}

func TestCollaborateThroughDispatcher(t *testing.T) {
	mock := &invoker.Mock{Responses: map[string]string{
		"code-reviewer": "42",
		"doc-writer":    "42",
		"data-analyst":  "41",
	}}
	d := newTestDispatcher(t, testConfig(), mock)

	result, err := d.Collaborate(context.Background(), "what is the answer",
		[]string{"code-reviewer", "doc-writer", "data-analyst"},
		collab.NewVoting(), d.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "42", result.Output)
	assert.Equal(t, 2, result.ResultCount)
	assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
}

func TestCollaborateAll(t *testing.T) {
	mock := &invoker.Mock{Responses: map[string]string{
		"code-reviewer": "a",
		"doc-writer":    "b",
		"data-analyst":  "c",
	}}
	d := newTestDispatcher(t, testConfig(), mock)

	result, err := d.CollaborateAll(context.Background(), "report in",
		collab.NewEnsemble(nil), d.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, result.ResultCount)
	assert.Equal(t, 3, mock.CallCount())
}

func TestCollaborateNilStrategy(t *testing.T) {
	mock := &invoker.Mock{}
	d := newTestDispatcher(t, testConfig(), mock)

	_, err := d.Collaborate(context.Background(), "p", []string{"doc-writer"}, nil, d.DefaultOptions())
	assert.Error(t, err)
}

func TestCollaborateRecordsHistoryOnFailure(t *testing.T) {
	store := history.NewMemoryStore()
	mock := &invoker.Mock{Errors: map[string]error{
		"code-reviewer": errors.New("down"),
		"doc-writer":    errors.New("down"),
		"data-analyst":  errors.New("down"),
	}}
	d := newTestDispatcher(t, testConfig(), mock, WithHistory(store))

	opts := d.DefaultOptions()
	opts.Policy = collab.PolicyAll()

	_, err := d.Collaborate(context.Background(), "p",
		[]string{"code-reviewer", "doc-writer", "data-analyst"},
		collab.NewVoting(), opts)

	var policyErr *collab.PolicyError
	require.ErrorAs(t, err, &policyErr)

	records, lerr := store.ListCollaborations(context.Background(), history.ListOptions{})
	require.NoError(t, lerr)
	require.Len(t, records, 1)
	assert.Equal(t, "require_all", records[0].Policy)
	assert.Equal(t, 0, records[0].Succeeded)
	assert.Equal(t, 3, records[0].Total)
	assert.NotEmpty(t, records[0].Error)
	assert.Greater(t, records[0].Duration, time.Duration(0))
}

func TestAgents(t *testing.T) {
	d := newTestDispatcher(t, testConfig(), &invoker.Mock{})
	assert.Equal(t, []string{"code-reviewer", "doc-writer", "data-analyst"}, d.Agents())
}
