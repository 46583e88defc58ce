package switchboard

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/switchboard-dev/switchboard/collab"
	"github.com/switchboard-dev/switchboard/internal/observability"
	"github.com/switchboard-dev/switchboard/pkg/history"
	obsmetrics "github.com/switchboard-dev/switchboard/pkg/observability"
	"github.com/switchboard-dev/switchboard/selector"
)

// DispatchResult is the outcome of routing one query to a single agent.
type DispatchResult struct {
	Query        string                    `json:"query"`
	AgentName    string                    `json:"agent_name"`
	Output       string                    `json:"output"`
	Confidence   float64                   `json:"confidence"`
	UsedFallback bool                      `json:"used_fallback,omitempty"`
	Scores       []selector.SelectionScore `json:"scores"`
}

// Dispatcher is the pipeline callers use: Dispatch scores a query and runs
// the chosen agent; Collaborate fans a prompt out to a fixed agent list.
type Dispatcher struct {
	sel          *selector.Selector
	orchestrator *collab.Orchestrator
	invoker      collab.AgentInvoker
	agents       []selector.AgentDescriptor
	defaults     collab.Options
	store        history.Store
	logger       *log.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHistory attaches an audit trail store. Recording failures are logged
// and never fail the dispatch.
func WithHistory(store history.Store) DispatcherOption {
	return func(d *Dispatcher) { d.store = store }
}

// WithDispatcherLogger sets the dispatcher's logger.
func WithDispatcherLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher builds a dispatcher from config and an invoker.
func NewDispatcher(cfg *Config, inv collab.AgentInvoker, opts ...DispatcherOption) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errors.New("switchboard: nil invoker")
	}
	defaults, err := cfg.CollabOptions()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		sel:          selector.New(cfg.SelectorConfig()),
		orchestrator: collab.NewOrchestrator(),
		invoker:      inv,
		agents:       cfg.Descriptors(),
		defaults:     defaults,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DefaultOptions returns the collaboration options derived from config, for
// callers that want to tweak one knob before a Collaborate call.
func (d *Dispatcher) DefaultOptions() collab.Options {
	return d.defaults
}

// Dispatch routes query to the best-matching agent and invokes it. Returns
// selector.ErrAmbiguous when no agent clears the confidence threshold and no
// fallback is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) (*DispatchResult, error) {
	ctx, span := observability.StartSpanWithOtel(ctx, "switchboard.dispatch",
		trace.WithAttributes(attribute.Int("dispatch.agent_count", len(d.agents))),
	)
	defer span.End()

	start := time.Now()
	selection := d.sel.Score(query, d.agents)
	obsmetrics.RecordSelection(selectionOutcome(selection), time.Since(start))
	d.recordSelection(ctx, query, selection)

	selected, err := selection.Selection()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("dispatch.selected", selected),
		attribute.Float64("dispatch.confidence", selection.Confidence),
		attribute.Bool("dispatch.used_fallback", selection.UsedFallback),
	)
	d.logger.Printf("[dispatch] query routed to %s (confidence=%.2f, fallback=%v)",
		selected, selection.Confidence, selection.UsedFallback)

	invokeStart := time.Now()
	output, err := d.invoker(ctx, selected, query)
	if err != nil {
		obsmetrics.RecordUnitOutcome(selected, string(collab.UnitFailed), 1, time.Since(invokeStart))
		span.RecordError(err)
		return nil, &collab.InvokerError{AgentName: selected, Err: err}
	}
	obsmetrics.RecordUnitOutcome(selected, string(collab.UnitSucceeded), 1, time.Since(invokeStart))

	return &DispatchResult{
		Query:        query,
		AgentName:    selected,
		Output:       output,
		Confidence:   selection.Confidence,
		UsedFallback: selection.UsedFallback,
		Scores:       selection.Scores,
	}, nil
}

// Collaborate fans prompt out to the named agents with the dispatcher's
// invoker and records the outcome. Options default to the configured values
// when zero.
func (d *Dispatcher) Collaborate(ctx context.Context, prompt string, agentNames []string, strategy collab.Strategy, opts collab.Options) (*collab.Result, error) {
	if strategy == nil {
		return nil, errors.New("switchboard: nil strategy")
	}
	start := time.Now()
	result, err := d.orchestrator.Collaborate(ctx, prompt, agentNames, d.invoker, strategy, opts)
	duration := time.Since(start)

	obsmetrics.RecordCollaboration(strategy.Name(), opts.Policy.String(), collabStatus(err), duration)
	for _, u := range collabUnits(result, err) {
		obsmetrics.RecordUnitOutcome(u.AgentName, string(u.State), u.Attempt, u.Duration())
	}
	d.recordCollaboration(ctx, prompt, agentNames, strategy, opts, result, err, duration)

	return result, err
}

// CollaborateAll runs a collaboration across every configured agent.
func (d *Dispatcher) CollaborateAll(ctx context.Context, prompt string, strategy collab.Strategy, opts collab.Options) (*collab.Result, error) {
	names := make([]string, len(d.agents))
	for i, a := range d.agents {
		names[i] = a.Name
	}
	return d.Collaborate(ctx, prompt, names, strategy, opts)
}

func selectionOutcome(selection selector.SelectionResult) string {
	switch {
	case selection.UsedFallback:
		return "fallback"
	case selection.Selected != "":
		return "selected"
	default:
		return "ambiguous"
	}
}

func collabStatus(err error) string {
	var policyErr *collab.PolicyError
	var constraintErr *collab.StrategyConstraintError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, collab.ErrOverallTimeout):
		return "timeout"
	case errors.As(err, &policyErr):
		return "policy"
	case errors.As(err, &constraintErr):
		return "strategy"
	default:
		return "error"
	}
}

// collabUnits pulls the execution units out of a result or a failed call's
// error, so unit metrics cover both paths.
func collabUnits(result *collab.Result, err error) []*collab.ExecutionUnit {
	if result != nil {
		return result.Units
	}
	var policyErr *collab.PolicyError
	if errors.As(err, &policyErr) {
		return policyErr.Failures
	}
	var timeoutErr *collab.OverallTimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Units
	}
	return nil
}

func (d *Dispatcher) recordSelection(ctx context.Context, query string, selection selector.SelectionResult) {
	if d.store == nil {
		return
	}
	scores := make(map[string]float64, len(selection.Scores))
	for _, sc := range selection.Scores {
		scores[sc.AgentName] = sc.Score
	}
	record := &history.SelectionRecord{
		Query:        query,
		Selected:     selection.Selected,
		Confidence:   selection.Confidence,
		UsedFallback: selection.UsedFallback,
		Scores:       scores,
	}
	if err := d.store.AppendSelection(ctx, record); err != nil {
		d.logger.Printf("[dispatch] history record failed: %v", err)
	}
}

func (d *Dispatcher) recordCollaboration(ctx context.Context, prompt string, agentNames []string, strategy collab.Strategy, opts collab.Options, result *collab.Result, callErr error, duration time.Duration) {
	if d.store == nil {
		return
	}
	record := &history.CollaborationRecord{
		Prompt:   prompt,
		Agents:   agentNames,
		Strategy: strategy.Name(),
		Policy:   opts.Policy.String(),
		Total:    len(agentNames),
		Duration: duration,
	}
	if result != nil {
		record.Output = result.Output
		record.Confidence = result.Confidence
		record.ResultCount = result.ResultCount
		for _, u := range result.Units {
			if u.Succeeded() {
				record.Succeeded++
			}
		}
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}
	if err := d.store.AppendCollaboration(ctx, record); err != nil {
		d.logger.Printf("[dispatch] history record failed: %v", err)
	}
}

// Agents returns the configured agent names in declaration order.
func (d *Dispatcher) Agents() []string {
	names := make([]string, len(d.agents))
	for i, a := range d.agents {
		names[i] = a.Name
	}
	return names
}
