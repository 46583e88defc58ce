package collab

import "context"

// FirstSuccess returns the earliest successful output, optionally gated by a
// validation predicate: a unit whose output fails validation is passed over,
// letting a later completion win.
type FirstSuccess struct {
	validate func(output string) bool
}

// FirstSuccessOption configures a FirstSuccess strategy.
type FirstSuccessOption func(*FirstSuccess)

// WithValidation gates candidates on the predicate.
func WithValidation(validate func(output string) bool) FirstSuccessOption {
	return func(f *FirstSuccess) { f.validate = validate }
}

// NewFirstSuccess creates a first-success strategy.
func NewFirstSuccess(opts ...FirstSuccessOption) *FirstSuccess {
	f := &FirstSuccess{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FirstSuccess) Name() string { return "first_success" }

// Reduce picks the earliest valid completion. Under the first-success
// failure policy the fan-out already stopped at the winning unit, so
// confidence is 1; under other policies it is the overall success fraction.
func (f *FirstSuccess) Reduce(_ context.Context, in ReduceInput) (*Result, error) {
	var winner *ExecutionUnit
	for _, u := range in.Succeeded {
		if f.validate != nil && !f.validate(u.Output) {
			continue
		}
		winner = u
		break
	}
	if winner == nil {
		return nil, &StrategyConstraintError{Strategy: f.Name(), Reason: "no output passed validation"}
	}

	confidence := float64(len(in.Succeeded)) / float64(in.Total)
	if in.Policy.cancelOnFirstSuccess() {
		confidence = 1
	}

	return &Result{
		Output:      winner.Output,
		ResultCount: 1,
		Confidence:  confidence,
	}, nil
}
