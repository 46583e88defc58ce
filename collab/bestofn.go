package collab

import (
	"context"
	"fmt"
)

// Scorer rates one successful output. Higher is better; scores should be
// non-negative.
type Scorer func(output string) float64

// BestOfN picks the single highest-scoring output among the successful
// units. Ties are broken by earliest completion.
type BestOfN struct {
	scorer         Scorer
	filter         func(output string) bool
	minimumResults int
	maximumResults int
}

// BestOfNOption configures a BestOfN strategy.
type BestOfNOption func(*BestOfN)

// WithOutputFilter drops outputs failing the predicate before scoring.
func WithOutputFilter(filter func(output string) bool) BestOfNOption {
	return func(b *BestOfN) { b.filter = filter }
}

// WithMinimumResults makes the strategy fail unless at least n candidate
// outputs survive filtering, even when the failure policy passed.
func WithMinimumResults(n int) BestOfNOption {
	return func(b *BestOfN) { b.minimumResults = n }
}

// WithMaximumResults caps how many candidates are scored; the earliest
// completions are kept.
func WithMaximumResults(n int) BestOfNOption {
	return func(b *BestOfN) { b.maximumResults = n }
}

// NewBestOfN creates a best-of-N strategy around the given scorer.
func NewBestOfN(scorer Scorer, opts ...BestOfNOption) *BestOfN {
	b := &BestOfN{scorer: scorer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BestOfN) Name() string { return "best_of_n" }

// Reduce filters, bounds, and scores the candidates, returning the winner.
// Confidence is the winner's share of the total candidate score mass, so a
// clear winner scores near 1 and a tight race near 1/n.
func (b *BestOfN) Reduce(_ context.Context, in ReduceInput) (*Result, error) {
	candidates := in.Succeeded
	if b.filter != nil {
		kept := make([]*ExecutionUnit, 0, len(candidates))
		for _, u := range candidates {
			if b.filter(u.Output) {
				kept = append(kept, u)
			}
		}
		candidates = kept
	}

	if len(candidates) < b.minimumResults {
		return nil, &StrategyConstraintError{
			Strategy: b.Name(),
			Reason:   fmt.Sprintf("need at least %d candidate outputs, have %d", b.minimumResults, len(candidates)),
		}
	}
	if len(candidates) == 0 {
		return nil, &StrategyConstraintError{Strategy: b.Name(), Reason: "no candidate outputs"}
	}
	if b.maximumResults > 0 && len(candidates) > b.maximumResults {
		candidates = candidates[:b.maximumResults]
	}

	var winner *ExecutionUnit
	var winnerScore, total float64
	for _, u := range candidates {
		score := b.scorer(u.Output)
		if score > 0 {
			total += score
		}
		// Candidates arrive in completion order, so strict > keeps the
		// earliest completion on ties.
		if winner == nil || score > winnerScore {
			winner = u
			winnerScore = score
		}
	}

	confidence := 1.0
	if total > 0 {
		confidence = winnerScore / total
		if confidence < 0 {
			confidence = 0
		}
	}

	return &Result{
		Output:      winner.Output,
		ResultCount: 1,
		Confidence:  confidence,
	}, nil
}
