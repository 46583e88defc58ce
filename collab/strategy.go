package collab

import (
	"context"
	"sort"
)

// ReduceInput is what the orchestrator hands a strategy after the failure
// policy has passed.
type ReduceInput struct {
	// Succeeded holds the successful units, sorted by completion time and
	// then by input position, so strategy tie-breaks are deterministic.
	Succeeded []*ExecutionUnit

	// Total is the number of units that were fanned out, successful or not.
	Total int

	// Policy is the failure policy the call ran under. Most strategies
	// ignore it; first-success uses it for its confidence rule.
	Policy FailurePolicy
}

// Strategy reduces the successful units of a collaboration to one result.
// Reduce fills Output, ResultCount, and Confidence; the orchestrator fills
// the rest.
type Strategy interface {
	Name() string
	Reduce(ctx context.Context, in ReduceInput) (*Result, error)
}

// sortByCompletion orders units by completion time, breaking ties by input
// position. Completion order is the explicit tie-break rule everywhere so
// results are reproducible given the same timestamps.
func sortByCompletion(units []*ExecutionUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		if !units[i].FinishedAt.Equal(units[j].FinishedAt) {
			return units[i].FinishedAt.Before(units[j].FinishedAt)
		}
		return units[i].index < units[j].index
	})
}
