package collab

import (
	"context"
	"fmt"
	"strings"
)

// DefaultFuzzyThreshold is the similarity above which two outputs are merged
// into one voting cluster when fuzzy matching is enabled.
const DefaultFuzzyThreshold = 0.7

// Voting clusters the successful outputs by similarity and returns the
// representative of the largest cluster. Matching is exact string equality
// on normalized content by default; fuzzy mode merges near-duplicates.
type Voting struct {
	fuzzy          bool
	threshold      float64
	minimumResults int
}

// VotingOption configures a Voting strategy.
type VotingOption func(*Voting)

// WithFuzzyMatching merges outputs whose similarity is at or above threshold
// into one cluster. A threshold <= 0 uses DefaultFuzzyThreshold.
func WithFuzzyMatching(threshold float64) VotingOption {
	return func(v *Voting) {
		v.fuzzy = true
		if threshold > 0 {
			v.threshold = threshold
		}
	}
}

// WithMinimumVotes makes the strategy fail unless at least n successful
// outputs are available to vote.
func WithMinimumVotes(n int) VotingOption {
	return func(v *Voting) { v.minimumResults = n }
}

// NewVoting creates a voting strategy.
func NewVoting(opts ...VotingOption) *Voting {
	v := &Voting{threshold: DefaultFuzzyThreshold}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Voting) Name() string { return "voting" }

type voteCluster struct {
	representative *ExecutionUnit
	normalized     string
	size           int
}

// Reduce clusters the outputs in completion order and returns the earliest
// member of the largest cluster. Confidence is cluster size over the number
// of successful units.
func (v *Voting) Reduce(_ context.Context, in ReduceInput) (*Result, error) {
	if len(in.Succeeded) < v.minimumResults {
		return nil, &StrategyConstraintError{
			Strategy: v.Name(),
			Reason:   fmt.Sprintf("need at least %d outputs to vote, have %d", v.minimumResults, len(in.Succeeded)),
		}
	}
	if len(in.Succeeded) == 0 {
		return nil, &StrategyConstraintError{Strategy: v.Name(), Reason: "no outputs to vote on"}
	}

	// Greedy clustering: each output joins the first existing cluster whose
	// representative it matches, otherwise starts its own. Units arrive in
	// completion order, so representatives are the earliest members.
	var clusters []*voteCluster
	for _, u := range in.Succeeded {
		norm := normalizeContent(u.Output)
		joined := false
		for _, c := range clusters {
			if v.matches(norm, c.normalized) {
				c.size++
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &voteCluster{
				representative: u,
				normalized:     norm,
				size:           1,
			})
		}
	}

	winner := clusters[0]
	for _, c := range clusters[1:] {
		// Strict > keeps the earlier representative on equal sizes.
		if c.size > winner.size {
			winner = c
		}
	}

	return &Result{
		Output:      winner.representative.Output,
		ResultCount: winner.size,
		Confidence:  float64(winner.size) / float64(len(in.Succeeded)),
	}, nil
}

func (v *Voting) matches(a, b string) bool {
	if a == b {
		return true
	}
	if !v.fuzzy {
		return false
	}
	return fuzzySimilarity(a, b) >= v.threshold
}

// normalizeContent canonicalizes an output for comparison: trimmed,
// lowercased, interior whitespace collapsed.
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// fuzzySimilarity scores two normalized outputs in [0, 1]. It takes the
// better of character-level similarity (normalized Levenshtein) and a token
// overlap coefficient, so both near-identical strings and short answers
// embedded in longer phrasings ("4" vs "the answer is 4") cluster together.
func fuzzySimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	levSim := 1 - float64(levenshteinDistance(a, b))/float64(maxLen)

	overlap := tokenOverlap(a, b)
	if overlap > levSim {
		return overlap
	}
	return levSim
}

// tokenOverlap is the overlap coefficient of the two token sets: shared
// tokens divided by the size of the smaller set.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	shared := 0
	for _, t := range tokensB {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			shared++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(shared) / float64(smaller)
}

// levenshteinDistance computes the edit distance between two strings using
// a two-row dynamic programming table.
func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
