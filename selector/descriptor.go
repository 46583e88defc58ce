package selector

// AgentDescriptor holds the identity and searchable metadata for one
// registered agent. Descriptors are created when an agent is registered and
// read-only afterwards; the selector never mutates them.
type AgentDescriptor struct {
	// Name is the unique key for the agent.
	Name string `yaml:"name" json:"name"`

	// Description is free text describing what the agent does.
	Description string `yaml:"description" json:"description"`

	// Capabilities are short tags with the highest selection weight
	// (e.g., "code-review", "sql").
	Capabilities []string `yaml:"capabilities" json:"capabilities"`

	// Tags are secondary short tags (e.g., "backend", "experimental").
	Tags []string `yaml:"tags" json:"tags"`
}

// SelectionScore is the per-agent outcome of scoring a single query.
type SelectionScore struct {
	// AgentName identifies the scored agent.
	AgentName string `json:"agent_name"`

	// Score is the composite score normalized to [0, 1].
	Score float64 `json:"score"`

	// Contributions maps field group name ("capabilities", "tags",
	// "description", "name") to the raw cosine similarity for that field,
	// for explainability.
	Contributions map[string]float64 `json:"contributions,omitempty"`
}

// SelectionResult aggregates all scores for one query.
type SelectionResult struct {
	// Scores has exactly one entry per input agent, in input order.
	Scores []SelectionScore `json:"scores"`

	// Selected is the chosen agent name, or empty if the best score fell
	// below the confidence threshold and no fallback is configured.
	Selected string `json:"selected,omitempty"`

	// Confidence is the normalized score of the selected agent. For a
	// fallback selection this is the fallback's true computed score, never
	// a synthetic boost.
	Confidence float64 `json:"confidence"`

	// UsedFallback reports whether Selected came from the configured
	// fallback rather than the top-ranked agent.
	UsedFallback bool `json:"used_fallback,omitempty"`
}

// Selection returns the selected agent name, or ErrAmbiguous when the best
// score was below the threshold and no fallback was configured.
func (r *SelectionResult) Selection() (string, error) {
	if r.Selected == "" {
		return "", ErrAmbiguous
	}
	return r.Selected, nil
}
