package collab

import (
	"context"
	"fmt"
	"strings"
)

// Contribution is one successful output labelled with its originating agent,
// in completion order.
type Contribution struct {
	AgentName string
	Output    string
}

// Combiner synthesizes one output from the full ordered list of successful
// contributions. A combiner may be purely mechanical or may call back into
// an external agent to perform the synthesis; the context is passed through
// for the latter.
type Combiner func(ctx context.Context, contributions []Contribution) (string, error)

// Ensemble reduces all successful outputs through a caller-supplied
// combiner. Confidence is the fraction of fanned-out units that contributed.
type Ensemble struct {
	combiner Combiner
}

// NewEnsemble creates an ensemble strategy. A nil combiner defaults to
// labelled concatenation.
func NewEnsemble(combiner Combiner) *Ensemble {
	if combiner == nil {
		combiner = ConcatCombiner("\n")
	}
	return &Ensemble{combiner: combiner}
}

func (e *Ensemble) Name() string { return "ensemble" }

func (e *Ensemble) Reduce(ctx context.Context, in ReduceInput) (*Result, error) {
	if len(in.Succeeded) == 0 {
		return nil, &StrategyConstraintError{Strategy: e.Name(), Reason: "no outputs to combine"}
	}

	contributions := make([]Contribution, len(in.Succeeded))
	for i, u := range in.Succeeded {
		contributions[i] = Contribution{AgentName: u.AgentName, Output: u.Output}
	}

	output, err := e.combiner(ctx, contributions)
	if err != nil {
		return nil, fmt.Errorf("ensemble combiner: %w", err)
	}

	return &Result{
		Output:      output,
		ResultCount: len(in.Succeeded),
		Confidence:  float64(len(in.Succeeded)) / float64(in.Total),
	}, nil
}

// ConcatCombiner joins the contributions with delimiter, each prefixed by
// its agent name. A single contribution passes through unchanged.
func ConcatCombiner(delimiter string) Combiner {
	return func(_ context.Context, contributions []Contribution) (string, error) {
		if len(contributions) == 1 {
			return contributions[0].Output, nil
		}
		parts := make([]string, len(contributions))
		for i, c := range contributions {
			parts[i] = fmt.Sprintf("[%s]: %s", c.AgentName, c.Output)
		}
		return strings.Join(parts, delimiter), nil
	}
}

// SectionMergeCombiner merges outputs section by section. Each marker names
// a section heading; for every marker, the combiner extracts the lines each
// agent wrote under that heading and concatenates them beneath a single
// heading in the merged output. A single contribution passes through
// unchanged. Content before the first marker is dropped.
func SectionMergeCombiner(markers ...string) Combiner {
	markerSet := make(map[string]bool, len(markers))
	for _, m := range markers {
		markerSet[m] = true
	}

	return func(_ context.Context, contributions []Contribution) (string, error) {
		if len(contributions) == 1 {
			return contributions[0].Output, nil
		}

		sections := make(map[string][]string, len(markers))
		for _, c := range contributions {
			for marker, body := range splitSections(c.Output, markerSet) {
				if body != "" {
					sections[marker] = append(sections[marker], body)
				}
			}
		}

		var b strings.Builder
		for _, marker := range markers {
			bodies := sections[marker]
			if len(bodies) == 0 {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(marker)
			b.WriteString("\n")
			b.WriteString(strings.Join(bodies, "\n"))
		}
		return b.String(), nil
	}
}

// splitSections breaks text into marker -> body, where a section starts at a
// line exactly equal to a marker and runs until the next marker line.
func splitSections(text string, markers map[string]bool) map[string]string {
	out := make(map[string]string)
	var current string
	var body []string

	flush := func() {
		if current != "" {
			out[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if markers[strings.TrimSpace(line)] {
			flush()
			current = strings.TrimSpace(line)
			continue
		}
		body = append(body, line)
	}
	flush()
	return out
}
