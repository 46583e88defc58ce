package selector

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgents() []AgentDescriptor {
	return []AgentDescriptor{
		{
			Name:         "reviewer",
			Description:  "Reviews pull requests and suggests improvements",
			Capabilities: []string{"code-review", "static-analysis"},
			Tags:         []string{"engineering", "quality"},
		},
		{
			Name:         "writer",
			Description:  "Writes and edits technical documentation",
			Capabilities: []string{"documentation", "editing"},
			Tags:         []string{"content"},
		},
		{
			Name:         "analyst",
			Description:  "Analyzes datasets and produces sql reports",
			Capabilities: []string{"sql", "data-analysis"},
			Tags:         []string{"data", "reporting"},
		},
	}
}

func TestScoreSelectsBestAgent(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{
			name:     "capability phrase",
			query:    "review this code change",
			expected: "reviewer",
		},
		{
			name:     "synonym reaches capability",
			query:    "update the docs for the new release",
			expected: "writer",
		},
		{
			name:     "data query",
			query:    "run a sql report over the sales data",
			expected: "analyst",
		},
	}

	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Score(tt.query, testAgents())
			selected, err := result.Selection()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, selected)
			assert.False(t, result.UsedFallback)
		})
	}
}

func TestScoreShape(t *testing.T) {
	agents := testAgents()
	result := New(DefaultConfig()).Score("analyze the sql data", agents)

	require.Len(t, result.Scores, len(agents))
	for i, sc := range result.Scores {
		assert.Equal(t, agents[i].Name, sc.AgentName, "scores must keep input order")
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, 1.0)
		require.Contains(t, sc.Contributions, FieldCapabilities)
		require.Contains(t, sc.Contributions, FieldTags)
		require.Contains(t, sc.Contributions, FieldDescription)
		require.Contains(t, sc.Contributions, FieldName)
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := New(DefaultConfig())
	first := s.Score("review my code", testAgents())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score("review my code", testAgents()))
	}
}

func TestCapabilityOutranksDescription(t *testing.T) {
	agents := []AgentDescriptor{
		{
			Name:         "capable",
			Description:  "A general-purpose helper",
			Capabilities: []string{"translate"},
		},
		{
			Name:        "descriptive",
			Description: "Can translate text between languages",
		},
	}

	result := New(DefaultConfig()).Score("translate this paragraph", agents)
	selected, err := result.Selection()
	require.NoError(t, err)
	assert.Equal(t, "capable", selected,
		"a capability match must outrank the same term in a description")
}

func TestScoreNoMatch(t *testing.T) {
	result := New(DefaultConfig()).Score("zygomorphic fenestration", testAgents())

	require.Len(t, result.Scores, 3)
	for _, sc := range result.Scores {
		assert.Zero(t, sc.Score)
	}
	_, err := result.Selection()
	assert.True(t, errors.Is(err, ErrAmbiguous))
	assert.Empty(t, result.Selected)
	assert.Zero(t, result.Confidence)
}

func TestScoreFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackAgent = "writer"
	result := New(cfg).Score("zygomorphic fenestration", testAgents())

	selected, err := result.Selection()
	require.NoError(t, err)
	assert.Equal(t, "writer", selected)
	assert.True(t, result.UsedFallback)
	// The fallback reports its true score, never a synthetic one.
	assert.Zero(t, result.Confidence)
}

func TestScoreFallbackNotRegistered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackAgent = "nonexistent"
	result := New(cfg).Score("zygomorphic fenestration", testAgents())

	_, err := result.Selection()
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestScoreEmptyInputs(t *testing.T) {
	s := New(DefaultConfig())

	empty := s.Score("review my code", nil)
	assert.Empty(t, empty.Scores)
	assert.Empty(t, empty.Selected)

	blank := s.Score("", testAgents())
	require.Len(t, blank.Scores, 3)
	for _, sc := range blank.Scores {
		assert.Zero(t, sc.Score)
	}
}

func TestSnapshotReuseAndInvalidation(t *testing.T) {
	s := New(DefaultConfig())
	agents := testAgents()

	s.Score("review my code", agents)
	snap1 := s.snap.Load()
	require.NotNil(t, snap1)

	s.Score("different query entirely", agents)
	assert.Same(t, snap1, s.snap.Load(), "same agent set must reuse the snapshot")

	agents[0].Capabilities = append(agents[0].Capabilities, "security-audit")
	s.Score("review my code", agents)
	assert.NotSame(t, snap1, s.snap.Load(), "edited descriptor must rebuild the snapshot")
}

func TestScoreConcurrent(t *testing.T) {
	s := New(DefaultConfig())
	setA := testAgents()
	setB := append(testAgents(), AgentDescriptor{
		Name:         "translator",
		Description:  "Translates text between natural languages",
		Capabilities: []string{"translate"},
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agents := setA
			if i%2 == 0 {
				agents = setB
			}
			for j := 0; j < 50; j++ {
				result := s.Score(fmt.Sprintf("review code attempt %d", j), agents)
				if len(result.Scores) != len(agents) {
					t.Errorf("got %d scores for %d agents", len(result.Scores), len(agents))
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
