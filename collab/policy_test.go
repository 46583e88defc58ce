package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailurePolicySatisfied(t *testing.T) {
	tests := []struct {
		name      string
		policy    FailurePolicy
		succeeded int
		total     int
		expected  bool
	}{
		{"all pass", PolicyAll(), 3, 3, true},
		{"all one short", PolicyAll(), 2, 3, false},
		{"majority two of three", PolicyMajority(), 2, 3, true},
		{"majority one of three", PolicyMajority(), 1, 3, false},
		{"majority exactly half", PolicyMajority(), 2, 4, false},
		{"majority three of four", PolicyMajority(), 3, 4, true},
		{"minimum met", PolicyMinimum(2), 2, 5, true},
		{"minimum unmet", PolicyMinimum(3), 2, 5, false},
		{"minimum zero always passes", PolicyMinimum(0), 0, 5, true},
		{"best effort one success", PolicyBestEffort(), 1, 5, true},
		{"best effort zero successes", PolicyBestEffort(), 0, 5, false},
		{"first success satisfied", PolicyFirstSuccess(), 1, 5, true},
		{"first success unsatisfied", PolicyFirstSuccess(), 0, 5, false},
		{"zero value is require all", FailurePolicy{}, 2, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.Satisfied(tt.succeeded, tt.total))
		})
	}
}

func TestFailurePolicyString(t *testing.T) {
	assert.Equal(t, "require_all", PolicyAll().String())
	assert.Equal(t, "require_majority", PolicyMajority().String())
	assert.Equal(t, "require_minimum(2)", PolicyMinimum(2).String())
	assert.Equal(t, "best_effort", PolicyBestEffort().String())
	assert.Equal(t, "first_success", PolicyFirstSuccess().String())
}

func TestOnlyFirstSuccessCancelsEarly(t *testing.T) {
	assert.True(t, PolicyFirstSuccess().cancelOnFirstSuccess())
	assert.False(t, PolicyAll().cancelOnFirstSuccess())
	assert.False(t, PolicyMajority().cancelOnFirstSuccess())
	assert.False(t, PolicyMinimum(1).cancelOnFirstSuccess())
	assert.False(t, PolicyBestEffort().cancelOnFirstSuccess())
}
