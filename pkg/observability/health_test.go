package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerStates(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *HealthChecker)
		expected HealthStatus
	}{
		{
			name:     "no checks",
			setup:    func(*HealthChecker) {},
			expected: HealthStatusHealthy,
		},
		{
			name: "passing checks",
			setup: func(h *HealthChecker) {
				h.Register("redis", true, func(context.Context) error { return nil })
			},
			expected: HealthStatusHealthy,
		},
		{
			name: "non-critical failure degrades",
			setup: func(h *HealthChecker) {
				h.Register("cache", false, func(context.Context) error { return errors.New("down") })
			},
			expected: HealthStatusDegraded,
		},
		{
			name: "critical failure is unhealthy",
			setup: func(h *HealthChecker) {
				h.Register("store", true, func(context.Context) error { return errors.New("down") })
				h.Register("cache", false, func(context.Context) error { return nil })
			},
			expected: HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker()
			tt.setup(h)
			response := h.Run(context.Background())
			assert.Equal(t, tt.expected, response.Status)
		})
	}
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	h := NewHealthChecker()
	h.Register("store", true, func(context.Context) error { return errors.New("unreachable") })

	recorder := httptest.NewRecorder()
	h.Handler()(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	healthy := NewHealthChecker()
	recorder = httptest.NewRecorder()
	healthy.Handler()(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"healthy"`)
}

func TestLivenessHandler(t *testing.T) {
	recorder := httptest.NewRecorder()
	LivenessHandler()(recorder, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}
