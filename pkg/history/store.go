// Package history keeps an append-only audit trail of dispatch decisions:
// which agent a query was routed to and how collaboration calls turned out.
// The dispatch core never requires it; callers attach a Store when they want
// the trail.
package history

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	// ErrRecordNotFound is returned when a record doesn't exist.
	ErrRecordNotFound = errors.New("history record not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("history store is closed")
)

// SelectionRecord is one routed query.
type SelectionRecord struct {
	ID           string             `json:"id"`
	Query        string             `json:"query"`
	Selected     string             `json:"selected,omitempty"`
	Confidence   float64            `json:"confidence"`
	UsedFallback bool               `json:"used_fallback,omitempty"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// CollaborationRecord is one fan-out call, successful or not.
type CollaborationRecord struct {
	ID          string        `json:"id"`
	Prompt      string        `json:"prompt"`
	Agents      []string      `json:"agents"`
	Strategy    string        `json:"strategy"`
	Policy      string        `json:"policy"`
	Output      string        `json:"output,omitempty"`
	Confidence  float64       `json:"confidence"`
	ResultCount int           `json:"result_count"`
	Succeeded   int           `json:"succeeded"`
	Total       int           `json:"total"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ListOptions filters listing calls.
type ListOptions struct {
	// Limit caps the number of results (0 = no cap).
	Limit int
	// Offset skips the first N records.
	Offset int
}

// Store persists dispatch records. Implementations must be safe for
// concurrent use. Records are append-only; IDs are assigned on append when
// empty.
type Store interface {
	// AppendSelection records a routed query.
	AppendSelection(ctx context.Context, record *SelectionRecord) error

	// AppendCollaboration records a collaboration call.
	AppendCollaboration(ctx context.Context, record *CollaborationRecord) error

	// GetSelection retrieves one selection record by ID.
	// Returns ErrRecordNotFound if it doesn't exist.
	GetSelection(ctx context.Context, id string) (*SelectionRecord, error)

	// GetCollaboration retrieves one collaboration record by ID.
	// Returns ErrRecordNotFound if it doesn't exist.
	GetCollaboration(ctx context.Context, id string) (*CollaborationRecord, error)

	// ListSelections returns selection records in append order.
	ListSelections(ctx context.Context, opts ListOptions) ([]*SelectionRecord, error)

	// ListCollaborations returns collaboration records in append order.
	ListCollaborations(ctx context.Context, opts ListOptions) ([]*CollaborationRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// window applies offset/limit to a slice length, returning the half-open
// index range to keep.
func window(n int, opts ListOptions) (int, int) {
	start := opts.Offset
	if start > n {
		start = n
	}
	end := n
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return start, end
}
