package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for single-node deployments and tests.
type MemoryStore struct {
	mu             sync.RWMutex
	closed         bool
	selections     []*SelectionRecord
	collaborations []*CollaborationRecord
	selectionByID  map[string]*SelectionRecord
	collabByID     map[string]*CollaborationRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		selectionByID: make(map[string]*SelectionRecord),
		collabByID:    make(map[string]*CollaborationRecord),
	}
}

func (s *MemoryStore) AppendSelection(_ context.Context, record *SelectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	stamp(&record.ID, &record.CreatedAt)
	stored := *record
	s.selections = append(s.selections, &stored)
	s.selectionByID[stored.ID] = &stored
	return nil
}

func (s *MemoryStore) AppendCollaboration(_ context.Context, record *CollaborationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	stamp(&record.ID, &record.CreatedAt)
	stored := *record
	s.collaborations = append(s.collaborations, &stored)
	s.collabByID[stored.ID] = &stored
	return nil
}

func (s *MemoryStore) GetSelection(_ context.Context, id string) (*SelectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	record, ok := s.selectionByID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) GetCollaboration(_ context.Context, id string) (*CollaborationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	record, ok := s.collabByID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) ListSelections(_ context.Context, opts ListOptions) ([]*SelectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	start, end := window(len(s.selections), opts)
	out := make([]*SelectionRecord, 0, end-start)
	for _, record := range s.selections[start:end] {
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) ListCollaborations(_ context.Context, opts ListOptions) ([]*CollaborationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	start, end := window(len(s.collaborations), opts)
	out := make([]*CollaborationRecord, 0, end-start)
	for _, record := range s.collaborations[start:end] {
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// stamp assigns an ID and timestamp when the caller left them empty.
func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
