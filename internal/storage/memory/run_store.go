// Package memory provides in-memory store implementations, used as the
// default backend and as the reference behavior for integration-tested ones.
package memory

import (
	"context"
	"sort"
	"sync"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{data: make(map[string]*domain.RunSummary)}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// SaveRun records a completed run. Returns ErrDuplicateID if run_id exists.
func (s *RunStore) SaveRun(_ context.Context, run *domain.RunSummary) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateID
	}

	stored := *run
	s.data[run.RunID] = &stored
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := *run
	return &out, nil
}

// ListRuns retrieves all runs, ordered by created_at then run_id.
func (s *RunStore) ListRuns(_ context.Context) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.RunSummary, 0, len(s.data))
	for _, run := range s.data {
		out := *run
		runs = append(runs, &out)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.Before(runs[j].CreatedAt)
		}
		return runs[i].RunID < runs[j].RunID
	})

	return runs, nil
}
