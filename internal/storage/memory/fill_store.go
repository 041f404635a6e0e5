package memory

import (
	"context"
	"sync"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Fill // keyed by run_id, insertion order preserved
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{data: make(map[string][]domain.Fill)}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// SaveFills records a run's fills atomically, preserving order. A run with
// no fills still records an empty ledger, so re-saving is detected.
func (s *FillStore) SaveFills(_ context.Context, runID string, fills []domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateID
	}

	stored := make([]domain.Fill, len(fills))
	copy(stored, fills)
	s.data[runID] = stored
	return nil
}

// ListFillsByRun retrieves a run's fills in their recorded order. Returns
// ErrNotFound when no ledger was saved for run_id.
func (s *FillStore) ListFillsByRun(_ context.Context, runID string) ([]domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := make([]domain.Fill, len(fills))
	copy(out, fills)
	return out, nil
}
