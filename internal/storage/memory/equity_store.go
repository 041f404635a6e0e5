package memory

import (
	"context"
	"sort"
	"sync"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
)

// EquityStore is an in-memory implementation of storage.EquityStore.
type EquityStore struct {
	mu   sync.RWMutex
	data map[string][]domain.EquityPoint // keyed by run_id
}

// NewEquityStore creates a new in-memory equity store.
func NewEquityStore() *EquityStore {
	return &EquityStore{data: make(map[string][]domain.EquityPoint)}
}

// Compile-time interface check.
var _ storage.EquityStore = (*EquityStore)(nil)

// SaveEquityCurve records a run's curve atomically.
func (s *EquityStore) SaveEquityCurve(_ context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateID
	}

	stored := make([]domain.EquityPoint, len(points))
	copy(stored, points)
	s.data[runID] = stored
	return nil
}

// GetEquityCurve retrieves a run's curve, ordered by timestamp ASC. Returns
// ErrNotFound when no curve was saved for run_id.
func (s *EquityStore) GetEquityCurve(_ context.Context, runID string) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := make([]domain.EquityPoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
