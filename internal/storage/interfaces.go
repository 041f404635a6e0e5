// Package storage defines the persistence contracts for completed backtest
// runs. Artifacts on disk remain the canonical record; stores add a
// queryable registry on top of them.
package storage

import (
	"context"

	"bar-replay-lab/internal/domain"
)

// RunStore provides access to the run registry.
type RunStore interface {
	// SaveRun records a completed run. Returns ErrDuplicateID if run_id exists.
	SaveRun(ctx context.Context, run *domain.RunSummary) error

	// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)

	// ListRuns retrieves all runs, ordered by created_at then run_id.
	ListRuns(ctx context.Context) ([]*domain.RunSummary, error)
}

// FillStore provides access to the closed-fill ledger.
type FillStore interface {
	// SaveFills records a run's fills atomically, preserving order.
	// Returns ErrDuplicateID if fills for run_id already exist.
	SaveFills(ctx context.Context, runID string, fills []domain.Fill) error

	// ListFillsByRun retrieves a run's fills in their recorded order.
	ListFillsByRun(ctx context.Context, runID string) ([]domain.Fill, error)
}

// EquityStore provides access to per-bar equity curves.
type EquityStore interface {
	// SaveEquityCurve records a run's equity curve atomically.
	// Returns ErrDuplicateID if a curve for run_id already exists.
	SaveEquityCurve(ctx context.Context, runID string, points []domain.EquityPoint) error

	// GetEquityCurve retrieves a run's curve, ordered by timestamp ASC.
	GetEquityCurve(ctx context.Context, runID string) ([]domain.EquityPoint, error)
}
