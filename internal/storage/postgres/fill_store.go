package postgres

import (
	"context"
	"fmt"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL. Fills are keyed
// by (run_id, seq) where seq is the position in the run's ledger, so the
// recorded order survives the round trip.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// SaveFills records a run's fills atomically, preserving order. A ledger
// row in fill_ledgers marks the run as saved, so an empty ledger is still
// distinguishable from a never-saved run and re-saving is a duplicate.
func (s *FillStore) SaveFills(ctx context.Context, runID string, fills []domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO fill_ledgers (run_id) VALUES ($1)`, runID); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateID
		}
		return fmt.Errorf("record ledger: %w", err)
	}

	query := `
		INSERT INTO fills (
			run_id, seq, entry_ts, exit_ts, side, qty, entry_price, exit_price, pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for seq, f := range fills {
		_, err := tx.Exec(ctx, query,
			runID, seq, f.EntryTime, f.ExitTime, f.Side,
			f.Quantity, f.EntryPrice, f.ExitPrice, f.PnL,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateID
			}
			return fmt.Errorf("insert fill %d: %w", seq, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListFillsByRun retrieves a run's fills in their recorded order. Returns
// ErrNotFound when no ledger was saved for run_id.
func (s *FillStore) ListFillsByRun(ctx context.Context, runID string) ([]domain.Fill, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fill_ledgers WHERE run_id = $1)`, runID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check ledger: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	query := `
		SELECT entry_ts, exit_ts, side, qty, entry_price, exit_price, pnl
		FROM fills
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list fills by run: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		err := rows.Scan(
			&f.EntryTime, &f.ExitTime, &f.Side,
			&f.Quantity, &f.EntryPrice, &f.ExitPrice, &f.PnL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
