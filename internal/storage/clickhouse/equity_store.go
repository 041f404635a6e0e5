package clickhouse

import (
	"context"
	"fmt"
	"time"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
)

// EquityStore implements storage.EquityStore using ClickHouse. MergeTree
// does not enforce uniqueness, so duplicate protection is an explicit
// existence check before the batch insert.
type EquityStore struct {
	conn *Conn
}

// NewEquityStore creates a new EquityStore.
func NewEquityStore(conn *Conn) *EquityStore {
	return &EquityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityStore = (*EquityStore)(nil)

// SaveEquityCurve records a run's curve via a native-protocol batch. An
// empty curve writes no rows, so it is not registered and cannot be
// re-save-protected; every replayed run has at least one point in practice.
func (s *EquityStore) SaveEquityCurve(ctx context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateID
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_points (
			run_id, ts, equity, position, unrealized_pnl, realized_pnl
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			runID, p.Timestamp.UTC(), p.Equity, p.Position, p.UnrealizedPnL, p.RealizedPnL,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetEquityCurve retrieves a run's curve, ordered by timestamp ASC. Returns
// ErrNotFound when no curve was saved for run_id.
func (s *EquityStore) GetEquityCurve(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	exists, err := s.exists(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	query := `
		SELECT ts, equity, position, unrealized_pnl, realized_pnl
		FROM equity_points
		WHERE run_id = ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var ts time.Time

		if err := rows.Scan(&ts, &p.Equity, &p.Position, &p.UnrealizedPnL, &p.RealizedPnL); err != nil {
			return nil, fmt.Errorf("scan equity point row: %w", err)
		}

		p.Timestamp = ts.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity point rows: %w", err)
	}

	return points, nil
}

// exists checks if any points were recorded for runID.
func (s *EquityStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM equity_points WHERE run_id = ?`, runID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
