// Package sqlite provides a local experiment catalog backed by a SQLite
// file. It records run summaries for batch experiment runs so batches can be
// compared without re-reading per-run artifact directories. The artifact
// directories remain the canonical record; the catalog is a registry.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"
)

// Timestamps are stored as epoch milliseconds so round-trips do not depend
// on driver datetime string formats.
const schema = `
CREATE TABLE IF NOT EXISTS experiment_runs (
    batch_id             TEXT    NOT NULL,
    run_id               TEXT    NOT NULL,
    config_path          TEXT    NOT NULL,
    symbol               TEXT    NOT NULL,
    timeframe            TEXT    NOT NULL,
    strategy_type        TEXT    NOT NULL,
    n_bars               INTEGER NOT NULL,
    start_ts_ms          INTEGER NOT NULL,
    end_ts_ms            INTEGER NOT NULL,
    starting_capital     REAL    NOT NULL,
    ending_equity        REAL    NOT NULL,
    n_trades             INTEGER NOT NULL,
    total_pnl            REAL    NOT NULL,
    win_rate             REAL    NOT NULL,
    average_win          REAL    NOT NULL,
    average_loss         REAL    NOT NULL,
    git_commit           TEXT    NOT NULL,
    git_dirty            INTEGER NOT NULL,
    max_drawdown_pct     REAL    NOT NULL,
    risk_halted          INTEGER NOT NULL,
    risk_halted_at_ms    INTEGER,
    daily_dd_limit_pct   REAL,
    monthly_dd_limit_pct REAL,
    daily_halts          INTEGER NOT NULL,
    monthly_halts        INTEGER NOT NULL,
    created_at_ms        INTEGER NOT NULL,
    PRIMARY KEY (batch_id, run_id)
);

CREATE INDEX IF NOT EXISTS idx_experiment_runs_batch ON experiment_runs(batch_id);
`

// Entry is one catalog row: a run summary plus the batch context it ran in.
type Entry struct {
	BatchID    string
	ConfigPath string
	Summary    domain.RunSummary
}

// Catalog records experiment batch results in a local SQLite file.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path and applies the
// schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RecordRun inserts one run summary under the given batch. Recording the
// same (batch, run) pair twice returns storage.ErrDuplicateID.
func (c *Catalog) RecordRun(ctx context.Context, batchID, configPath string, s *domain.RunSummary) error {
	if s == nil || s.RunID == "" || batchID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM experiment_runs WHERE batch_id = ? AND run_id = ?)`,
		batchID, s.RunID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: check run %s: %w", s.RunID, err)
	}
	if exists {
		return fmt.Errorf("run %s in batch %s: %w", s.RunID, batchID, storage.ErrDuplicateID)
	}

	var haltedAtMs *int64
	if s.Risk.HaltedAt != nil {
		ms := s.Risk.HaltedAt.UnixMilli()
		haltedAtMs = &ms
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO experiment_runs (
			batch_id, run_id, config_path, symbol, timeframe, strategy_type,
			n_bars, start_ts_ms, end_ts_ms, starting_capital, ending_equity,
			n_trades, total_pnl, win_rate, average_win, average_loss,
			git_commit, git_dirty, max_drawdown_pct, risk_halted,
			risk_halted_at_ms, daily_dd_limit_pct, monthly_dd_limit_pct,
			daily_halts, monthly_halts, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID,
		s.RunID,
		configPath,
		s.Symbol,
		s.Timeframe,
		s.StrategyType,
		s.NBars,
		s.StartTS.UnixMilli(),
		s.EndTS.UnixMilli(),
		s.StartingCapital,
		s.EndingEquity,
		s.NTrades,
		s.TotalPnL,
		s.WinRate,
		s.AverageWin,
		s.AverageLoss,
		s.GitCommit,
		s.GitDirty,
		s.Risk.MaxDrawdownPct,
		s.Risk.Halted,
		haltedAtMs,
		s.Risk.DailyDDLimitPct,
		s.Risk.MonthlyDDLimitPct,
		s.Risk.DailyHalts,
		s.Risk.MonthlyHalts,
		s.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("sqlite: insert run %s: %w", s.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// ListBatch returns all runs recorded under batchID ordered by created_at
// then run_id. An unknown batch returns storage.ErrNotFound.
func (c *Catalog) ListBatch(ctx context.Context, batchID string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT batch_id, run_id, config_path, symbol, timeframe, strategy_type,
		       n_bars, start_ts_ms, end_ts_ms, starting_capital, ending_equity,
		       n_trades, total_pnl, win_rate, average_win, average_loss,
		       git_commit, git_dirty, max_drawdown_pct, risk_halted,
		       risk_halted_at_ms, daily_dd_limit_pct, monthly_dd_limit_pct,
		       daily_halts, monthly_halts, created_at_ms
		FROM experiment_runs
		WHERE batch_id = ?
		ORDER BY created_at_ms ASC, run_id ASC`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e            Entry
			startMs      int64
			endMs        int64
			createdMs    int64
			haltedAtMs   sql.NullInt64
			dailyLimit   sql.NullFloat64
			monthlyLimit sql.NullFloat64
		)
		if err := rows.Scan(
			&e.BatchID,
			&e.Summary.RunID,
			&e.ConfigPath,
			&e.Summary.Symbol,
			&e.Summary.Timeframe,
			&e.Summary.StrategyType,
			&e.Summary.NBars,
			&startMs,
			&endMs,
			&e.Summary.StartingCapital,
			&e.Summary.EndingEquity,
			&e.Summary.NTrades,
			&e.Summary.TotalPnL,
			&e.Summary.WinRate,
			&e.Summary.AverageWin,
			&e.Summary.AverageLoss,
			&e.Summary.GitCommit,
			&e.Summary.GitDirty,
			&e.Summary.Risk.MaxDrawdownPct,
			&e.Summary.Risk.Halted,
			&haltedAtMs,
			&dailyLimit,
			&monthlyLimit,
			&e.Summary.Risk.DailyHalts,
			&e.Summary.Risk.MonthlyHalts,
			&createdMs,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan batch row: %w", err)
		}

		e.Summary.StartTS = time.UnixMilli(startMs).UTC()
		e.Summary.EndTS = time.UnixMilli(endMs).UTC()
		e.Summary.CreatedAt = time.UnixMilli(createdMs).UTC()
		if haltedAtMs.Valid {
			t := time.UnixMilli(haltedAtMs.Int64).UTC()
			e.Summary.Risk.HaltedAt = &t
		}
		if dailyLimit.Valid {
			e.Summary.Risk.DailyDDLimitPct = &dailyLimit.Float64
		}
		if monthlyLimit.Valid {
			e.Summary.Risk.MonthlyDDLimitPct = &monthlyLimit.Float64
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate batch rows: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, storage.ErrNotFound)
	}

	return entries, nil
}
