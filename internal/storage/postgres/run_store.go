package postgres

import (
	"context"
	"fmt"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/storage"

	"github.com/jackc/pgx/v5"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, symbol, timeframe, strategy_type, n_bars,
	start_ts, end_ts, starting_capital, ending_equity,
	n_trades, total_pnl, win_rate, average_win, average_loss,
	git_commit, git_dirty,
	max_drawdown_pct, risk_halted, risk_halted_at,
	daily_dd_limit_pct, monthly_dd_limit_pct, daily_halts, monthly_halts,
	created_at
`

// SaveRun records a completed run. Returns ErrDuplicateID if run_id exists.
func (s *RunStore) SaveRun(ctx context.Context, run *domain.RunSummary) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (` + runColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16,
			$17, $18, $19,
			$20, $21, $22, $23,
			$24
		)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.Symbol, run.Timeframe, run.StrategyType, run.NBars,
		run.StartTS, run.EndTS, run.StartingCapital, run.EndingEquity,
		run.NTrades, run.TotalPnL, run.WinRate, run.AverageWin, run.AverageLoss,
		run.GitCommit, run.GitDirty,
		run.Risk.MaxDrawdownPct, run.Risk.Halted, run.Risk.HaltedAt,
		run.Risk.DailyDDLimitPct, run.Risk.MonthlyDDLimitPct, run.Risk.DailyHalts, run.Risk.MonthlyHalts,
		run.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateID
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	run, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return run, nil
}

// ListRuns retrieves all runs, ordered by created_at then run_id.
func (s *RunStore) ListRuns(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// scanRun scans a single row into a RunSummary.
func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var run domain.RunSummary

	err := row.Scan(
		&run.RunID, &run.Symbol, &run.Timeframe, &run.StrategyType, &run.NBars,
		&run.StartTS, &run.EndTS, &run.StartingCapital, &run.EndingEquity,
		&run.NTrades, &run.TotalPnL, &run.WinRate, &run.AverageWin, &run.AverageLoss,
		&run.GitCommit, &run.GitDirty,
		&run.Risk.MaxDrawdownPct, &run.Risk.Halted, &run.Risk.HaltedAt,
		&run.Risk.DailyDDLimitPct, &run.Risk.MonthlyDDLimitPct, &run.Risk.DailyHalts, &run.Risk.MonthlyHalts,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &run, nil
}
