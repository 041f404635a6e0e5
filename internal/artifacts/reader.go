package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bar-replay-lab/internal/domain"
)

// ReadSummary loads metrics.json from a run directory back into a
// RunSummary, the inverse of writeMetrics.
func ReadSummary(runDir string) (domain.RunSummary, error) {
	var s domain.RunSummary

	data, err := os.ReadFile(filepath.Join(runDir, MetricsFile))
	if err != nil {
		return s, err
	}

	var m metricsJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return s, fmt.Errorf("parse %s: %w", MetricsFile, err)
	}

	startTS, err := time.Parse(time.RFC3339, m.StartTS)
	if err != nil {
		return s, fmt.Errorf("parse start_ts: %w", err)
	}
	endTS, err := time.Parse(time.RFC3339, m.EndTS)
	if err != nil {
		return s, fmt.Errorf("parse end_ts: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, m.CreatedAt)
	if err != nil {
		return s, fmt.Errorf("parse created_at: %w", err)
	}

	s = domain.RunSummary{
		RunID:           m.RunID,
		Symbol:          m.Symbol,
		Timeframe:       m.Timeframe,
		StrategyType:    m.StrategyType,
		NBars:           m.NBars,
		StartTS:         startTS,
		EndTS:           endTS,
		StartingCapital: m.StartingCapital,
		EndingEquity:    m.EndingEquity,
		NTrades:         m.NTrades,
		TotalPnL:        m.TotalPnL,
		WinRate:         m.WinRate,
		AverageWin:      m.AverageWin,
		AverageLoss:     m.AverageLoss,
		GitCommit:       m.GitCommit,
		GitDirty:        m.GitDirty,
		Risk: domain.RiskMetrics{
			MaxDrawdownPct:    m.MaxDrawdownPct,
			Halted:            m.RiskHalted,
			DailyDDLimitPct:   m.DailyDDLimitPct,
			MonthlyDDLimitPct: m.MonthlyDDLimitPct,
			DailyHalts:        m.DailyHalts,
			MonthlyHalts:      m.MonthlyHalts,
		},
		CreatedAt: createdAt,
	}
	if m.RiskHaltedAt != nil {
		haltedAt, err := time.Parse(time.RFC3339, *m.RiskHaltedAt)
		if err != nil {
			return s, fmt.Errorf("parse risk_halted_at: %w", err)
		}
		s.Risk.HaltedAt = &haltedAt
	}

	return s, nil
}

// ReadTrades loads trades.csv from a run directory.
func ReadTrades(runDir string) ([]domain.Fill, error) {
	f, err := os.Open(filepath.Join(runDir, TradesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", TradesFile, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	fills := make([]domain.Fill, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 7 {
			return nil, fmt.Errorf("%s row %d: want 7 fields, got %d", TradesFile, i+2, len(rec))
		}

		entryTS, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", TradesFile, i+2, err)
		}
		exitTS, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", TradesFile, i+2, err)
		}

		qty, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d qty: %w", TradesFile, i+2, err)
		}
		entryPx, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d entry_price: %w", TradesFile, i+2, err)
		}
		exitPx, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d exit_price: %w", TradesFile, i+2, err)
		}
		pnl, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d pnl: %w", TradesFile, i+2, err)
		}

		fills = append(fills, domain.Fill{
			EntryTime:  entryTS,
			ExitTime:   exitTS,
			Side:       rec[2],
			Quantity:   qty,
			EntryPrice: entryPx,
			ExitPrice:  exitPx,
			PnL:        pnl,
		})
	}

	return fills, nil
}

// ReadEquityCurve loads equity.csv from a run directory, used by the verify
// command to re-derive drawdown from the recorded curve.
func ReadEquityCurve(runDir string) ([]domain.EquityPoint, error) {
	f, err := os.Open(filepath.Join(runDir, EquityFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", EquityFile, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	curve := make([]domain.EquityPoint, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 5 {
			return nil, fmt.Errorf("%s row %d: want 5 fields, got %d", EquityFile, i+2, len(rec))
		}

		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EquityFile, i+2, err)
		}

		values := make([]float64, 4)
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %d: %w", EquityFile, i+2, j+1, err)
			}
			values[j] = v
		}

		curve = append(curve, domain.EquityPoint{
			Timestamp:     ts,
			Equity:        values[0],
			Position:      values[1],
			UnrealizedPnL: values[2],
			RealizedPnL:   values[3],
		})
	}

	return curve, nil
}
