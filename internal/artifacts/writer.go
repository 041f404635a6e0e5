// Package artifacts writes the per-run output directory: equity curve,
// trades ledger, summary metrics, data provenance, archived config and a
// README. Every file lands via temp-file + rename so a crashed run never
// leaves a half-written artifact behind.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"bar-replay-lab/internal/domain"
)

// Artifact file names inside a run directory.
const (
	EquityFile  = "equity.csv"
	TradesFile  = "trades.csv"
	MetricsFile = "metrics.json"
	DataRefFile = "DATA_REF.json"
	ConfigFile  = "config.yaml"
	ReadmeFile  = "README.md"
)

// Run bundles everything the writer persists for one completed backtest.
type Run struct {
	Summary     domain.RunSummary
	EquityCurve []domain.EquityPoint
	Fills       []domain.Fill
	DataRef     *domain.DataRef
	ConfigYAML  []byte
}

// Writer persists run artifacts under a root output directory, one
// subdirectory per run ID.
type Writer struct {
	outputDir string
	logger    *log.Logger
}

// NewWriter creates an artifact Writer rooted at outputDir. A nil logger
// falls back to log.Default().
func NewWriter(outputDir string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{outputDir: outputDir, logger: logger}
}

// WriteRun writes all artifacts for one run and returns the run directory.
func (w *Writer) WriteRun(run Run) (string, error) {
	runDir := filepath.Join(w.outputDir, run.Summary.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	steps := []struct {
		name  string
		write func(string) error
	}{
		{EquityFile, func(dir string) error { return w.writeEquity(dir, run.EquityCurve) }},
		{TradesFile, func(dir string) error { return w.writeTrades(dir, run.Fills) }},
		{MetricsFile, func(dir string) error { return w.writeMetrics(dir, run.Summary) }},
		{DataRefFile, func(dir string) error { return w.writeDataRef(dir, run.DataRef) }},
		{ConfigFile, func(dir string) error { return writeAtomic(dir, ConfigFile, run.ConfigYAML) }},
		{ReadmeFile, func(dir string) error { return w.writeReadme(dir, run.Summary) }},
	}

	for _, step := range steps {
		if err := step.write(runDir); err != nil {
			return "", fmt.Errorf("write %s: %w", step.name, err)
		}
		w.logger.Printf("wrote %s", filepath.Join(run.Summary.RunID, step.name))
	}

	return runDir, nil
}

// writeEquity renders the per-bar account history.
func (w *Writer) writeEquity(dir string, curve []domain.EquityPoint) error {
	var records [][]string
	for _, p := range curve {
		records = append(records, []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(p.Equity),
			formatFloat(p.Position),
			formatFloat(p.UnrealizedPnL),
			formatFloat(p.RealizedPnL),
		})
	}
	header := []string{"timestamp", "equity", "position", "unrealized_pnl", "realized_pnl"}
	return writeCSVAtomic(dir, EquityFile, header, records)
}

// writeTrades renders the closed-fill ledger, sorted by entry timestamp.
// A run with no trades still gets a header-only file.
func (w *Writer) writeTrades(dir string, fills []domain.Fill) error {
	sorted := make([]domain.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryTime.Before(sorted[j].EntryTime)
	})

	var records [][]string
	for _, f := range sorted {
		records = append(records, []string{
			f.EntryTime.UTC().Format(time.RFC3339),
			f.ExitTime.UTC().Format(time.RFC3339),
			f.Side,
			formatFloat(f.Quantity),
			formatFloat(f.EntryPrice),
			formatFloat(f.ExitPrice),
			formatFloat(f.PnL),
		})
	}
	header := []string{"entry_ts", "exit_ts", "side", "qty", "entry_price", "exit_price", "pnl"}
	return writeCSVAtomic(dir, TradesFile, header, records)
}

// metricsJSON is the on-disk schema of metrics.json.
type metricsJSON struct {
	RunID             string   `json:"run_id"`
	Symbol            string   `json:"symbol"`
	Timeframe         string   `json:"timeframe"`
	StrategyType      string   `json:"strategy_type"`
	NBars             int      `json:"n_bars"`
	StartTS           string   `json:"start_ts"`
	EndTS             string   `json:"end_ts"`
	StartingCapital   float64  `json:"starting_capital"`
	EndingEquity      float64  `json:"ending_equity"`
	NTrades           int      `json:"n_trades"`
	TotalPnL          float64  `json:"total_pnl"`
	WinRate           float64  `json:"win_rate"`
	AverageWin        float64  `json:"average_win"`
	AverageLoss       float64  `json:"average_loss"`
	GitCommit         string   `json:"git_commit"`
	GitDirty          bool     `json:"git_dirty"`
	MaxDrawdownPct    float64  `json:"max_drawdown_pct"`
	RiskHalted        bool     `json:"risk_halted"`
	RiskHaltedAt      *string  `json:"risk_halted_at"`
	DailyDDLimitPct   *float64 `json:"daily_drawdown_pct_limit"`
	MonthlyDDLimitPct *float64 `json:"monthly_drawdown_pct_limit"`
	DailyHalts        int      `json:"daily_halts"`
	MonthlyHalts      int      `json:"monthly_halts"`
	CreatedAt         string   `json:"created_at"`
}

func (w *Writer) writeMetrics(dir string, s domain.RunSummary) error {
	m := metricsJSON{
		RunID:             s.RunID,
		Symbol:            s.Symbol,
		Timeframe:         s.Timeframe,
		StrategyType:      s.StrategyType,
		NBars:             s.NBars,
		StartTS:           s.StartTS.UTC().Format(time.RFC3339),
		EndTS:             s.EndTS.UTC().Format(time.RFC3339),
		StartingCapital:   s.StartingCapital,
		EndingEquity:      s.EndingEquity,
		NTrades:           s.NTrades,
		TotalPnL:          s.TotalPnL,
		WinRate:           s.WinRate,
		AverageWin:        s.AverageWin,
		AverageLoss:       s.AverageLoss,
		GitCommit:         s.GitCommit,
		GitDirty:          s.GitDirty,
		MaxDrawdownPct:    s.Risk.MaxDrawdownPct,
		DailyDDLimitPct:   s.Risk.DailyDDLimitPct,
		MonthlyDDLimitPct: s.Risk.MonthlyDDLimitPct,
		RiskHalted:        s.Risk.Halted,
		DailyHalts:        s.Risk.DailyHalts,
		MonthlyHalts:      s.Risk.MonthlyHalts,
		CreatedAt:         s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.Risk.HaltedAt != nil {
		haltedAt := s.Risk.HaltedAt.UTC().Format(time.RFC3339)
		m.RiskHaltedAt = &haltedAt
	}

	return writeJSONAtomic(dir, MetricsFile, m)
}

// dataRefJSON is the on-disk schema of DATA_REF.json.
type dataRefJSON struct {
	SnapshotPath    string         `json:"snapshot_path"`
	RowCount        int            `json:"row_count"`
	Files           []dataFileJSON `json:"files"`
	FilesHashSHA256 string         `json:"files_hash_sha256"`
}

type dataFileJSON struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

func (w *Writer) writeDataRef(dir string, ref *domain.DataRef) error {
	out := dataRefJSON{Files: []dataFileJSON{}}
	if ref != nil {
		out.SnapshotPath = ref.Path
		out.RowCount = ref.Rows
		out.FilesHashSHA256 = ref.Fingerprint
		for _, f := range ref.Files {
			out.Files = append(out.Files, dataFileJSON{Name: f.Name, SizeBytes: f.Size})
		}
	}
	return writeJSONAtomic(dir, DataRefFile, out)
}

func (w *Writer) writeReadme(dir string, s domain.RunSummary) error {
	body := fmt.Sprintf(`# Backtest run %s

Symbol: %s %s
Strategy: %s
Trades: %d, Total PnL: %.2f
Reproduce: backtest --config %s
`, s.RunID, s.Symbol, s.Timeframe, s.StrategyType, s.NTrades, s.TotalPnL, ConfigFile)

	return writeAtomic(dir, ReadmeFile, []byte(body))
}

// writeAtomic writes data to dir/name through a temp file in the same
// directory, renamed into place once fully flushed.
func writeAtomic(dir, name string, data []byte) error {
	return writeFuncAtomic(dir, name, func(f io.Writer) error {
		_, err := f.Write(data)
		return err
	})
}

func writeCSVAtomic(dir, name string, header []string, records [][]string) error {
	return writeFuncAtomic(dir, name, func(f io.Writer) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, rec := range records {
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func writeJSONAtomic(dir, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(dir, name, append(data, '\n'))
}

func writeFuncAtomic(dir, name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(dir, name+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, filepath.Join(dir, name))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
