package backtest

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bar-replay-lab/internal/config"
	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/snapshot"
	"bar-replay-lab/internal/storage"
	"bar-replay-lab/internal/storage/memory"
	"bar-replay-lab/internal/strategy"
)

func intPtr(i int) *int { return &i }

// testCloses drives a 2/3 SMA crossover through one long entry, a flip to
// short in the decline, and a flip back to long in the recovery. With
// open[i] = close[i-1] the two closed legs have PnL -1 (long 103→102) and
// +3 (short 102→99).
var testCloses = []float64{100, 101, 102, 103, 104, 105, 102, 99, 96, 93, 95, 99, 104, 108}

func testBars() []domain.Bar {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	bars := make([]domain.Bar, len(testCloses))
	for i, c := range testCloses {
		open := 99.5
		if i > 0 {
			open = testCloses[i-1]
		}
		high := open
		if c > high {
			high = c
		}
		low := open
		if c < low {
			low = c
		}
		bars[i] = domain.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      high + 1,
			Low:       low - 1,
			Close:     c,
			Volume:    1000 + float64(i),
		}
	}
	return bars
}

func writeSnapshot(t *testing.T, bars []domain.Bar) string {
	t.Helper()

	dir := t.TempDir()
	if err := snapshot.WriteCSV(filepath.Join(dir, "bars.csv"), bars); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	return dir
}

func testConfig(snapshotDir, outputDir string) *config.Config {
	return &config.Config{
		Symbol:          "EURUSD",
		Timeframe:       "H1",
		StartingCapital: 1000,
		PositionSize:    1.0,
		Strategy: config.StrategyConfig{
			Type: domain.StrategyTypeMACrossover,
			Params: config.StrategyParams{
				FastPeriod: intPtr(2),
				SlowPeriod: intPtr(3),
			},
		},
		Data: config.DataConfig{
			SnapshotDir: snapshotDir,
			Format:      config.FormatCSV,
		},
		OutputDir: outputDir,
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	}
}

func quietLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestRunner_EndToEnd(t *testing.T) {
	snapshotDir := writeSnapshot(t, testBars())
	outputDir := t.TempDir()

	runStore := memory.NewRunStore()
	fillStore := memory.NewFillStore()
	equityStore := memory.NewEquityStore()

	runner := NewRunner(Options{
		Config:      testConfig(snapshotDir, outputDir),
		Now:         fixedClock(),
		Logger:      quietLogger(),
		RunStore:    runStore,
		FillStore:   fillStore,
		EquityStore: equityStore,
	})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("Expected no registry errors, got %v", result.Errors)
	}

	if !strings.HasPrefix(result.RunID, "20240305_120000_") {
		t.Errorf("Expected run id with fixed-clock prefix, got %s", result.RunID)
	}
	if !result.Verification.Match {
		t.Error("Expected drawdown cross-validation to match")
	}

	s := result.Summary
	if s.NBars != len(testCloses) {
		t.Errorf("Expected %d bars, got %d", len(testCloses), s.NBars)
	}
	if s.NTrades != 2 {
		t.Errorf("Expected 2 trades, got %d", s.NTrades)
	}
	if s.TotalPnL != 2 {
		t.Errorf("Expected total PnL 2, got %v", s.TotalPnL)
	}
	if s.WinRate != 0.5 {
		t.Errorf("Expected win rate 0.5, got %v", s.WinRate)
	}
	if s.AverageWin != 3 {
		t.Errorf("Expected average win 3, got %v", s.AverageWin)
	}
	if s.AverageLoss != -1 {
		t.Errorf("Expected average loss -1, got %v", s.AverageLoss)
	}
	// Final long entered at 99 marks to the last close 108: realized 2 + unrealized 9.
	if s.EndingEquity != 1011 {
		t.Errorf("Expected ending equity 1011, got %v", s.EndingEquity)
	}
	if !s.StartTS.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected start ts of first bar, got %v", s.StartTS)
	}
	if !s.EndTS.Equal(time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected end ts of last bar, got %v", s.EndTS)
	}

	for _, name := range []string{"equity.csv", "trades.csv", "metrics.json", "DATA_REF.json", "config.yaml", "README.md"} {
		if _, err := os.Stat(filepath.Join(result.RunDir, name)); err != nil {
			t.Errorf("Expected artifact %s: %v", name, err)
		}
	}

	ctx := context.Background()
	stored, err := runStore.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.TotalPnL != 2 {
		t.Errorf("Expected stored total PnL 2, got %v", stored.TotalPnL)
	}

	fills, err := fillStore.ListFillsByRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("ListFillsByRun: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("Expected 2 stored fills, got %d", len(fills))
	}
	if fills[0].PnL != -1 || fills[1].PnL != 3 {
		t.Errorf("Expected fill PnLs [-1 3], got [%v %v]", fills[0].PnL, fills[1].PnL)
	}

	curve, err := equityStore.GetEquityCurve(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetEquityCurve: %v", err)
	}
	if len(curve) != len(testCloses) {
		t.Errorf("Expected %d equity points, got %d", len(testCloses), len(curve))
	}
}

func TestRunner_DeterministicRunID(t *testing.T) {
	snapshotDir := writeSnapshot(t, testBars())
	outputDir := t.TempDir()

	opts := Options{
		Config:     testConfig(snapshotDir, outputDir),
		ConfigYAML: []byte("symbol: EURUSD\n"),
		Now:        fixedClock(),
		Logger:     quietLogger(),
	}

	first, err := NewRunner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := NewRunner(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if first.RunID != second.RunID {
		t.Errorf("Expected identical run ids for identical config and data, got %s and %s",
			first.RunID, second.RunID)
	}
}

func TestRunner_DuplicateRegistrySaveIsNotFatal(t *testing.T) {
	snapshotDir := writeSnapshot(t, testBars())
	outputDir := t.TempDir()

	opts := Options{
		Config:      testConfig(snapshotDir, outputDir),
		ConfigYAML:  []byte("symbol: EURUSD\n"),
		Now:         fixedClock(),
		Logger:      quietLogger(),
		RunStore:    memory.NewRunStore(),
		FillStore:   memory.NewFillStore(),
		EquityStore: memory.NewEquityStore(),
	}
	runner := NewRunner(opts)

	first, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(first.Errors) != 0 {
		t.Fatalf("Expected no registry errors on first run, got %v", first.Errors)
	}

	// Identical config and data produce the same run id, so a re-run
	// collides in every registry store but still succeeds as a run.
	second, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(second.Errors) != 3 {
		t.Fatalf("Expected 3 registry errors, got %d: %v", len(second.Errors), second.Errors)
	}
	for _, msg := range second.Errors {
		if !strings.Contains(msg, storage.ErrDuplicateID.Error()) {
			t.Errorf("Expected duplicate id error, got %q", msg)
		}
	}
}

func TestRunner_ValidationGateFailure(t *testing.T) {
	bars := testBars()
	bars[3].Timestamp = bars[2].Timestamp // duplicate
	snapshotDir := writeSnapshot(t, bars)

	runner := NewRunner(Options{
		Config: testConfig(snapshotDir, t.TempDir()),
		Now:    fixedClock(),
		Logger: quietLogger(),
	})

	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Expected validation gate failure")
	}
	if !strings.Contains(err.Error(), "phase 2") {
		t.Errorf("Expected phase 2 failure, got %v", err)
	}
}

func TestRunner_EmptySnapshot(t *testing.T) {
	snapshotDir := writeSnapshot(t, nil)

	runner := NewRunner(Options{
		Config: testConfig(snapshotDir, t.TempDir()),
		Now:    fixedClock(),
		Logger: quietLogger(),
	})

	_, err := runner.Run(context.Background())
	if !errors.Is(err, ErrEmptySnapshot) {
		t.Errorf("Expected ErrEmptySnapshot, got %v", err)
	}
}

func TestRunner_UnknownStrategyType(t *testing.T) {
	snapshotDir := writeSnapshot(t, testBars())

	cfg := testConfig(snapshotDir, t.TempDir())
	cfg.Strategy.Type = "bogus"

	runner := NewRunner(Options{
		Config: cfg,
		Now:    fixedClock(),
		Logger: quietLogger(),
	})

	_, err := runner.Run(context.Background())
	if !errors.Is(err, strategy.ErrUnknownStrategyType) {
		t.Errorf("Expected ErrUnknownStrategyType, got %v", err)
	}
}
