// Package backtest provides end-to-end run orchestration.
// It coordinates: snapshot loading → validation gate → feature computation →
// engine replay → drawdown cross-validation → summary metrics → artifacts,
// with optional registry persistence.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bar-replay-lab/internal/artifacts"
	"bar-replay-lab/internal/config"
	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/engine"
	"bar-replay-lab/internal/feature"
	"bar-replay-lab/internal/gitinfo"
	"bar-replay-lab/internal/metrics"
	"bar-replay-lab/internal/replay"
	"bar-replay-lab/internal/risk"
	"bar-replay-lab/internal/runid"
	"bar-replay-lab/internal/snapshot"
	"bar-replay-lab/internal/storage"
	"bar-replay-lab/internal/strategy"
	"bar-replay-lab/internal/verification"
)

// ErrEmptySnapshot indicates the snapshot directory parsed into zero bars.
var ErrEmptySnapshot = errors.New("snapshot contains no bars")

// Options for creating a Runner.
type Options struct {
	Config *config.Config

	// ConfigYAML holds the exact config bytes for the run: they are hashed
	// into the run id and copied into the run directory. When nil the
	// config is re-marshaled, which loses the original file's formatting.
	ConfigYAML []byte

	RepoDir string           // directory for git provenance, "" = process working directory
	Now     func() time.Time // clock for run ids and created_at, nil = time.Now
	Logger  *log.Logger      // nil = log.Default()

	// Optional registry persistence. A nil store is skipped; the artifact
	// directory stays the canonical record either way.
	RunStore    storage.RunStore
	FillStore   storage.FillStore
	EquityStore storage.EquityStore
}

// Runner executes one configured run end to end.
type Runner struct {
	cfg        *config.Config
	configYAML []byte
	repoDir    string
	now        func() time.Time
	logger     *log.Logger

	runStore    storage.RunStore
	fillStore   storage.FillStore
	equityStore storage.EquityStore
}

// NewRunner creates a Runner. The config must already be validated.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		cfg:         opts.Config,
		configYAML:  opts.ConfigYAML,
		repoDir:     opts.RepoDir,
		now:         now,
		logger:      logger,
		runStore:    opts.RunStore,
		fillStore:   opts.FillStore,
		equityStore: opts.EquityStore,
	}
}

// Result describes one completed run.
type Result struct {
	RunID        string
	RunDir       string
	Summary      domain.RunSummary
	DataRef      *domain.DataRef
	Verification *verification.Result

	// Errors from optional registry persistence. The run itself succeeded
	// and its artifacts are on disk; these report a degraded registry only.
	Errors []string
}

// Run executes the full pipeline.
// Phases:
//  1. Load snapshot and describe its provenance
//  2. Validation gate (fail-fast, nothing is repaired)
//  3. Strategy and feature computation
//  4. Engine replay
//  5. Drawdown cross-validation
//  6. Summary metrics and run identity
//  7. Artifact writing
//  8. Optional registry persistence
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg

	configYAML := r.configYAML
	if configYAML == nil {
		var err error
		configYAML, err = cfg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
	}

	// Phase 1: Load snapshot
	r.logger.Printf("Phase 1: Loading snapshot from %s (%s)...", cfg.Data.SnapshotDir, cfg.Data.Format)
	reader := snapshot.NewReader(r.logger)
	bars, err := reader.LoadDir(cfg.Data.SnapshotDir, cfg.Data.Format)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load snapshot) failed: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("phase 1 (load snapshot) failed: %w", ErrEmptySnapshot)
	}
	ref, err := snapshot.Describe(cfg.Data.SnapshotDir, cfg.Data.Format, len(bars))
	if err != nil {
		return nil, fmt.Errorf("phase 1 (describe snapshot) failed: %w", err)
	}
	r.logger.Printf("  Loaded %d bars from %d files", len(bars), len(ref.Files))

	// Phase 2: Validation gate
	r.logger.Printf("Phase 2: Validating bars...")
	iterator, err := replay.NewBarIterator(bars)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (validation gate) failed: %w", err)
	}
	ordered := iterator.Bars()

	// Phase 3: Strategy and features
	r.logger.Printf("Phase 3: Computing features...")
	strat, specs, err := strategy.FromConfig(cfg.DomainStrategy())
	if err != nil {
		return nil, fmt.Errorf("phase 3 (build strategy) failed: %w", err)
	}
	pipeline, err := feature.FromConfigs(specs)
	if err != nil {
		return nil, fmt.Errorf("phase 3 (build features) failed: %w", err)
	}
	matrix, err := pipeline.Transform(ordered)
	if err != nil {
		return nil, fmt.Errorf("phase 3 (compute features) failed: %w", err)
	}
	r.logger.Printf("  Computed %d feature columns over %d rows", len(matrix.Columns()), matrix.NumRows())

	// Phase 4: Engine replay
	r.logger.Printf("Phase 4: Replaying %d bars...", len(ordered))
	riskManager := risk.NewManager(cfg.DomainRisk(), cfg.StartingCapital)
	eng := engine.NewEngine(strat, riskManager, cfg.StartingCapital, cfg.PositionSize, r.logger)
	if err := eng.Run(ordered, matrix); err != nil {
		return nil, fmt.Errorf("phase 4 (engine replay) failed: %w", err)
	}
	r.logger.Printf("  Replayed %d bars, %d fills", eng.BarsReplayed(), len(eng.Fills()))

	// Phase 5: Drawdown cross-validation
	r.logger.Printf("Phase 5: Cross-validating drawdown...")
	riskMetrics := riskManager.Metrics()
	verif := verification.VerifyDrawdown(cfg.StartingCapital, eng.EquityCurve(), riskMetrics)
	if !verif.Match {
		d := verif.Divergences[0]
		return nil, fmt.Errorf("phase 5 (drawdown cross-validation) failed: %d divergences, first %s: recomputed %v, reported %v",
			len(verif.Divergences), d.Field, d.Expected, d.Actual)
	}

	// Phase 6: Summary metrics and run identity
	r.logger.Printf("Phase 6: Computing summary metrics...")
	sum := metrics.Compute(eng.Fills(), eng.EquityCurve(), cfg.StartingCapital)
	git := gitinfo.Capture(r.repoDir)
	now := r.now().UTC()
	runID := runid.New(now, configYAML, ref.Fingerprint)

	summary := domain.RunSummary{
		RunID:           runID,
		Symbol:          cfg.Symbol,
		Timeframe:       cfg.Timeframe,
		StrategyType:    cfg.Strategy.Type,
		NBars:           len(ordered),
		StartTS:         ordered[0].Timestamp,
		EndTS:           ordered[len(ordered)-1].Timestamp,
		StartingCapital: cfg.StartingCapital,
		EndingEquity:    sum.EndingEquity,
		NTrades:         sum.NTrades,
		TotalPnL:        sum.TotalPnL,
		WinRate:         sum.WinRate,
		AverageWin:      sum.AverageWin,
		AverageLoss:     sum.AverageLoss,
		GitCommit:       git.Commit,
		GitDirty:        git.Dirty,
		Risk:            riskMetrics,
		CreatedAt:       now,
	}

	// Phase 7: Artifacts
	r.logger.Printf("Phase 7: Writing artifacts...")
	writer := artifacts.NewWriter(cfg.OutputDir, r.logger)
	runDir, err := writer.WriteRun(artifacts.Run{
		Summary:     summary,
		EquityCurve: eng.EquityCurve(),
		Fills:       eng.Fills(),
		DataRef:     ref,
		ConfigYAML:  configYAML,
	})
	if err != nil {
		return nil, fmt.Errorf("phase 7 (write artifacts) failed: %w", err)
	}
	r.logger.Printf("  Run %s written to %s", runID, runDir)

	result := &Result{
		RunID:        runID,
		RunDir:       runDir,
		Summary:      summary,
		DataRef:      ref,
		Verification: verif,
	}

	// Phase 8: Optional registry persistence
	result.Errors = r.persist(ctx, summary, eng.Fills(), eng.EquityCurve())
	for _, e := range result.Errors {
		r.logger.Printf("  registry: %s", e)
	}

	return result, nil
}

// persist saves the run to whichever registry stores are configured.
// Failures are collected, not fatal: the artifact directory is already the
// canonical record.
func (r *Runner) persist(ctx context.Context, summary domain.RunSummary, fills []domain.Fill, curve []domain.EquityPoint) []string {
	var errs []string

	if r.runStore != nil {
		if err := r.runStore.SaveRun(ctx, &summary); err != nil {
			errs = append(errs, fmt.Sprintf("save run %s: %v", summary.RunID, err))
		}
	}
	if r.fillStore != nil {
		if err := r.fillStore.SaveFills(ctx, summary.RunID, fills); err != nil {
			errs = append(errs, fmt.Sprintf("save fills for %s: %v", summary.RunID, err))
		}
	}
	if r.equityStore != nil {
		if err := r.equityStore.SaveEquityCurve(ctx, summary.RunID, curve); err != nil {
			errs = append(errs, fmt.Sprintf("save equity curve for %s: %v", summary.RunID, err))
		}
	}

	return errs
}
