package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bar-replay-lab/internal/backtest"
	"bar-replay-lab/internal/config"
	chstore "bar-replay-lab/internal/storage/clickhouse"
	"bar-replay-lab/internal/storage/migrations"
	pgstore "bar-replay-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML run configuration (required)")
	repoDir := flag.String("repo-dir", "", "Repository for git provenance (default: working directory)")

	// Optional registry
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL registry connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse registry connection string")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	// Validate required flags
	if *configPath == "" {
		logger.Fatal("--config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	rawYAML, err := os.ReadFile(*configPath)
	if err != nil {
		logger.Fatalf("read config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	opts := backtest.Options{
		Config:     cfg,
		ConfigYAML: rawYAML,
		RepoDir:    *repoDir,
		Logger:     logger,
	}

	// Optional registry stores
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		opts.RunStore = pgstore.NewRunStore(pool)
		opts.FillStore = pgstore.NewFillStore(pool)
	}
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		opts.EquityStore = chstore.NewEquityStore(conn)
	}

	runner := backtest.NewRunner(opts)
	result, err := runner.Run(ctx)
	if err != nil {
		logger.Fatalf("run failed: %v", err)
	}

	printResult(result)

	if len(result.Errors) > 0 {
		logger.Printf("%d registry errors; the artifact directory is complete", len(result.Errors))
		os.Exit(2)
	}
}

// printResult outputs a human-readable run summary.
func printResult(r *backtest.Result) {
	s := r.Summary

	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", s.RunID)
	fmt.Printf("Artifacts:          %s\n", r.RunDir)
	fmt.Printf("Symbol:             %s %s\n", s.Symbol, s.Timeframe)
	fmt.Printf("Strategy:           %s\n", s.StrategyType)
	fmt.Println()

	fmt.Println("Data:")
	fmt.Printf("  Bars:             %d\n", s.NBars)
	fmt.Printf("  Period:           %s .. %s\n", s.StartTS.Format("2006-01-02 15:04"), s.EndTS.Format("2006-01-02 15:04"))
	fmt.Printf("  Fingerprint:      %s\n", r.DataRef.Fingerprint)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Starting Capital: %.2f\n", s.StartingCapital)
	fmt.Printf("  Ending Equity:    %.2f\n", s.EndingEquity)
	fmt.Printf("  Total PnL:        %.2f\n", s.TotalPnL)
	fmt.Printf("  Trades:           %d\n", s.NTrades)
	fmt.Printf("  Win Rate:         %.1f%%\n", s.WinRate*100)
	fmt.Printf("  Average Win:      %.2f\n", s.AverageWin)
	fmt.Printf("  Average Loss:     %.2f\n", s.AverageLoss)
	fmt.Println()

	fmt.Println("Risk:")
	fmt.Printf("  Max Drawdown:     %.2f%%\n", s.Risk.MaxDrawdownPct)
	fmt.Printf("  Halted:           %v\n", s.Risk.Halted)
	if s.Risk.HaltedAt != nil {
		fmt.Printf("  Halted At:        %s\n", s.Risk.HaltedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("  Daily Halts:      %d\n", s.Risk.DailyHalts)
	fmt.Printf("  Monthly Halts:    %d\n", s.Risk.MonthlyHalts)
	fmt.Println()

	fmt.Printf("Drawdown cross-check: OK (%d equity points)\n", r.Verification.Recomputed.Points)
}
