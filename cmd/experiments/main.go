package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"bar-replay-lab/internal/backtest"
	"bar-replay-lab/internal/config"
	"bar-replay-lab/internal/storage/sqlite"
)

func main() {
	// Parse flags
	configDir := flag.String("config-dir", "", "Directory of YAML run configs (required)")
	catalogPath := flag.String("catalog", "experiments.db", "SQLite experiment catalog path")
	workers := flag.Int("workers", 4, "Parallel runs")
	repoDir := flag.String("repo-dir", "", "Repository for git provenance (default: working directory)")
	verbose := flag.Bool("verbose", false, "Log per-run phase output")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[experiments] ", log.LstdFlags)

	// Validate required flags
	if *configDir == "" {
		logger.Fatal("--config-dir is required")
	}
	if *workers < 1 {
		logger.Fatal("--workers must be >= 1")
	}

	paths, err := configPaths(*configDir)
	if err != nil {
		logger.Fatalf("scan config dir: %v", err)
	}
	if len(paths) == 0 {
		logger.Fatalf("no YAML configs found in %s", *configDir)
	}

	catalog, err := sqlite.Open(*catalogPath)
	if err != nil {
		logger.Fatalf("open catalog: %v", err)
	}
	defer catalog.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping after in-flight runs...", sig)
		cancel()
	}()

	batchID := uuid.NewString()
	logger.Printf("Batch %s: %d configs, %d workers", batchID, len(paths), *workers)

	// Per-run phase logging is noisy across workers; discard unless asked for.
	runLogger := log.New(io.Discard, "", 0)
	if *verbose {
		runLogger = logger
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []string

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := runOne(ctx, path, batchID, *repoDir, runLogger, catalog); err != nil {
					mu.Lock()
					failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
					mu.Unlock()
					logger.Printf("FAIL %s: %v", filepath.Base(path), err)
					continue
				}
				logger.Printf("done %s", filepath.Base(path))
			}
		}()
	}

dispatch:
	for _, path := range paths {
		select {
		case jobs <- path:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	printBatch(catalog, batchID)
	fmt.Printf("\nCatalog: %s  Batch: %s\n", *catalogPath, batchID)

	if len(failures) > 0 {
		logger.Printf("%d of %d runs failed:", len(failures), len(paths))
		for _, f := range failures {
			logger.Printf("  %s", f)
		}
		os.Exit(1)
	}
}

// configPaths lists YAML files in dir, sorted by name.
func configPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// runOne executes one config end to end and records its summary in the
// catalog.
func runOne(ctx context.Context, path, batchID, repoDir string, logger *log.Logger, catalog *sqlite.Catalog) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	rawYAML, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	runner := backtest.NewRunner(backtest.Options{
		Config:     cfg,
		ConfigYAML: rawYAML,
		RepoDir:    repoDir,
		Logger:     logger,
	})
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	return catalog.RecordRun(ctx, batchID, path, &result.Summary)
}

// printBatch renders the recorded batch as a table.
func printBatch(catalog *sqlite.Catalog, batchID string) {
	entries, err := catalog.ListBatch(context.Background(), batchID)
	if err != nil {
		fmt.Printf("no runs recorded for batch %s: %v\n", batchID, err)
		return
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Run ID", "Config", "Strategy", "Bars", "Trades", "PnL", "Win %", "Max DD %", "Halted"})

	for _, e := range entries {
		s := e.Summary
		tbl.Append([]string{
			s.RunID,
			filepath.Base(e.ConfigPath),
			s.StrategyType,
			fmt.Sprintf("%d", s.NBars),
			fmt.Sprintf("%d", s.NTrades),
			fmt.Sprintf("%.2f", s.TotalPnL),
			fmt.Sprintf("%.1f", s.WinRate*100),
			fmt.Sprintf("%.2f", s.Risk.MaxDrawdownPct),
			fmt.Sprintf("%v", s.Risk.Halted),
		})
	}
	tbl.Render()
}
