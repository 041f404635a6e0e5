package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"bar-replay-lab/internal/artifacts"
	"bar-replay-lab/internal/verification"
)

func main() {
	// Parse flags
	runDir := flag.String("run-dir", "", "Run artifact directory to verify (required)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags)

	// Validate required flags
	if *runDir == "" {
		logger.Fatal("--run-dir is required")
	}

	summary, err := artifacts.ReadSummary(*runDir)
	if err != nil {
		logger.Fatalf("read metrics: %v", err)
	}
	curve, err := artifacts.ReadEquityCurve(*runDir)
	if err != nil {
		logger.Fatalf("read equity curve: %v", err)
	}
	if len(curve) == 0 {
		logger.Fatalf("run %s has an empty equity curve", summary.RunID)
	}

	result := verification.VerifyDrawdown(summary.StartingCapital, curve, summary.Risk)

	if !result.Match {
		fmt.Printf("FAIL %s: %d divergences\n", summary.RunID, len(result.Divergences))
		for _, d := range result.Divergences {
			fmt.Printf("  %-20s recomputed %v, reported %v\n", d.Field, d.Expected, d.Actual)
		}
		os.Exit(1)
	}

	fmt.Printf("OK %s\n", summary.RunID)
	fmt.Printf("  equity points: %d\n", result.Recomputed.Points)
	fmt.Printf("  max drawdown:  %.4f%%\n", result.Recomputed.MaxDrawdownPct)
	fmt.Printf("  final peak:    %.2f\n", result.Recomputed.FinalPeak)
}
