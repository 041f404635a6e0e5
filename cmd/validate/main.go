package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"bar-replay-lab/internal/replay"
	"bar-replay-lab/internal/snapshot"
)

func main() {
	// Parse flags
	snapshotDir := flag.String("snapshot", "", "Snapshot directory to validate (required)")
	format := flag.String("format", snapshot.FormatCSV, "Snapshot format: csv or parquet")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[validate] ", log.LstdFlags)

	// Validate required flags
	if *snapshotDir == "" {
		logger.Fatal("--snapshot is required")
	}

	bars, err := snapshot.NewReader(logger).LoadDir(*snapshotDir, *format)
	if err != nil {
		logger.Fatalf("load snapshot: %v", err)
	}
	if len(bars) == 0 {
		logger.Fatalf("snapshot %s contains no bars", *snapshotDir)
	}

	if err := replay.ValidateBars(bars); err != nil {
		fmt.Printf("FAIL %s\n", *snapshotDir)
		var verr *replay.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("  violation: %s\n", verr.Kind)
			fmt.Printf("  rows:      %d\n", verr.Count)
			if len(verr.Fields) > 0 {
				fmt.Printf("  fields:    %v\n", verr.Fields)
			}
		} else {
			fmt.Printf("  %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("OK %s\n", *snapshotDir)
	fmt.Printf("  bars:   %d\n", len(bars))
	fmt.Printf("  period: %s .. %s\n",
		bars[0].Timestamp.Format("2006-01-02 15:04:05"),
		bars[len(bars)-1].Timestamp.Format("2006-01-02 15:04:05"))
}
