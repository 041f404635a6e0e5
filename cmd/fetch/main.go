package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/fetch"
	"bar-replay-lab/internal/observability"
	"bar-replay-lab/internal/snapshot"
)

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol, e.g. SPY (required)")
	timeframe := flag.String("timeframe", domain.TimeframeH1, "Timeframe label: M1, M5, M15, M30, H1, H4, D1")
	startStr := flag.String("start", "", "Range start, YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "Range end, YYYY-MM-DD (default: now)")
	outDir := flag.String("out", "data", "Snapshot output directory")
	format := flag.String("format", snapshot.FormatCSV, "Snapshot format: csv or parquet")
	feed := flag.String("feed", "", "Alpaca data feed (e.g. iex, sip; default: account feed)")
	chunkDays := flag.Int("chunk-days", 30, "Days per request window")
	rpm := flag.Int("rpm", 200, "Requests per minute pacing")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[fetch] ", log.LstdFlags)

	// Validate required flags
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *startStr == "" {
		logger.Fatal("--start is required")
	}

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		logger.Fatalf("parse --start: %v", err)
	}
	end := time.Now().UTC()
	if *endStr != "" {
		end, err = time.Parse("2006-01-02", *endStr)
		if err != nil {
			logger.Fatalf("parse --end: %v", err)
		}
	}

	// Credentials from the environment, with optional .env preload.
	_ = godotenv.Load()
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		logger.Fatal("ALPACA_API_KEY and ALPACA_API_SECRET must be set")
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

	f := fetch.New(fetch.Options{
		APIKey:            apiKey,
		APISecret:         apiSecret,
		Feed:              *feed,
		RequestsPerMinute: *rpm,
		ChunkDays:         *chunkDays,
		OnRequest:         observability.RecordFetchRequest,
		Logger:            logger,
	})

	ref, err := f.WriteSnapshot(ctx, strings.ToUpper(*symbol), *timeframe, start, end, *outDir, *format)
	if err != nil {
		logger.Fatalf("fetch failed: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Snapshot Written ===")
	fmt.Printf("Directory:   %s\n", ref.Path)
	fmt.Printf("Rows:        %d\n", ref.Rows)
	for _, file := range ref.Files {
		fmt.Printf("File:        %s (%d bytes)\n", file.Name, file.Size)
	}
	fmt.Printf("Fingerprint: %s\n", ref.Fingerprint)
}
