package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bar-replay-lab/internal/feed"
	"bar-replay-lab/internal/observability"
	"bar-replay-lab/internal/snapshot"
)

func main() {
	// Parse flags
	endpoint := flag.String("endpoint", "", "Candle stream WebSocket URL, e.g. wss://stream.binance.com:9443/ws/btcusdt@kline_1m (required)")
	outFile := flag.String("out", "", "Snapshot CSV file to append closed candles to (required)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[feed] ", log.LstdFlags)

	// Validate required flags
	if *endpoint == "" {
		logger.Fatal("--endpoint is required")
	}
	if *outFile == "" {
		logger.Fatal("--out is required")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	appender, err := snapshot.OpenAppender(*outFile)
	if err != nil {
		logger.Fatalf("open snapshot %s: %v", *outFile, err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedCfg := feed.DefaultConfig()
	feedCfg.Logger = logger
	feedCfg.OnReconnect = observability.RecordReconnect

	client, err := feed.NewClient(ctx, *endpoint, &feedCfg)
	if err != nil {
		logger.Fatalf("connect to %s: %v", *endpoint, err)
	}

	// Handle shutdown signals: closing the client closes its bar channel,
	// which ends the append loop below.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		client.Close()
	}()

	logger.Printf("Appending closed candles from %s to %s", *endpoint, *outFile)

	for bar := range client.Bars() {
		observability.RecordBarReceived()

		started := time.Now()
		if err := appender.Append(bar); err != nil {
			logger.Printf("append bar %s: %v", bar.Timestamp.Format(time.RFC3339), err)
			continue
		}
		observability.RecordBarAppended(bar.Timestamp, time.Since(started).Seconds())

		logger.Printf("bar %s o=%v h=%v l=%v c=%v v=%v",
			bar.Timestamp.Format(time.RFC3339), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	if err := appender.Close(); err != nil {
		logger.Printf("close snapshot: %v", err)
	}
	logger.Println("Feed stopped")
}
