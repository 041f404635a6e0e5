package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/olekukonko/tablewriter"

	"bar-replay-lab/internal/artifacts"
	"bar-replay-lab/internal/domain"
)

func main() {
	// Parse flags
	runDir := flag.String("run-dir", "", "Run artifact directory to report on (required)")
	showTrades := flag.Bool("trades", true, "Include the per-trade table")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	// Validate required flags
	if *runDir == "" {
		logger.Fatal("--run-dir is required")
	}

	summary, err := artifacts.ReadSummary(*runDir)
	if err != nil {
		logger.Fatalf("read metrics: %v", err)
	}

	fmt.Printf("\n")
	fmt.Printf("========================================================\n")
	fmt.Printf("  RUN %s\n", summary.RunID)
	fmt.Printf("  %s %s  strategy=%s\n", summary.Symbol, summary.Timeframe, summary.StrategyType)
	fmt.Printf("  %s to %s (%d bars)\n",
		summary.StartTS.Format("2006-01-02 15:04"),
		summary.EndTS.Format("2006-01-02 15:04"),
		summary.NBars)
	fmt.Printf("========================================================\n\n")

	printMetrics(summary)

	if *showTrades {
		fills, err := artifacts.ReadTrades(*runDir)
		if err != nil {
			logger.Fatalf("read trades: %v", err)
		}
		fmt.Println()
		printTrades(fills)
	}

	fmt.Printf("\n  git: %s", summary.GitCommit)
	if summary.GitDirty {
		fmt.Printf(" (dirty)")
	}
	fmt.Printf("  recorded: %s\n", summary.CreatedAt.Format("2006-01-02 15:04:05"))
}

// printMetrics renders the summary metrics as a two-column table.
func printMetrics(s domain.RunSummary) {
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Metric", "Value"})

	rows := [][2]string{
		{"Starting capital", fmt.Sprintf("%.2f", s.StartingCapital)},
		{"Ending equity", fmt.Sprintf("%.2f", s.EndingEquity)},
		{"Total PnL", fmt.Sprintf("%.2f", s.TotalPnL)},
		{"Trades", fmt.Sprintf("%d", s.NTrades)},
		{"Win rate", fmt.Sprintf("%.1f%%", s.WinRate*100)},
		{"Average win", fmt.Sprintf("%.2f", s.AverageWin)},
		{"Average loss", fmt.Sprintf("%.2f", s.AverageLoss)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", s.Risk.MaxDrawdownPct)},
		{"Risk halted", fmt.Sprintf("%v", s.Risk.Halted)},
		{"Daily halts", fmt.Sprintf("%d", s.Risk.DailyHalts)},
		{"Monthly halts", fmt.Sprintf("%d", s.Risk.MonthlyHalts)},
	}
	if s.Risk.HaltedAt != nil {
		rows = append(rows, [2]string{"Halted at", s.Risk.HaltedAt.Format("2006-01-02 15:04")})
	}

	for _, r := range rows {
		tbl.Append([]string{r[0], r[1]})
	}
	tbl.Render()
}

// printTrades renders the fills ledger as a table.
func printTrades(fills []domain.Fill) {
	if len(fills) == 0 {
		fmt.Println("  No trades.")
		return
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"#", "Side", "Entry Time", "Entry", "Exit Time", "Exit", "Qty", "PnL"})

	for i, f := range fills {
		tbl.Append([]string{
			fmt.Sprintf("%d", i+1),
			f.Side,
			f.EntryTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.4f", f.EntryPrice),
			f.ExitTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.4f", f.ExitPrice),
			fmt.Sprintf("%.2f", f.Quantity),
			fmt.Sprintf("%.2f", f.PnL),
		})
	}
	tbl.Render()
}
