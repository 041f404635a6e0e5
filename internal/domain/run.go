package domain

import "time"

// RunSummary captures everything reporting and storage need to describe one
// completed backtest run.
type RunSummary struct {
	RunID           string
	Symbol          string
	Timeframe       string
	StrategyType    string
	NBars           int
	StartTS         time.Time // first replayed bar
	EndTS           time.Time // last replayed bar
	StartingCapital float64
	EndingEquity    float64
	NTrades         int
	TotalPnL        float64
	WinRate         float64 // 0 when no trades
	AverageWin      float64 // 0 when no winning trades
	AverageLoss     float64 // 0 when no losing trades
	GitCommit       string  // "unknown" when git is unavailable
	GitDirty        bool
	Risk            RiskMetrics
	CreatedAt       time.Time // wall-clock time the run was recorded
}

// DataRef is the provenance record for the snapshot a run consumed.
type DataRef struct {
	Path        string
	Rows        int
	Files       []DataFile
	Fingerprint string // sha256 over the sorted "name:size" inventory
}

// DataFile is one file in a snapshot inventory.
type DataFile struct {
	Name string
	Size int64
}
