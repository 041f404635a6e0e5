package domain

import "time"

// RiskConfig holds optional drawdown thresholds, in percent. A nil threshold
// disables that check entirely (distinct from "never observed").
type RiskConfig struct {
	MaxDrawdownPct    *float64 // global, permanent halt when breached
	DailyDDLimitPct   *float64 // pauses trading until the next day boundary
	MonthlyDDLimitPct *float64 // pauses trading until the next month boundary
}

// RiskAction is the risk manager's per-bar verdict.
type RiskAction struct {
	Flatten bool   // force target position to zero
	Halted  bool   // permanent global halt is in effect
	Reason  string // "; "-joined trigger fragments, empty when nothing fired
}

// DrawdownState is a tracker snapshot after one equity observation.
type DrawdownState struct {
	Peak           float64 // high-water mark, monotonically non-decreasing
	DrawdownPct    float64 // >= 0, 0 at or above peak
	MaxDrawdownPct float64 // running maximum, monotonically non-decreasing
}

// RiskMetrics is the stable seven-field bundle exported for reporting.
type RiskMetrics struct {
	MaxDrawdownPct    float64
	Halted            bool
	HaltedAt          *time.Time // nil unless the global halt fired
	DailyDDLimitPct   *float64
	MonthlyDDLimitPct *float64
	DailyHalts        int
	MonthlyHalts      int
}
