package domain

import "time"

// Signal is a strategy's directional belief for one bar. It is advisory:
// sizing and risk gating happen later in the decision step.
// Direction is float-typed so fractional sizing can be added without a
// contract change; today strategies emit -1, 0 or +1.
type Signal struct {
	Direction float64 // -1 short, 0 flat, +1 long
	Strength  float64 // 0.0-1.0 confidence, advisory only
	Reason    string  // audit tag, e.g. "cross_above"
}

// NeutralSignal returns a flat, zero-strength signal tagged with reason.
func NeutralSignal(reason string) Signal {
	return Signal{Direction: 0, Strength: 0, Reason: reason}
}

// OrderIntent is the sizing-adjusted instruction to reach a target position.
// Produced on bar i, executed at bar i+1's open; there are no same-bar fills.
type OrderIntent struct {
	TargetPosition float64 // signed absolute position: >0 long, <0 short, 0 flat
	Reason         string
	StopLoss       *float64 // price level, not consumed by execution yet
	TakeProfit     *float64 // price level, not consumed by execution yet
}

// Fill records one completed (closed) position leg. Opens are not logged
// separately; a flip produces exactly one Fill for the closed leg.
type Fill struct {
	EntryTime  time.Time
	ExitTime   time.Time
	Side       string  // SideLong or SideShort
	Quantity   float64 // absolute size of the closed leg
	EntryPrice float64
	ExitPrice  float64
	PnL        float64 // (exit-entry)*qty long, (entry-exit)*qty short
}

// Position side constants
const (
	SideLong  = "long"
	SideShort = "short"
)

// EquityPoint is the per-bar account snapshot. Exactly one is recorded per
// replayed bar regardless of trading activity.
type EquityPoint struct {
	Timestamp     time.Time
	Equity        float64 // realized equity + unrealized PnL (mark-to-market)
	Position      float64 // signed position after this bar's execution step
	UnrealizedPnL float64
	RealizedPnL   float64 // realized equity minus starting capital
}
