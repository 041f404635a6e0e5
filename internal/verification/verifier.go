// Package verification cross-checks the two independent drawdown
// measurement paths: the figures the risk manager accumulated during
// replay, and a recomputation over the recorded equity curve. The two must
// agree within FloatTolerance or the run's numbers cannot be trusted.
package verification

import (
	"fmt"
	"math"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/risk"
)

// FloatTolerance is the tolerance for float64 comparisons between the
// reported and recomputed figures.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between recomputed and reported values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // recomputed from the equity curve
	Actual   interface{} // reported by the run
}

// RecomputedDrawdown is the independent measurement derived from the
// recorded equity curve.
type RecomputedDrawdown struct {
	MaxDrawdownPct float64
	FinalPeak      float64
	Points         int
}

// Result contains the outcome of one cross-validation.
type Result struct {
	Match       bool
	Divergences []FieldDivergence
	Recomputed  RecomputedDrawdown
}

// RecomputeDrawdown replays the recorded equity curve through a fresh
// tracker seeded with the starting capital, exactly as the risk manager's
// global tracker was during the run.
func RecomputeDrawdown(startingCapital float64, curve []domain.EquityPoint) RecomputedDrawdown {
	tracker := risk.NewDrawdownTracker(startingCapital)
	for _, p := range curve {
		tracker.Update(p.Equity)
	}
	return RecomputedDrawdown{
		MaxDrawdownPct: tracker.MaxDrawdownPct(),
		FinalPeak:      tracker.Peak(),
		Points:         len(curve),
	}
}

// VerifyDrawdown recomputes the drawdown series from the equity curve and
// compares it with the reported risk metrics. It also checks each equity
// record's internal identity (equity = starting capital + realized PnL +
// unrealized PnL). All mismatches are reported field by field.
func VerifyDrawdown(startingCapital float64, curve []domain.EquityPoint, reported domain.RiskMetrics) *Result {
	recomputed := RecomputeDrawdown(startingCapital, curve)

	var divergences []FieldDivergence

	if !floatEquals(recomputed.MaxDrawdownPct, reported.MaxDrawdownPct) {
		divergences = append(divergences, FieldDivergence{
			Field:    "max_drawdown_pct",
			Expected: recomputed.MaxDrawdownPct,
			Actual:   reported.MaxDrawdownPct,
		})
	}

	for i, p := range curve {
		identity := startingCapital + p.RealizedPnL + p.UnrealizedPnL
		if !floatEquals(identity, p.Equity) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("equity[%d]", i),
				Expected: identity,
				Actual:   p.Equity,
			})
		}
	}

	return &Result{
		Match:       len(divergences) == 0,
		Divergences: divergences,
		Recomputed:  recomputed,
	}
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
