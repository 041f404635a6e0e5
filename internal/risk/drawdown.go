// Package risk implements drawdown tracking and the per-run risk state
// machine: a permanent global halt plus daily and monthly pauses that clear
// at their next period boundary.
package risk

import "bar-replay-lab/internal/domain"

// ComputeDrawdownPct returns the percentage decline from peak to current,
// clamped at zero. A peak at or below zero yields 0 so a degenerate baseline
// never divides by zero or reports negative drawdown.
func ComputeDrawdownPct(peak, current float64) float64 {
	if peak <= 0 {
		return 0.0
	}
	dd := (peak - current) / peak * 100
	if dd < 0 {
		return 0.0
	}
	return dd
}

// DrawdownTracker keeps a high-water mark and running maximum drawdown for
// one equity curve. Create one per monitored horizon and feed it every bar's
// mark-to-market equity. Identical input sequences produce bit-identical
// output sequences.
type DrawdownTracker struct {
	peak  float64
	maxDD float64
}

// NewDrawdownTracker seeds the high-water mark with the initial equity.
func NewDrawdownTracker(initialEquity float64) *DrawdownTracker {
	return &DrawdownTracker{peak: initialEquity}
}

// Update ingests one equity observation and returns a state snapshot.
func (t *DrawdownTracker) Update(currentEquity float64) domain.DrawdownState {
	if currentEquity > t.peak {
		t.peak = currentEquity
	}

	dd := ComputeDrawdownPct(t.peak, currentEquity)
	if dd > t.maxDD {
		t.maxDD = dd
	}

	return domain.DrawdownState{
		Peak:           t.peak,
		DrawdownPct:    dd,
		MaxDrawdownPct: t.maxDD,
	}
}

// Peak returns the current high-water mark.
func (t *DrawdownTracker) Peak() float64 { return t.peak }

// MaxDrawdownPct returns the running maximum drawdown percentage.
func (t *DrawdownTracker) MaxDrawdownPct() float64 { return t.maxDD }
