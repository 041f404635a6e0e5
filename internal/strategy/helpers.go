package strategy

import (
	"math"

	"bar-replay-lab/internal/domain"
)

// featuresReady reports whether every named feature is present and non-NaN.
func featuresReady(row FeatureRow, names []string) bool {
	if row == nil {
		return false
	}
	for _, name := range names {
		v, ok := row.Value(name)
		if !ok || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// gate checks the warmup and feature preconditions shared by all built-in
// strategies. When a precondition fails it returns the neutral signal to
// emit and ok=false; warmup is reported before missing features.
func gate(ctx *Context, warmupBars int, required []string) (domain.Signal, bool) {
	if ctx.BarIndex < warmupBars {
		return domain.NeutralSignal(ReasonWarmup), false
	}
	if !featuresReady(ctx.Features, required) {
		return domain.NeutralSignal(ReasonFeatureNaN), false
	}
	return domain.Signal{}, true
}

// crossover maps a fast/slow comparison to a directional signal.
func crossover(fast, slow float64) domain.Signal {
	switch {
	case fast > slow:
		return domain.Signal{Direction: 1, Strength: 1, Reason: ReasonCrossAbove}
	case fast < slow:
		return domain.Signal{Direction: -1, Strength: 1, Reason: ReasonCrossBelow}
	default:
		return domain.NeutralSignal(ReasonEqual)
	}
}
