package strategy

import (
	"bar-replay-lab/internal/domain"
)

// MACrossoverStrategy signals long while the fast moving average is above
// the slow one and short while it is below. Exactly equal averages read
// as flat.
type MACrossoverStrategy struct {
	FastCol string
	SlowCol string

	warmupBars int
}

// NewMACrossoverStrategy creates a crossover strategy reading the two named
// feature columns.
func NewMACrossoverStrategy(fastCol, slowCol string, warmupBars int) *MACrossoverStrategy {
	return &MACrossoverStrategy{
		FastCol:    fastCol,
		SlowCol:    slowCol,
		warmupBars: warmupBars,
	}
}

// Name returns the registered strategy type name.
func (s *MACrossoverStrategy) Name() string { return domain.StrategyTypeMACrossover }

// RequiredFeatures lists the feature columns OnBar reads.
func (s *MACrossoverStrategy) RequiredFeatures() []string {
	return []string{s.FastCol, s.SlowCol}
}

// WarmupBars is the number of leading bars the strategy sits out.
func (s *MACrossoverStrategy) WarmupBars() int { return s.warmupBars }

// CanTrade reports whether the warmup has passed and both averages are
// present and non-NaN.
func (s *MACrossoverStrategy) CanTrade(ctx *Context) bool {
	_, ok := gate(ctx, s.warmupBars, s.RequiredFeatures())
	return ok
}

// OnBar compares the two averages and emits the crossover signal.
func (s *MACrossoverStrategy) OnBar(ctx *Context) domain.Signal {
	if sig, ok := gate(ctx, s.warmupBars, s.RequiredFeatures()); !ok {
		return sig
	}

	fast, _ := ctx.Features.Value(s.FastCol)
	slow, _ := ctx.Features.Value(s.SlowCol)
	return crossover(fast, slow)
}

// Ensure MACrossoverStrategy implements Strategy
var _ Strategy = (*MACrossoverStrategy)(nil)
