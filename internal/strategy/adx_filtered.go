package strategy

import (
	"bar-replay-lab/internal/domain"
)

// ADXFilteredStrategy is a moving-average crossover gated by trend
// strength: while ADX is below the threshold it signals flat, which also
// flattens any open position. The filter takes priority over the
// crossover comparison.
type ADXFilteredStrategy struct {
	FastCol      string
	SlowCol      string
	ADXCol       string
	ADXThreshold float64

	warmupBars int
}

// NewADXFilteredStrategy creates an ADX-gated crossover strategy reading
// the three named feature columns.
func NewADXFilteredStrategy(fastCol, slowCol, adxCol string, adxThreshold float64, warmupBars int) *ADXFilteredStrategy {
	return &ADXFilteredStrategy{
		FastCol:      fastCol,
		SlowCol:      slowCol,
		ADXCol:       adxCol,
		ADXThreshold: adxThreshold,
		warmupBars:   warmupBars,
	}
}

// Name returns the registered strategy type name.
func (s *ADXFilteredStrategy) Name() string { return domain.StrategyTypeADXFiltered }

// RequiredFeatures lists the feature columns OnBar reads.
func (s *ADXFilteredStrategy) RequiredFeatures() []string {
	return []string{s.FastCol, s.SlowCol, s.ADXCol}
}

// WarmupBars is the number of leading bars the strategy sits out.
func (s *ADXFilteredStrategy) WarmupBars() int { return s.warmupBars }

// CanTrade reports whether the warmup has passed and all three features
// are present and non-NaN.
func (s *ADXFilteredStrategy) CanTrade(ctx *Context) bool {
	_, ok := gate(ctx, s.warmupBars, s.RequiredFeatures())
	return ok
}

// OnBar applies the ADX gate, then the crossover comparison.
func (s *ADXFilteredStrategy) OnBar(ctx *Context) domain.Signal {
	if sig, ok := gate(ctx, s.warmupBars, s.RequiredFeatures()); !ok {
		return sig
	}

	adx, _ := ctx.Features.Value(s.ADXCol)
	if adx < s.ADXThreshold {
		return domain.NeutralSignal(ReasonADXBelowThreshold)
	}

	fast, _ := ctx.Features.Value(s.FastCol)
	slow, _ := ctx.Features.Value(s.SlowCol)
	return crossover(fast, slow)
}

// Ensure ADXFilteredStrategy implements Strategy
var _ Strategy = (*ADXFilteredStrategy)(nil)
