package strategy

import (
	"time"

	"bar-replay-lab/internal/domain"
)

// Strategy turns per-bar market state into directional signals.
// Implementations must be pure with respect to the context: no I/O and no
// mutation of anything the engine owns.
type Strategy interface {
	// Name returns the registered strategy type name.
	Name() string

	// RequiredFeatures lists the feature columns OnBar reads.
	RequiredFeatures() []string

	// WarmupBars is the number of leading bars the strategy sits out.
	WarmupBars() int

	// CanTrade reports whether the warmup has passed and every required
	// feature is present and non-NaN for this bar.
	CanTrade(ctx *Context) bool

	// OnBar produces the signal for one bar. When CanTrade is false the
	// signal is neutral with a reason naming the gate that failed.
	OnBar(ctx *Context) domain.Signal
}

// FeatureRow is the read view of one bar's feature values.
type FeatureRow interface {
	// Value returns the named feature and whether the column exists.
	Value(name string) (float64, bool)
}

// Context is the read-only per-bar view handed to a strategy.
type Context struct {
	Timestamp time.Time
	Bar       domain.Bar
	Features  FeatureRow
	Position  float64 // signed position after this bar's execution step
	Equity    float64 // mark-to-market equity at this bar's close
	BarIndex  int     // zero-based index into the replayed sequence
}

// Signal reason tags emitted by the built-in strategies.
const (
	ReasonWarmup            = "warmup"
	ReasonFeatureNaN        = "feature_nan"
	ReasonCrossAbove        = "cross_above"
	ReasonCrossBelow        = "cross_below"
	ReasonEqual             = "equal"
	ReasonADXBelowThreshold = "adx_below_threshold"
)
