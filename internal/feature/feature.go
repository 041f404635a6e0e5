// Package feature computes indicator columns and sequential transform chains
// over a validated bar sequence, producing a deterministic, lookback-aware
// feature matrix with lexicographically ordered columns.
package feature

import (
	"fmt"

	"bar-replay-lab/internal/domain"
)

// Indicator computes one column over the full bar sequence. Implementations
// are pure and deterministic. Output length always equals input length, with
// NaN during warmup.
type Indicator interface {
	// Name is the column key before transform suffixes are appended.
	Name() string
	// Lookback is the number of bars consumed before the first valid value.
	Lookback() int
	// Compute returns one value per input bar.
	Compute(bars []domain.Bar) ([]float64, error)
}

// Transform consumes and produces a same-length column. Implementations are
// pure; NaN inputs propagate.
type Transform interface {
	// Name is the suffix appended to the column key, starting with "_".
	Name() string
	// Lookback is the additional warmup this step introduces.
	Lookback() int
	// Apply returns a new slice; the input is never mutated.
	Apply(x []float64) []float64
}

// Spec is one configured feature column: a base indicator plus an ordered
// transform chain, optionally renamed by an alias.
type Spec struct {
	Base       Indicator
	Transforms []Transform
	Alias      string
}

// Name returns the column key: the alias when set, otherwise the base name
// with every transform suffix appended in order.
func (s Spec) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	name := s.Base.Name()
	for _, t := range s.Transforms {
		name += t.Name()
	}
	return name
}

// Lookback returns the spec's total warmup: base lookback plus the sum of
// transform lookbacks.
func (s Spec) Lookback() int {
	lb := s.Base.Lookback()
	for _, t := range s.Transforms {
		lb += t.Lookback()
	}
	return lb
}

// sourceSeries extracts one bar column as a float slice.
func sourceSeries(bars []domain.Bar, src string) ([]float64, error) {
	out := make([]float64, len(bars))
	switch src {
	case "open":
		for i, b := range bars {
			out[i] = b.Open
		}
	case "high":
		for i, b := range bars {
			out[i] = b.High
		}
	case "low":
		for i, b := range bars {
			out[i] = b.Low
		}
	case "close":
		for i, b := range bars {
			out[i] = b.Close
		}
	case "volume":
		for i, b := range bars {
			out[i] = b.Volume
		}
	default:
		return nil, fmt.Errorf("source column %q not found (valid: open, high, low, close, volume)", src)
	}
	return out, nil
}
