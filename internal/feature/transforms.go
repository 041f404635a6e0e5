package feature

import (
	"fmt"
	"math"
	"strconv"
)

// Compile-time interface checks
var (
	_ Transform = Diff{}
	_ Transform = Lag{}
	_ Transform = Rescale{}
	_ Transform = ZScoreRolling{}
)

// Diff is the k-step difference x[i] - x[i-k].
type Diff struct {
	K int
}

// Name returns "_diff_{k}".
func (d Diff) Name() string { return fmt.Sprintf("_diff_%d", d.K) }

// Lookback returns k.
func (d Diff) Lookback() int { return d.K }

// Apply returns the differenced column, NaN for the first k entries.
func (d Diff) Apply(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < d.K {
			out[i] = math.NaN()
		} else {
			out[i] = x[i] - x[i-d.K]
		}
	}
	return out
}

// Lag shifts the column forward by k steps.
type Lag struct {
	K int
}

// Name returns "_lag_{k}".
func (l Lag) Name() string { return fmt.Sprintf("_lag_%d", l.K) }

// Lookback returns k.
func (l Lag) Lookback() int { return l.K }

// Apply returns the shifted column, NaN for the first k entries.
func (l Lag) Apply(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < l.K {
			out[i] = math.NaN()
		} else {
			out[i] = x[i-l.K]
		}
	}
	return out
}

// Rescale maps values linearly from [OldMin, OldMax] to [NewMin, NewMax].
// A zero-width input range degenerates to an identity passthrough so the
// column shape is always preserved.
type Rescale struct {
	OldMin float64
	OldMax float64
	NewMin float64
	NewMax float64
}

// Name returns "_rescale_{old_min}_{old_max}".
func (r Rescale) Name() string {
	return fmt.Sprintf("_rescale_%s_%s", formatBound(r.OldMin), formatBound(r.OldMax))
}

// Lookback returns 0; rescaling introduces no warmup.
func (r Rescale) Lookback() int { return 0 }

// Apply returns the rescaled column.
func (r Rescale) Apply(x []float64) []float64 {
	out := make([]float64, len(x))
	denom := r.OldMax - r.OldMin
	if denom == 0 {
		copy(out, x)
		return out
	}
	for i, v := range x {
		out[i] = (v-r.OldMin)/denom*(r.NewMax-r.NewMin) + r.NewMin
	}
	return out
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ZScoreRolling standardizes each value against the mean and sample standard
// deviation of a trailing window.
type ZScoreRolling struct {
	Window int
}

// Name returns "_zscore_{window}".
func (z ZScoreRolling) Name() string { return fmt.Sprintf("_zscore_%d", z.Window) }

// Lookback returns the window size.
func (z ZScoreRolling) Lookback() int { return z.Window }

// Apply returns the rolling z-score. Entries are NaN until a full window is
// available, when any window member is NaN, and when the window's standard
// deviation is exactly zero (avoiding a divide by zero).
func (z ZScoreRolling) Apply(x []float64) []float64 {
	out := make([]float64, len(x))
	w := z.Window
	for i := range x {
		if i < w-1 {
			out[i] = math.NaN()
			continue
		}

		window := x[i-w+1 : i+1]
		mean := 0.0
		valid := true
		for _, v := range window {
			if math.IsNaN(v) {
				valid = false
				break
			}
			mean += v
		}
		if !valid {
			out[i] = math.NaN()
			continue
		}
		mean /= float64(w)

		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(w-1)) // sample std, ddof=1

		if std == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = (x[i] - mean) / std
		}
	}
	return out
}
