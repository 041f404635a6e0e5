package feature

import (
	"fmt"
	"math"

	"bar-replay-lab/internal/domain"
)

// Compile-time interface checks
var (
	_ Indicator = SMA{}
	_ Indicator = EMA{}
	_ Indicator = ADX{}
)

// SMA is a simple moving average over a bar column.
type SMA struct {
	Period int
	Src    string
}

// Name returns "sma_{period}_{src}".
func (s SMA) Name() string { return fmt.Sprintf("sma_%d_%s", s.Period, s.Src) }

// Lookback returns the averaging period.
func (s SMA) Lookback() int { return s.Period }

// Compute returns the rolling mean over exactly Period points, NaN until
// that many points are available.
func (s SMA) Compute(bars []domain.Bar) ([]float64, error) {
	x, err := sourceSeries(bars, s.Src)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(x))
	for i := range out {
		if i < s.Period-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i - s.Period + 1; j <= i; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(s.Period)
	}
	return out, nil
}

// EMA is an exponentially weighted moving average with alpha = 2/(period+1).
type EMA struct {
	Period int
	Src    string
}

// Name returns "ema_{period}_{src}".
func (e EMA) Name() string { return fmt.Sprintf("ema_%d_%s", e.Period, e.Src) }

// Lookback returns the seeding period.
func (e EMA) Lookback() int { return e.Period }

// Compute runs the recursion y[i] = (1-alpha)*y[i-1] + alpha*x[i] seeded
// from the first sample, masking output as NaN until Period points have
// been observed.
func (e EMA) Compute(bars []domain.Bar) ([]float64, error) {
	x, err := sourceSeries(bars, e.Src)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(x))
	if len(x) == 0 {
		return out, nil
	}

	alpha := 2.0 / (float64(e.Period) + 1.0)
	y := x[0]
	for i := range x {
		if i > 0 {
			y = (1-alpha)*y + alpha*x[i]
		}
		if i < e.Period-1 {
			out[i] = math.NaN()
		} else {
			out[i] = y
		}
	}
	return out, nil
}

// ADX is Wilder's average directional movement index computed from the
// high/low/close columns.
type ADX struct {
	Period int
}

// Name returns "adx_{period}".
func (a ADX) Name() string { return fmt.Sprintf("adx_%d", a.Period) }

// Lookback returns 2*Period: the first smoothed DI appears at index Period
// and the first ADX value at index 2*Period.
func (a ADX) Lookback() int { return 2 * a.Period }

// Compute returns the ADX series. True range and directional movement start
// at index 1; Wilder smoothing seeds at index Period with the plain sum of
// the first Period values and then recurses s[i] = s[i-1] - s[i-1]/p + v[i].
// Bars with zero smoothed true range leave NaN holes that propagate through
// the ADX recursion, matching the degenerate-input contract.
func (a ADX) Compute(bars []domain.Bar) ([]float64, error) {
	n := len(bars)
	p := a.Period

	tr := nanSlice(n)
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)

	for i := 1; i < n; i++ {
		hDiff := bars[i].High - bars[i-1].High
		lDiff := bars[i-1].Low - bars[i].Low
		tr[i] = math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-bars[i-1].Close), math.Abs(bars[i].Low-bars[i-1].Close)))
		if hDiff > lDiff && hDiff > 0 {
			plusDM[i] = hDiff
		} else {
			plusDM[i] = 0
		}
		if lDiff > hDiff && lDiff > 0 {
			minusDM[i] = lDiff
		} else {
			minusDM[i] = 0
		}
	}

	smoothedTR := nanSlice(n)
	smoothedPlus := nanSlice(n)
	smoothedMinus := nanSlice(n)

	if n > p {
		smoothedTR[p] = sum(tr[1 : p+1])
		smoothedPlus[p] = sum(plusDM[1 : p+1])
		smoothedMinus[p] = sum(minusDM[1 : p+1])

		for i := p + 1; i < n; i++ {
			smoothedTR[i] = smoothedTR[i-1] - smoothedTR[i-1]/float64(p) + tr[i]
			smoothedPlus[i] = smoothedPlus[i-1] - smoothedPlus[i-1]/float64(p) + plusDM[i]
			smoothedMinus[i] = smoothedMinus[i-1] - smoothedMinus[i-1]/float64(p) + minusDM[i]
		}
	}

	dx := nanSlice(n)
	for i := p; i < n; i++ {
		if math.IsNaN(smoothedTR[i]) || smoothedTR[i] == 0 {
			continue
		}
		plusDI := 100.0 * smoothedPlus[i] / smoothedTR[i]
		minusDI := 100.0 * smoothedMinus[i] / smoothedTR[i]
		diSum := plusDI + minusDI
		if diSum != 0 {
			dx[i] = 100.0 * math.Abs(plusDI-minusDI) / diSum
		} else {
			dx[i] = 0.0
		}
	}

	adx := nanSlice(n)
	firstIdx := 2 * p
	if n > firstIdx {
		// Seed with the mean of DX[p+1..2p], then Wilder-smooth.
		adx[firstIdx] = sum(dx[p+1 : firstIdx+1]) / float64(p)
		for i := firstIdx + 1; i < n; i++ {
			adx[i] = (adx[i-1]*float64(p-1) + dx[i]) / float64(p)
		}
	}
	return adx, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func sum(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}
