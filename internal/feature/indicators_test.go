package feature

import (
	"math"
	"testing"
	"time"

	"bar-replay-lab/internal/domain"
)

const floatTol = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTol
}

// Helper to create bars where every price column equals the given value
func makeCloseBars(closes []float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

// Helper to create bars from high/low/close triples
func makeHLCBars(h, l, c []float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(h))
	for i := range h {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c[i],
			High:      h[i],
			Low:       l[i],
			Close:     c[i],
			Volume:    100,
		}
	}
	return bars
}

func TestSMA_WarmupAndValues(t *testing.T) {
	bars := makeCloseBars([]float64{1, 2, 3, 4})

	got, err := SMA{Period: 2, Src: "close"}.Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !math.IsNaN(got[0]) {
		t.Errorf("index 0 should be NaN during warmup, got %v", got[0])
	}
	want := []float64{math.NaN(), 1.5, 2.5, 3.5}
	for i := 1; i < len(want); i++ {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSMA_Name(t *testing.T) {
	s := SMA{Period: 10, Src: "close"}
	if s.Name() != "sma_10_close" {
		t.Errorf("name = %q, want sma_10_close", s.Name())
	}
	if s.Lookback() != 10 {
		t.Errorf("lookback = %d, want 10", s.Lookback())
	}
}

func TestSMA_UnknownSource(t *testing.T) {
	bars := makeCloseBars([]float64{1, 2, 3})
	if _, err := (SMA{Period: 2, Src: "vwap"}).Compute(bars); err == nil {
		t.Fatal("expected error for unknown source column")
	}
}

func TestEMA_RecursionSeededFromFirstSample(t *testing.T) {
	bars := makeCloseBars([]float64{1, 2, 3})

	got, err := EMA{Period: 2, Src: "close"}.Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// alpha = 2/3. The recursion runs from the first sample but output is
	// masked until Period points are available.
	alpha := 2.0 / 3.0
	y1 := (1-alpha)*1 + alpha*2
	y2 := (1-alpha)*y1 + alpha*3

	if !math.IsNaN(got[0]) {
		t.Errorf("index 0 should be NaN, got %v", got[0])
	}
	if got[1] != y1 {
		t.Errorf("index 1: got %v, want %v", got[1], y1)
	}
	if got[2] != y2 {
		t.Errorf("index 2: got %v, want %v", got[2], y2)
	}
}

func TestEMA_Name(t *testing.T) {
	e := EMA{Period: 21, Src: "open"}
	if e.Name() != "ema_21_open" {
		t.Errorf("name = %q, want ema_21_open", e.Name())
	}
}

func TestADX_WarmupLength(t *testing.T) {
	// Trending series with range: first valid ADX at index 2*period.
	n := 12
	h := make([]float64, n)
	l := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		h[i] = 10 + float64(i)*2
		l[i] = 8 + float64(i)*2
		c[i] = 9 + float64(i)*2
	}
	bars := makeHLCBars(h, l, c)

	got, err := ADX{Period: 3}.Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for i := 0; i < 6; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("index %d should be NaN before 2*period, got %v", i, got[i])
		}
	}
	for i := 6; i < n; i++ {
		if math.IsNaN(got[i]) {
			t.Errorf("index %d should be valid, got NaN", i)
		}
		if got[i] < 0 || got[i] > 100 {
			t.Errorf("index %d: ADX %v out of [0,100]", i, got[i])
		}
	}
}

func TestADX_StrongTrendReadsOneHundred(t *testing.T) {
	// With period 1 the smoothing degenerates to the raw series, so a pure
	// one-directional move pins DX (and hence ADX) at exactly 100.
	h := []float64{10, 12, 13, 11}
	l := []float64{8, 10, 11, 9}
	c := []float64{9, 11, 12, 10}
	bars := makeHLCBars(h, l, c)

	got, err := ADX{Period: 1}.Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("indices 0-1 should be NaN for period 1")
	}
	if got[2] != 100.0 {
		t.Errorf("index 2: got %v, want 100.0", got[2])
	}
	if got[3] != 100.0 {
		t.Errorf("index 3: got %v, want 100.0", got[3])
	}
}

func TestADX_WilderSmoothingLiteral(t *testing.T) {
	// Hand-computed period-2 case mixing up and down moves.
	h := []float64{10, 12, 13, 11, 12}
	l := []float64{8, 10, 11, 9, 10}
	c := []float64{9, 11, 12, 10, 11}
	bars := makeHLCBars(h, l, c)

	got, err := ADX{Period: 2}.Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("index %d should be NaN, got %v", i, got[i])
		}
	}

	// DX[3] = 100/7, DX[4] = 300/11, first ADX = their mean.
	want := (100.0/7.0 + 300.0/11.0) / 2.0
	if !almostEqual(got[4], want) {
		t.Errorf("index 4: got %v, want %v", got[4], want)
	}
}

func TestADX_FlatSeriesStaysNaN(t *testing.T) {
	// Zero true range everywhere: DI is undefined, so ADX never leaves NaN.
	bars := makeCloseBars([]float64{5, 5, 5, 5, 5, 5, 5, 5})

	got, err := ADX{Period: 2}.Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("index %d: expected NaN on flat series, got %v", i, v)
		}
	}
}
