package risk

import (
	"strings"
	"testing"
	"time"

	"bar-replay-lab/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestManager_GlobalHaltPermanent(t *testing.T) {
	m := NewManager(domain.RiskConfig{MaxDrawdownPct: ptr(10.0)}, 1000.0)

	// New peak at 1100, then a 10% drop to 990 breaches the limit.
	a := m.Update(ts("2024-01-01T00:00:00Z"), 1100.0)
	if a.Flatten || a.Halted {
		t.Fatalf("no action expected at new peak, got %+v", a)
	}

	a = m.Update(ts("2024-01-01T01:00:00Z"), 990.0)
	if !a.Flatten {
		t.Error("expected flatten on global breach")
	}
	if !a.Halted {
		t.Error("expected halted on global breach")
	}
	if !strings.Contains(a.Reason, "Global DD") {
		t.Errorf("reason %q should mention Global DD", a.Reason)
	}

	// Recovery does not clear the halt.
	a = m.Update(ts("2024-01-01T02:00:00Z"), 2000.0)
	if !a.Halted {
		t.Error("global halt must be permanent")
	}
	if !a.Flatten {
		t.Error("halted manager must keep flattening")
	}
	if a.Reason != "" {
		t.Errorf("no new trigger expected, got reason %q", a.Reason)
	}
}

func TestManager_HaltOnFirstBar(t *testing.T) {
	// Peak starts at the starting capital, so the very first observation
	// can already breach.
	m := NewManager(domain.RiskConfig{MaxDrawdownPct: ptr(10.0)}, 1000.0)

	a := m.Update(ts("2024-01-01T00:00:00Z"), 850.0)
	if !a.Halted || !a.Flatten {
		t.Fatalf("expected immediate halt, got %+v", a)
	}

	metrics := m.Metrics()
	if metrics.HaltedAt == nil {
		t.Fatal("expected halt timestamp to be recorded")
	}
	if !metrics.HaltedAt.Equal(ts("2024-01-01T00:00:00Z")) {
		t.Errorf("halt timestamp = %v, want first bar", metrics.HaltedAt)
	}
}

func TestManager_DailyPauseResetsNextDay(t *testing.T) {
	m := NewManager(domain.RiskConfig{DailyDDLimitPct: ptr(5.0)}, 1000.0)

	a := m.Update(ts("2024-01-01T10:00:00Z"), 1000.0)
	if a.Flatten {
		t.Fatalf("no action expected, got %+v", a)
	}

	// 5% intraday drop pauses for the rest of the day.
	a = m.Update(ts("2024-01-01T11:00:00Z"), 950.0)
	if !a.Flatten {
		t.Error("expected flatten on daily breach")
	}
	if a.Halted {
		t.Error("daily pause must not set the permanent halt flag")
	}
	if !strings.Contains(a.Reason, "Daily DD") {
		t.Errorf("reason %q should mention Daily DD", a.Reason)
	}

	// Still paused later the same day, with no new trigger reason.
	a = m.Update(ts("2024-01-01T12:00:00Z"), 960.0)
	if !a.Flatten {
		t.Error("pause must be sticky within the day")
	}
	if a.Reason != "" {
		t.Errorf("no new trigger expected, got reason %q", a.Reason)
	}

	// Next day the baseline resets to the previous bar's equity, so the
	// same equity level no longer counts as drawdown.
	a = m.Update(ts("2024-01-02T10:00:00Z"), 960.0)
	if a.Flatten {
		t.Errorf("expected pause cleared on new day, got %+v", a)
	}
}

func TestManager_DailyBaselineUsesMTMEquity(t *testing.T) {
	// The day-2 baseline must be day-1's final MTM equity (1100), not the
	// starting capital, so a drop to 1040 is a 5.45% daily drawdown.
	m := NewManager(domain.RiskConfig{DailyDDLimitPct: ptr(5.0)}, 1000.0)

	m.Update(ts("2024-01-01T10:00:00Z"), 1000.0)
	m.Update(ts("2024-01-01T23:00:00Z"), 1100.0)

	a := m.Update(ts("2024-01-02T10:00:00Z"), 1040.0)
	if !a.Flatten {
		t.Fatalf("expected daily breach against MTM baseline 1100, got %+v", a)
	}
	if !strings.Contains(a.Reason, "Daily DD 5.45%") {
		t.Errorf("reason %q should report drawdown against the 1100 baseline", a.Reason)
	}
}

func TestManager_MonthlyPauseResetsNextMonth(t *testing.T) {
	m := NewManager(domain.RiskConfig{MonthlyDDLimitPct: ptr(8.0)}, 1000.0)

	m.Update(ts("2024-01-02T00:00:00Z"), 1000.0)

	a := m.Update(ts("2024-01-15T00:00:00Z"), 915.0)
	if !a.Flatten {
		t.Error("expected flatten on monthly breach")
	}
	if !strings.Contains(a.Reason, "Monthly DD") {
		t.Errorf("reason %q should mention Monthly DD", a.Reason)
	}

	// Sticky through the rest of the month.
	a = m.Update(ts("2024-01-20T00:00:00Z"), 990.0)
	if !a.Flatten {
		t.Error("pause must be sticky within the month")
	}

	// February resets the baseline to January's final MTM equity.
	a = m.Update(ts("2024-02-01T00:00:00Z"), 985.0)
	if a.Flatten {
		t.Errorf("expected pause cleared on new month, got %+v", a)
	}

	metrics := m.Metrics()
	if metrics.MonthlyHalts != 1 {
		t.Errorf("monthly halts = %d, want 1", metrics.MonthlyHalts)
	}
}

func TestManager_ReasonOrderingGlobalDailyMonthly(t *testing.T) {
	// One bar that breaches all three checks must report the fragments in
	// global, daily, monthly order.
	m := NewManager(domain.RiskConfig{
		MaxDrawdownPct:    ptr(10.0),
		DailyDDLimitPct:   ptr(5.0),
		MonthlyDDLimitPct: ptr(5.0),
	}, 1000.0)

	m.Update(ts("2024-01-01T00:00:00Z"), 1000.0)
	a := m.Update(ts("2024-01-01T01:00:00Z"), 850.0)

	if !a.Flatten || !a.Halted {
		t.Fatalf("expected full breach, got %+v", a)
	}
	gi := strings.Index(a.Reason, "Global DD")
	di := strings.Index(a.Reason, "Daily DD")
	mi := strings.Index(a.Reason, "Monthly DD")
	if gi < 0 || di < 0 || mi < 0 {
		t.Fatalf("reason %q missing fragments", a.Reason)
	}
	if !(gi < di && di < mi) {
		t.Errorf("reason %q not in global/daily/monthly order", a.Reason)
	}
	if strings.Count(a.Reason, "; ") != 2 {
		t.Errorf("fragments must join with %q: %q", "; ", a.Reason)
	}
}

func TestManager_DisabledChecksNeverFire(t *testing.T) {
	m := NewManager(domain.RiskConfig{}, 1000.0)

	stamps := []string{
		"2024-01-01T00:00:00Z",
		"2024-01-02T00:00:00Z",
		"2024-02-01T00:00:00Z",
	}
	equity := []float64{1000, 200, 250}

	for i, s := range stamps {
		a := m.Update(ts(s), equity[i])
		if a.Flatten || a.Halted || a.Reason != "" {
			t.Fatalf("disabled config acted on bar %d: %+v", i, a)
		}
	}

	// The global tracker still observes drawdown for reporting.
	if got := m.Metrics().MaxDrawdownPct; got != 80.0 {
		t.Errorf("max drawdown = %v, want 80.0", got)
	}
}

func TestManager_MetricsBundle(t *testing.T) {
	cfg := domain.RiskConfig{
		MaxDrawdownPct:    ptr(50.0),
		DailyDDLimitPct:   ptr(5.0),
		MonthlyDDLimitPct: ptr(40.0),
	}
	m := NewManager(cfg, 1000.0)

	m.Update(ts("2024-01-01T00:00:00Z"), 1000.0)
	m.Update(ts("2024-01-01T01:00:00Z"), 875.0) // daily breach only
	m.Update(ts("2024-01-02T00:00:00Z"), 875.0)

	got := m.Metrics()
	if got.Halted {
		t.Error("global halt should not have fired")
	}
	if got.HaltedAt != nil {
		t.Errorf("halt timestamp should be nil, got %v", got.HaltedAt)
	}
	if got.DailyHalts != 1 {
		t.Errorf("daily halts = %d, want 1", got.DailyHalts)
	}
	if got.MonthlyHalts != 0 {
		t.Errorf("monthly halts = %d, want 0", got.MonthlyHalts)
	}
	if *got.DailyDDLimitPct != 5.0 || *got.MonthlyDDLimitPct != 40.0 {
		t.Errorf("limits not echoed: %+v", got)
	}
	if got.MaxDrawdownPct != 12.5 {
		t.Errorf("max drawdown = %v, want 12.5", got.MaxDrawdownPct)
	}
}
