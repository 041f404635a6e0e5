package risk

import (
	"fmt"
	"strings"
	"time"

	"bar-replay-lab/internal/domain"
)

// Manager orchestrates the three drawdown horizons for one run. The engine
// calls Update exactly once per bar, strictly after mark-to-market equity is
// computed; feeding realized-only equity under-counts drawdown whenever a
// position carries unrealized P&L.
//
// Flatten latency: when Update returns Flatten=true the engine sets the
// target position to zero, and the close executes at the next bar's open
// (next-bar-open execution applies to risk exits too).
type Manager struct {
	cfg             domain.RiskConfig
	startingCapital float64

	global   *DrawdownTracker
	halted   bool
	haltedAt *time.Time

	dailyPaused    bool
	currentDay     string // UTC calendar date, "" before the first bar
	dayStartEquity float64
	dailyHalts     int

	monthlyPaused    bool
	currentMonth     string // UTC year-month, "" before the first bar
	monthStartEquity float64
	monthlyHalts     int

	// Previous bar's MTM equity. Period boundaries adopt this value as the
	// new baseline so unrealized P&L crossing the boundary is counted.
	lastEquityClose float64
}

// NewManager creates a Manager with all baselines seeded from the starting
// capital. Nil thresholds in cfg disable the corresponding check.
func NewManager(cfg domain.RiskConfig, startingCapital float64) *Manager {
	return &Manager{
		cfg:              cfg,
		startingCapital:  startingCapital,
		global:           NewDrawdownTracker(startingCapital),
		dayStartEquity:   startingCapital,
		monthStartEquity: startingCapital,
		lastEquityClose:  startingCapital,
	}
}

// Update processes one bar and returns the action the engine must honor.
// Checks run in a fixed order (global, daily, monthly) and their reason
// fragments join with "; " in that order.
func (m *Manager) Update(barTS time.Time, currentEquity float64) domain.RiskAction {
	flatten := false
	var reasons []string

	utc := barTS.UTC()
	day := utc.Format("2006-01-02")
	month := utc.Format("2006-01")

	// Period-boundary resets. The new baseline is the previous bar's MTM
	// equity, and any pause for that horizon clears.
	if day != m.currentDay {
		m.dailyPaused = false
		m.currentDay = day
		m.dayStartEquity = m.lastEquityClose
	}
	if month != m.currentMonth {
		m.monthlyPaused = false
		m.currentMonth = month
		m.monthStartEquity = m.lastEquityClose
	}

	// Global drawdown check. The halt is permanent for the rest of the run.
	state := m.global.Update(currentEquity)
	if !m.halted && m.cfg.MaxDrawdownPct != nil && state.DrawdownPct >= *m.cfg.MaxDrawdownPct {
		m.halted = true
		at := utc
		m.haltedAt = &at
		flatten = true
		reasons = append(reasons, fmt.Sprintf(
			"Global DD %.2f%% >= limit %.2f%%", state.DrawdownPct, *m.cfg.MaxDrawdownPct))
	}

	// Daily drawdown check against the day-start baseline.
	if !m.dailyPaused && m.cfg.DailyDDLimitPct != nil && m.dayStartEquity > 0 {
		dd := ComputeDrawdownPct(m.dayStartEquity, currentEquity)
		if dd >= *m.cfg.DailyDDLimitPct {
			m.dailyPaused = true
			m.dailyHalts++
			flatten = true
			reasons = append(reasons, fmt.Sprintf(
				"Daily DD %.2f%% >= limit %.2f%%", dd, *m.cfg.DailyDDLimitPct))
		}
	}

	// Monthly drawdown check against the month-start baseline.
	if !m.monthlyPaused && m.cfg.MonthlyDDLimitPct != nil && m.monthStartEquity > 0 {
		dd := ComputeDrawdownPct(m.monthStartEquity, currentEquity)
		if dd >= *m.cfg.MonthlyDDLimitPct {
			m.monthlyPaused = true
			m.monthlyHalts++
			flatten = true
			reasons = append(reasons, fmt.Sprintf(
				"Monthly DD %.2f%% >= limit %.2f%%", dd, *m.cfg.MonthlyDDLimitPct))
		}
	}

	// A halt or pause set on an earlier bar keeps flattening until it clears.
	if m.halted || m.dailyPaused || m.monthlyPaused {
		flatten = true
	}

	m.lastEquityClose = currentEquity

	return domain.RiskAction{
		Flatten: flatten,
		Halted:  m.halted,
		Reason:  strings.Join(reasons, "; "),
	}
}

// Halted reports whether the permanent global halt has fired.
func (m *Manager) Halted() bool { return m.halted }

// Metrics returns the seven-field bundle consumed by reporting.
func (m *Manager) Metrics() domain.RiskMetrics {
	return domain.RiskMetrics{
		MaxDrawdownPct:    m.global.MaxDrawdownPct(),
		Halted:            m.halted,
		HaltedAt:          m.haltedAt,
		DailyDDLimitPct:   m.cfg.DailyDDLimitPct,
		MonthlyDDLimitPct: m.cfg.MonthlyDDLimitPct,
		DailyHalts:        m.dailyHalts,
		MonthlyHalts:      m.monthlyHalts,
	}
}
