// Package engine holds the bar-by-bar trading core: execute the previous
// bar's intent, mark to market, evaluate risk, record equity, then ask the
// strategy for the next intent. The same core serves backtests and any
// future live mode; only the bar source differs.
package engine

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/feature"
	"bar-replay-lab/internal/risk"
	"bar-replay-lab/internal/strategy"
)

// ErrLengthMismatch indicates the feature matrix does not line up 1:1 with
// the bar sequence. This is an integration error and fails the run
// immediately, never a silent truncation.
var ErrLengthMismatch = errors.New("bar count and feature row count differ")

// Engine owns position and equity state for one run. All state is mutated
// only by ProcessBar, in a fixed per-bar order; an Engine must never be
// shared across concurrent runs.
type Engine struct {
	strategy        strategy.Strategy
	riskManager     *risk.Manager
	startingCapital float64
	positionSize    float64
	logger          *log.Logger

	// Position state, mutated only by the execution step.
	equity     float64 // realized equity
	position   float64
	entryPrice float64
	entryTime  time.Time

	// Intent produced on the previous bar, executed at this bar's open.
	pendingIntent *domain.OrderIntent

	fills        []domain.Fill
	equityCurve  []domain.EquityPoint
	barsReplayed int
}

// NewEngine creates an engine with flat initial state. positionSize is the
// multiplier converting signal direction into a target position. A nil
// logger falls back to log.Default().
func NewEngine(strat strategy.Strategy, riskManager *risk.Manager, startingCapital, positionSize float64, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		strategy:        strat,
		riskManager:     riskManager,
		startingCapital: startingCapital,
		positionSize:    positionSize,
		logger:          logger,
		equity:          startingCapital,
	}
}

// Run replays the full bar sequence against its feature matrix.
// A row-count mismatch is fatal before any bar is processed.
func (e *Engine) Run(bars []domain.Bar, features *feature.Matrix) error {
	if features.NumRows() != len(bars) {
		return fmt.Errorf("%w: %d bars, %d feature rows", ErrLengthMismatch, len(bars), features.NumRows())
	}

	last := len(bars) - 1
	for i, bar := range bars {
		e.ProcessBar(bar, features.Row(i), i, i == last)
	}
	return nil
}

// ProcessBar runs one bar through the pipeline, in strict order:
// execution at the open, mark-to-market at the close, risk update, equity
// record, then (except on the terminal bar) signal and decision. The
// decision is stored as the pending intent for the next bar's open; there
// are no same-bar fills.
func (e *Engine) ProcessBar(bar domain.Bar, features strategy.FeatureRow, barIndex int, isLast bool) {
	e.barsReplayed++

	// Execution: resolve the previous bar's intent at this bar's open.
	// With no intent yet, hold the current position.
	target := e.position
	if e.pendingIntent != nil {
		target = e.pendingIntent.TargetPosition
	}
	var fill *domain.Fill
	e.position, e.entryPrice, e.entryTime, fill = executeOrder(
		target, e.position, e.entryPrice, e.entryTime, bar.Open, bar.Timestamp)
	if fill != nil {
		e.equity += fill.PnL
		e.fills = append(e.fills, *fill)
	}

	// Mark-to-market at the close.
	unrealized := 0.0
	if e.position > 0 {
		unrealized = (bar.Close - e.entryPrice) * math.Abs(e.position)
	} else if e.position < 0 {
		unrealized = (e.entryPrice - bar.Close) * math.Abs(e.position)
	}
	currentEquity := e.equity + unrealized

	// Risk reads MTM equity, never realized-only equity.
	action := e.riskManager.Update(bar.Timestamp, currentEquity)
	if action.Reason != "" {
		e.logger.Printf("risk: %s at %s", action.Reason, bar.Timestamp.Format(time.RFC3339))
	}

	e.equityCurve = append(e.equityCurve, domain.EquityPoint{
		Timestamp:     bar.Timestamp,
		Equity:        currentEquity,
		Position:      e.position,
		UnrealizedPnL: unrealized,
		RealizedPnL:   e.equity - e.startingCapital,
	})

	// Terminal bar: clear any pending intent so nothing dangles
	// unexecutable, and skip strategy evaluation entirely.
	if isLast {
		e.pendingIntent = nil
		return
	}

	sig := e.strategy.OnBar(&strategy.Context{
		Timestamp: bar.Timestamp,
		Bar:       bar,
		Features:  features,
		Position:  e.position,
		Equity:    currentEquity,
		BarIndex:  barIndex,
	})

	intent := e.decide(sig, action)
	e.pendingIntent = &intent
}

// decide converts a signal plus this bar's risk action into the next order
// intent. A flatten request overrides the strategy.
func (e *Engine) decide(sig domain.Signal, action domain.RiskAction) domain.OrderIntent {
	if action.Flatten {
		return domain.OrderIntent{TargetPosition: 0, Reason: "risk:" + action.Reason}
	}
	return domain.OrderIntent{
		TargetPosition: sig.Direction * e.positionSize,
		Reason:         sig.Reason,
	}
}

// Equity returns realized equity (excludes unrealized PnL on open positions).
func (e *Engine) Equity() float64 { return e.equity }

// Position returns the current signed position.
func (e *Engine) Position() float64 { return e.position }

// BarsReplayed returns the number of bars processed so far.
func (e *Engine) BarsReplayed() int { return e.barsReplayed }

// Fills returns the append-only ledger of closed legs, in close order.
// The slice is owned by the engine; callers must not modify it.
func (e *Engine) Fills() []domain.Fill { return e.fills }

// EquityCurve returns the per-bar equity records, one per replayed bar.
// The slice is owned by the engine; callers must not modify it.
func (e *Engine) EquityCurve() []domain.EquityPoint { return e.equityCurve }

// executeOrder resolves a target position at the current bar's open price.
// Flattening or flipping closes the entire position first and produces the
// single fill for the closed leg; a flip then reopens at the same open
// price within the same call. A resize that keeps the position's sign is
// ignored. Returns the new position state and the fill, if any.
func executeOrder(target, position, entryPrice float64, entryTime time.Time, barOpen float64, barTime time.Time) (float64, float64, time.Time, *domain.Fill) {
	if position == target {
		return position, entryPrice, entryTime, nil
	}

	var fill *domain.Fill

	// Close the existing position when flattening or flipping.
	if position != 0 && ((position > 0 && target <= 0) || (position < 0 && target >= 0)) {
		exitPrice := barOpen
		side := domain.SideLong
		pnl := (exitPrice - entryPrice) * math.Abs(position)
		if position < 0 {
			side = domain.SideShort
			pnl = (entryPrice - exitPrice) * math.Abs(position)
		}

		fill = &domain.Fill{
			EntryTime:  entryTime,
			ExitTime:   barTime,
			Side:       side,
			Quantity:   math.Abs(position),
			EntryPrice: entryPrice,
			ExitPrice:  exitPrice,
			PnL:        pnl,
		}
		position = 0
		entryPrice = 0
	}

	// Open once flat; this is both the fresh entry and the reopen leg of
	// a flip. Opens are not recorded as fills.
	if target != 0 && position == 0 {
		position = target
		entryPrice = barOpen
		entryTime = barTime
	}

	return position, entryPrice, entryTime, fill
}
