// Package metrics aggregates a run's fill ledger and equity curve into the
// summary figures reported alongside the risk bundle.
package metrics

import (
	"bar-replay-lab/internal/domain"
)

// Summary holds the per-run trade statistics.
//
// Win rate counts strictly positive PnL; zero-PnL fills count toward the
// trade count but are neither wins nor losses. AverageLoss keeps its sign
// (it is a mean over negative values).
type Summary struct {
	NTrades      int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	AverageWin   float64
	AverageLoss  float64
	EndingEquity float64
}

// Compute aggregates the fills and the equity curve of one run.
// With no trades every rate and average is 0, never NaN. With an empty
// curve the ending equity is the starting capital.
func Compute(fills []domain.Fill, curve []domain.EquityPoint, startingCapital float64) Summary {
	s := Summary{
		NTrades:      len(fills),
		EndingEquity: startingCapital,
	}
	if len(curve) > 0 {
		s.EndingEquity = curve[len(curve)-1].Equity
	}

	var winSum, lossSum float64
	for _, f := range fills {
		s.TotalPnL += f.PnL
		switch {
		case f.PnL > 0:
			s.Wins++
			winSum += f.PnL
		case f.PnL < 0:
			s.Losses++
			lossSum += f.PnL
		}
	}

	if s.NTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.NTrades)
	}
	if s.Wins > 0 {
		s.AverageWin = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = lossSum / float64(s.Losses)
	}

	return s
}
