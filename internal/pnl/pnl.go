// Package pnl folds an ordered trade tape into realised and unrealised
// profit-and-loss using average-cost-basis bookkeeping. The functions are
// pure; callers always pass the full tape because a position cannot be
// re-derived after a sell without the original buy prices.
package pnl

import "github.com/quantfold/rulebot/internal/models"

// Summary holds the derived position and P&L metrics for one trade tape.
type Summary struct {
	TotalBuys     int     `json:"totalBuys"`
	TotalSells    int     `json:"totalSells"`
	RealisedPnl   float64 `json:"realisedPnl"`
	UnrealisedPnl float64 `json:"unrealisedPnl"`
	NetPnl        float64 `json:"netPnl"`
	NetPosition   int     `json:"netPosition"`
	WinRate       float64 `json:"winRate"`
}

// Compute folds the trade tape plus the current market price into a
// Summary. An empty tape yields all zeros. Sells with no matching buys
// contribute no realised P&L: without an average buy cost there is
// nothing to price them against, and treating them as pure profit would
// inflate the result.
func Compute(trades []models.Trade, currentPrice float64) Summary {
	var s Summary
	var buyTotal float64

	for _, t := range trades {
		switch t.Action {
		case models.ActionBuy:
			s.TotalBuys++
			buyTotal += t.Price
		case models.ActionSell:
			s.TotalSells++
		}
	}

	s.NetPosition = s.TotalBuys - s.TotalSells
	if s.TotalBuys == 0 {
		return s
	}

	avgBuyCost := buyTotal / float64(s.TotalBuys)

	var winningSells int
	for _, t := range trades {
		if t.Action != models.ActionSell {
			continue
		}
		s.RealisedPnl += t.Price - avgBuyCost
		if t.Price > avgBuyCost {
			winningSells++
		}
	}

	// No unrealised P&L is modeled for a flat or net-short position.
	if s.NetPosition > 0 {
		s.UnrealisedPnl = float64(s.NetPosition) * (currentPrice - avgBuyCost)
	}
	s.NetPnl = s.RealisedPnl + s.UnrealisedPnl

	if s.TotalSells > 0 {
		s.WinRate = float64(winningSells) / float64(s.TotalSells) * 100
	}
	return s
}

// AverageBuyCost returns the mean buy price of the tape, or 0 when it
// contains no buys.
func AverageBuyCost(trades []models.Trade) float64 {
	var total float64
	var buys int
	for _, t := range trades {
		if t.Action == models.ActionBuy {
			total += t.Price
			buys++
		}
	}
	if buys == 0 {
		return 0
	}
	return total / float64(buys)
}
