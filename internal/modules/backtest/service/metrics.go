package service

import (
	"math"

	"signal_bot/internal/models"
)

// one value per calendar day is the convention the Sharpe scaling assumes
const annualizationFactor = 252

func summarize(initial float64, curve []models.EquityPoint, trades []models.SimTrade) models.BacktestSummary {
	s := models.BacktestSummary{}
	if len(curve) == 0 || initial <= 0 {
		return s
	}

	final := curve[len(curve)-1].Equity
	s.TotalReturn = (final - initial) / initial
	s.MaxDrawdown = maxDrawdown(curve)
	s.Sharpe = sharpe(curve)

	for _, t := range trades {
		if t.Side != models.SideSell {
			continue
		}
		s.Trades++
		if t.PnL > 0 {
			s.WinRate++
		}
	}
	if s.Trades > 0 {
		s.WinRate /= float64(s.Trades)
	}
	return s
}

// maxDrawdown is the deepest peak-to-trough fall as a fraction of the peak.
func maxDrawdown(curve []models.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe annualizes the per-bar return series assuming a zero risk-free rate.
func sharpe(curve []models.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, (curve[i].Equity-prev)/prev)
	}
	if len(rets) < 2 {
		return 0
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualizationFactor)
}
