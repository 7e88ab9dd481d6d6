package models

import "signal_bot/internal/apperrors"

// IndicatorParams configures indicator computation for one (symbol, timeframe).
// Mutated only by explicit user edit; a recompute always applies one parameter
// set to the whole series.
type IndicatorParams struct {
	Symbol    string
	Timeframe string

	KeltnerPeriod          int
	KeltnerUpperMultiplier float64
	KeltnerLowerMultiplier float64

	RVIPeriod         int
	RVIUpperThreshold float64
	RVILowerThreshold float64

	RVI15mPeriod         int
	RVI15mUpperThreshold float64
	RVI15mLowerThreshold float64

	Include15mRVI bool
}

// DefaultIndicatorParams mirrors the stored defaults for a fresh pair.
func DefaultIndicatorParams(symbol, timeframe string) IndicatorParams {
	return IndicatorParams{
		Symbol:                 symbol,
		Timeframe:              timeframe,
		KeltnerPeriod:          24,
		KeltnerUpperMultiplier: 2.0,
		KeltnerLowerMultiplier: 2.0,
		RVIPeriod:              24,
		RVIUpperThreshold:      0.2,
		RVILowerThreshold:      -0.2,
		RVI15mPeriod:           24,
		RVI15mUpperThreshold:   0.2,
		RVI15mLowerThreshold:   -0.2,
	}
}

// Validate rejects broken parameter sets before any computation starts.
func (p IndicatorParams) Validate() error {
	if p.KeltnerPeriod <= 0 {
		return apperrors.NewParameterError("keltner_period", "must be positive")
	}
	if p.RVIPeriod <= 0 {
		return apperrors.NewParameterError("rvi_period", "must be positive")
	}
	if p.KeltnerUpperMultiplier <= 0 || p.KeltnerLowerMultiplier <= 0 {
		return apperrors.NewParameterError("keltner_multiplier", "must be positive")
	}
	if p.RVIUpperThreshold <= p.RVILowerThreshold {
		return apperrors.NewParameterError("rvi_thresholds", "upper must exceed lower")
	}
	if p.Include15mRVI {
		if p.RVI15mPeriod <= 0 {
			return apperrors.NewParameterError("rvi_15m_period", "must be positive")
		}
		if p.RVI15mUpperThreshold <= p.RVI15mLowerThreshold {
			return apperrors.NewParameterError("rvi_15m_thresholds", "upper must exceed lower")
		}
	}
	return nil
}

// RiskParams configures sizing and exits per symbol.
// Fractions are of portfolio value, not percentages.
type RiskParams struct {
	Symbol              string
	Stoploss            float64
	PositionSize        float64
	MaxAllocation       float64
	PartialSellFraction float64
}

func DefaultRiskParams(symbol string) RiskParams {
	return RiskParams{
		Symbol:              symbol,
		Stoploss:            0.10,
		PositionSize:        0.05,
		MaxAllocation:       0.20,
		PartialSellFraction: 0.2,
	}
}

func (p RiskParams) Validate() error {
	if p.Stoploss <= 0 || p.Stoploss >= 1 {
		return apperrors.NewParameterError("stoploss", "must be in (0, 1)")
	}
	if p.PositionSize <= 0 || p.PositionSize > 1 {
		return apperrors.NewParameterError("position_size", "must be in (0, 1]")
	}
	if p.MaxAllocation <= 0 || p.MaxAllocation > 1 {
		return apperrors.NewParameterError("max_allocation", "must be in (0, 1]")
	}
	if p.PartialSellFraction <= 0 || p.PartialSellFraction > 1 {
		return apperrors.NewParameterError("partial_sell_fraction", "must be in (0, 1]")
	}
	return nil
}
