package models

import "time"

// BacktestRequest pins everything a run depends on. Two identical requests
// must produce bit-identical results.
type BacktestRequest struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Indicator IndicatorParams
	Risk      RiskParams
	// InitialEquity in quote currency; 100 when zero.
	InitialEquity float64
}

type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// SimTrade is one executed simulated exit (full or partial).
type SimTrade struct {
	Timestamp  time.Time
	Side       Side
	Price      float64
	Quantity   float64
	PnL        float64
	EntryPrice float64
	Stoploss   bool
}

type BacktestSummary struct {
	TotalReturn float64 // fraction of initial equity
	Trades      int
	WinRate     float64
	MaxDrawdown float64 // fraction, peak to trough
	Sharpe      float64
}

// BacktestResult is produced once per run and never merged with another.
type BacktestResult struct {
	Request     BacktestRequest
	EquityCurve []EquityPoint
	TradeLog    []SimTrade
	Summary     BacktestSummary
}
