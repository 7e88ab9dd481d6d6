package models

import "time"

// IndicatorSnapshot holds derived indicator values for one candle.
// One-to-one with Candle on (Timestamp, Symbol, Timeframe); rows before the
// lookback window simply do not exist.
type IndicatorSnapshot struct {
	Timestamp    time.Time
	Symbol       string
	Timeframe    string
	KeltnerUpper float64
	KeltnerLower float64
	RVI          float64
}

// SignalCode is a three-valued decision: -1 sell, 0 hold, +1 buy.
type SignalCode int

const (
	SignalSell SignalCode = -1
	SignalHold SignalCode = 0
	SignalBuy  SignalCode = 1
)

func (s SignalCode) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	}
	return "HOLD"
}

// SignalRecord is the combined signal row for one bar.
// RVISignal15m stays 0 when the 15m filter is disabled.
type SignalRecord struct {
	Timestamp     time.Time
	Symbol        string
	Timeframe     string
	KeltnerSignal SignalCode
	RVISignal     SignalCode
	RVISignal15m  SignalCode
	FinalSignal   SignalCode
}
