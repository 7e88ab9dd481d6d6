package models

import (
	"strings"
	"time"
)

// Candle is one closed OHLCV bar. Timestamp is the bar-close time in UTC.
// Only closed bars ever reach storage or computation; an in-progress bar
// is never a Candle.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Symbol    string
	Timeframe string
}

// Key identifies a candle and every row derived from it.
type Key struct {
	Timestamp time.Time
	Symbol    string
	Timeframe string
}

func (c Candle) Key() Key {
	return Key{Timestamp: c.Timestamp, Symbol: c.Symbol, Timeframe: c.Timeframe}
}

// Quote is the latest traded price for a symbol.
type Quote struct {
	Symbol string
	Price  float64
	At     time.Time
}

// NormTF brings exchange timeframe spellings to the canonical form.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1h"
	case "24h", "1d":
		return "1d"
	default:
		return s
	}
}

// TFDuration returns the bar length for a canonical timeframe, 0 if unknown.
func TFDuration(tf string) time.Duration {
	switch NormTF(tf) {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	}
	return 0
}

// LastClosedBar returns the close time of the most recent fully completed
// bar at or before now. Bars still forming are excluded by construction.
func LastClosedBar(now time.Time, tf string) time.Time {
	d := TFDuration(tf)
	if d <= 0 {
		return time.Time{}
	}
	now = now.UTC()
	return now.Truncate(d)
}
