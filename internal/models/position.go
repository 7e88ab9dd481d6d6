package models

import "time"

// Position is an open holding, rebuilt from fill history.
type Position struct {
	Symbol            string
	Quantity          float64
	AverageEntryPrice float64
	OpenedAt          time.Time

	// Filled in from the latest quote when a snapshot is built; zero when
	// no quote was available.
	CurrentPrice  float64
	UnrealizedPnL float64
}

func (p Position) Open() bool { return p.Quantity > 0 }

func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnLFraction relative to the average entry.
func (p Position) UnrealizedPnLFraction(price float64) float64 {
	if p.AverageEntryPrice <= 0 {
		return 0
	}
	return (price - p.AverageEntryPrice) / p.AverageEntryPrice
}

// ClosedTrade is an archived round trip, cut the moment position quantity
// returned to zero. P&L is matched FIFO against buy fills.
type ClosedTrade struct {
	Symbol       string
	OpenedAt     time.Time
	ClosedAt     time.Time
	QuantitySold float64
	AvgBuyPrice  float64
	AvgSellPrice float64
	RealizedPnL  float64
	PnLPercent   float64
}

// PortfolioSnapshot is the view handed to the surrounding UI.
type PortfolioSnapshot struct {
	OpenPositions []Position
	ClosedTrades  []ClosedTrade
	GeneratedAt   time.Time
}
