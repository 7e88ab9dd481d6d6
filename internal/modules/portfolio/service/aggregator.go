package service

import (
	"context"
	"sort"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
)

// FillSource is the read side of the fill journal.
type FillSource interface {
	All(ctx context.Context) ([]models.Fill, error)
}

// QuoteSource supplies the latest traded price for marking open positions.
type QuoteSource interface {
	Ticker(ctx context.Context, symbol string) (models.Quote, error)
}

// Aggregator derives the portfolio view from the fill journal. Nothing is
// stored back: positions and closed trades are a pure fold over fills, so
// the view can always be rebuilt from scratch.
type Aggregator struct {
	fills  FillSource
	quotes QuoteSource
}

func NewAggregator(fills FillSource, quotes QuoteSource) *Aggregator {
	return &Aggregator{fills: fills, quotes: quotes}
}

// Snapshot folds the journal and marks each open position with the latest
// quote. A failed quote leaves that position unmarked rather than failing
// the whole snapshot.
func (a *Aggregator) Snapshot(ctx context.Context) (models.PortfolioSnapshot, error) {
	fills, err := a.fills.All(ctx)
	if err != nil {
		return models.PortfolioSnapshot{}, errors.Wrap(err, "load fills")
	}
	positions, closed := Fold(fills)
	for i := range positions {
		p := &positions[i]
		q, err := a.quotes.Ticker(ctx, p.Symbol)
		if err != nil {
			logger.Error("portfolio %s: quote unavailable: %v", p.Symbol, err)
			continue
		}
		p.CurrentPrice = q.Price
		p.UnrealizedPnL = p.Quantity * (q.Price - p.AverageEntryPrice)
	}
	return models.PortfolioSnapshot{
		OpenPositions: positions,
		ClosedTrades:  closed,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// lot is one unconsumed buy increment.
type lot struct {
	qty   float64
	price float64
	at    time.Time
}

// roundTrip accumulates sells until the position returns to zero.
type roundTrip struct {
	openedAt     time.Time
	soldQty      float64
	soldNotional float64
	buyNotional  float64
	realizedPnL  float64
}

// Fold replays fills in order and returns the open positions plus the
// archive of closed round trips. Sells consume buy lots FIFO; a round trip
// closes the instant held quantity returns to zero.
func Fold(fills []models.Fill) ([]models.Position, []models.ClosedTrade) {
	bySymbol := map[string][]models.Fill{}
	for _, f := range fills {
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], f)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var positions []models.Position
	var closed []models.ClosedTrade
	for _, sym := range symbols {
		pos, trades := foldSymbol(sym, bySymbol[sym])
		if pos.Open() {
			positions = append(positions, pos)
		}
		closed = append(closed, trades...)
	}

	sort.Slice(closed, func(i, j int) bool { return closed[i].ClosedAt.Before(closed[j].ClosedAt) })
	return positions, closed
}

func foldSymbol(symbol string, fills []models.Fill) (models.Position, []models.ClosedTrade) {
	var lots []lot
	var trip *roundTrip
	var closed []models.ClosedTrade

	for _, f := range fills {
		switch f.Side {
		case models.SideBuy:
			if trip == nil {
				trip = &roundTrip{openedAt: f.FilledAt}
			}
			lots = append(lots, lot{qty: f.FilledQuantity, price: f.FilledPrice, at: f.FilledAt})

		case models.SideSell:
			remaining := f.FilledQuantity
			for remaining > 1e-12 && len(lots) > 0 {
				l := &lots[0]
				take := remaining
				if take > l.qty {
					take = l.qty
				}
				trip.soldQty += take
				trip.soldNotional += take * f.FilledPrice
				trip.buyNotional += take * l.price
				trip.realizedPnL += take * (f.FilledPrice - l.price)

				l.qty -= take
				remaining -= take
				if l.qty <= 1e-12 {
					lots = lots[1:]
				}
			}
			if remaining > 1e-12 {
				// a sell the journal cannot match; never fabricate a lot
				logger.Error("portfolio %s: sell of %.8f exceeds held quantity by %.8f (order %s)",
					symbol, f.FilledQuantity, remaining, f.OrderID)
			}
			if len(lots) == 0 && trip != nil && trip.soldQty > 0 {
				closed = append(closed, trip.close(symbol, f.FilledAt))
				trip = nil
			}
		}
	}

	var pos models.Position
	if len(lots) > 0 {
		var qty, notional float64
		for _, l := range lots {
			qty += l.qty
			notional += l.qty * l.price
		}
		pos = models.Position{
			Symbol:            symbol,
			Quantity:          qty,
			AverageEntryPrice: notional / qty,
			OpenedAt:          trip.openedAt,
		}
	}
	return pos, closed
}

func (t *roundTrip) close(symbol string, at time.Time) models.ClosedTrade {
	ct := models.ClosedTrade{
		Symbol:       symbol,
		OpenedAt:     t.openedAt,
		ClosedAt:     at,
		QuantitySold: t.soldQty,
		RealizedPnL:  t.realizedPnL,
	}
	if t.soldQty > 0 {
		ct.AvgBuyPrice = t.buyNotional / t.soldQty
		ct.AvgSellPrice = t.soldNotional / t.soldQty
	}
	if t.buyNotional > 0 {
		ct.PnLPercent = t.realizedPnL / t.buyNotional * 100
	}
	return ct
}
