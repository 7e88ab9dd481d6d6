package service

import (
	"fmt"

	"signal_bot/internal/models"
)

// Sizer turns a final signal into an intended order under the configured
// risk rules. Pure: it looks only at the locally tracked position and the
// given quote, never at live margin.
type Sizer struct{}

func NewSizer() *Sizer { return &Sizer{} }

// Account is the sizing context: free cash plus the current position.
type Account struct {
	Cash     float64
	Position models.Position // zero value when flat
}

// PortfolioValue at the given price.
func (a Account) PortfolioValue(price float64) float64 {
	return a.Cash + a.Position.MarketValue(price)
}

// Size returns the intended order for a signal, or nil for no action.
func (s *Sizer) Size(sig models.SignalCode, acct Account, rp models.RiskParams, quote models.Quote) (*models.OrderIntent, error) {
	if err := rp.Validate(); err != nil {
		return nil, err
	}
	if quote.Price <= 0 {
		return nil, fmt.Errorf("sizer: quote price must be positive, got %.8f", quote.Price)
	}

	price := quote.Price
	pos := acct.Position

	// stoploss dominates everything: a breached stop closes the full
	// position no matter what the bar's signal says
	if pos.Open() && pos.UnrealizedPnLFraction(price) <= -rp.Stoploss {
		return &models.OrderIntent{
			Symbol:   rp.Symbol,
			Side:     models.SideSell,
			Type:     models.OrderMarket,
			Quantity: pos.Quantity,
			Stoploss: true,
			Reason:   fmt.Sprintf("stoploss: %.2f%% below entry", pos.UnrealizedPnLFraction(price)*-100),
		}, nil
	}

	switch sig {
	case models.SignalBuy:
		return s.sizeBuy(acct, rp, price), nil
	case models.SignalSell:
		return s.sizeSell(acct, rp, price), nil
	}
	return nil, nil
}

// dustFraction: a sell signal against a position worth less than this share
// of the portfolio closes it entirely instead of leaving unsellable crumbs.
const dustFraction = 0.01

func (s *Sizer) sizeBuy(acct Account, rp models.RiskParams, price float64) *models.OrderIntent {
	portfolio := acct.PortfolioValue(price)
	if portfolio <= 0 {
		return nil
	}

	invested := acct.Position.MarketValue(price)
	maxAllowed := rp.MaxAllocation * portfolio
	if invested >= maxAllowed {
		// capped, not an error
		return nil
	}

	amount := rp.PositionSize * portfolio
	if invested+amount > maxAllowed {
		amount = maxAllowed - invested
	}
	if amount > acct.Cash {
		amount = acct.Cash
	}
	if amount <= 0 {
		return nil
	}

	return &models.OrderIntent{
		Symbol:   rp.Symbol,
		Side:     models.SideBuy,
		Type:     models.OrderMarket,
		Quantity: amount / price,
		Reason:   fmt.Sprintf("buy signal: sizing %.2f%% of portfolio", rp.PositionSize*100),
	}
}

func (s *Sizer) sizeSell(acct Account, rp models.RiskParams, price float64) *models.OrderIntent {
	pos := acct.Position
	if !pos.Open() {
		return nil
	}

	if pos.MarketValue(price) < dustFraction*acct.PortfolioValue(price) {
		return &models.OrderIntent{
			Symbol:   rp.Symbol,
			Side:     models.SideSell,
			Type:     models.OrderMarket,
			Quantity: pos.Quantity,
			Reason:   "sell signal: position below dust threshold, closing fully",
		}
	}

	return &models.OrderIntent{
		Symbol:   rp.Symbol,
		Side:     models.SideSell,
		Type:     models.OrderMarket,
		Quantity: pos.Quantity * rp.PartialSellFraction,
		Reason:   fmt.Sprintf("sell signal: partial exit %.0f%%", rp.PartialSellFraction*100),
	}
}
