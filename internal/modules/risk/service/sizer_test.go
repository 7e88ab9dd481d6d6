package service

import (
	"testing"

	"signal_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRisk() models.RiskParams {
	return models.RiskParams{
		Symbol:              "BTC/USDT",
		Stoploss:            0.10,
		PositionSize:        0.05,
		MaxAllocation:       0.20,
		PartialSellFraction: 0.25,
	}
}

func TestSizerFreshBuy(t *testing.T) {
	s := NewSizer()
	acct := Account{Cash: 1000}
	quote := models.Quote{Symbol: "BTC/USDT", Price: 100}

	intent, err := s.Size(models.SignalBuy, acct, testRisk(), quote)
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.Equal(t, models.SideBuy, intent.Side)
	// 5% of 1000 = 50 quote units at price 100
	assert.InDelta(t, 0.5, intent.Quantity, 1e-9)
}

func TestSizerNeverExceedsMaxAllocation(t *testing.T) {
	s := NewSizer()
	rp := testRisk()
	quote := models.Quote{Symbol: "BTC/USDT", Price: 100}

	t.Run("at cap means no action", func(t *testing.T) {
		acct := Account{
			Cash:     800,
			Position: models.Position{Symbol: "BTC/USDT", Quantity: 2, AverageEntryPrice: 100},
		}
		// invested 200 of 1000 = exactly max_allocation
		intent, err := s.Size(models.SignalBuy, acct, rp, quote)
		require.NoError(t, err)
		assert.Nil(t, intent)
	})

	t.Run("near cap clips the order", func(t *testing.T) {
		acct := Account{
			Cash:     820,
			Position: models.Position{Symbol: "BTC/USDT", Quantity: 1.8, AverageEntryPrice: 100},
		}
		// invested 180 of 1000; 5% sizing would be 50 but only 20 fits
		intent, err := s.Size(models.SignalBuy, acct, rp, quote)
		require.NoError(t, err)
		require.NotNil(t, intent)

		portfolio := acct.PortfolioValue(quote.Price)
		after := acct.Position.MarketValue(quote.Price) + intent.Quantity*quote.Price
		assert.LessOrEqual(t, after, rp.MaxAllocation*portfolio+1e-9)
		assert.InDelta(t, 0.2, intent.Quantity, 1e-9)
	})
}

func TestSizerPartialExit(t *testing.T) {
	s := NewSizer()
	acct := Account{
		Cash:     500,
		Position: models.Position{Symbol: "BTC/USDT", Quantity: 4, AverageEntryPrice: 100},
	}
	quote := models.Quote{Symbol: "BTC/USDT", Price: 98} // -2%, above stoploss

	intent, err := s.Size(models.SignalSell, acct, testRisk(), quote)
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.Equal(t, models.SideSell, intent.Side)
	assert.InDelta(t, 1.0, intent.Quantity, 1e-9) // 25% of 4
}

func TestStoplossDominatesPartialExit(t *testing.T) {
	s := NewSizer()
	acct := Account{
		Cash:     500,
		Position: models.Position{Symbol: "BTC/USDT", Quantity: 4, AverageEntryPrice: 100},
	}
	quote := models.Quote{Symbol: "BTC/USDT", Price: 89} // -11%, beyond 10% stop

	for _, sig := range []models.SignalCode{models.SignalSell, models.SignalBuy, models.SignalHold} {
		intent, err := s.Size(sig, acct, testRisk(), quote)
		require.NoError(t, err)
		require.NotNil(t, intent, "signal %v", sig)

		assert.Equal(t, models.SideSell, intent.Side)
		assert.InDelta(t, 4.0, intent.Quantity, 1e-9, "full exit regardless of signal %v", sig)
	}
}

func TestSizerDustPositionClosesFully(t *testing.T) {
	s := NewSizer()
	// position worth 5 of a 1000 portfolio, under the 1% dust threshold
	acct := Account{
		Cash:     995,
		Position: models.Position{Symbol: "BTC/USDT", Quantity: 0.05, AverageEntryPrice: 100},
	}

	intent, err := s.Size(models.SignalSell, acct, testRisk(),
		models.Quote{Symbol: "BTC/USDT", Price: 100})
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.Equal(t, models.SideSell, intent.Side)
	assert.InDelta(t, 0.05, intent.Quantity, 1e-9, "dust closes fully, no partial")
	assert.False(t, intent.Stoploss)
}

func TestSizerNoPositionNoSell(t *testing.T) {
	s := NewSizer()
	intent, err := s.Size(models.SignalSell, Account{Cash: 1000}, testRisk(),
		models.Quote{Symbol: "BTC/USDT", Price: 100})
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestSizerRejectsBadParams(t *testing.T) {
	s := NewSizer()
	rp := testRisk()
	rp.Stoploss = 0

	_, err := s.Size(models.SignalBuy, Account{Cash: 1000}, rp,
		models.Quote{Symbol: "BTC/USDT", Price: 100})
	require.Error(t, err)
}
