package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	risksvc "signal_bot/internal/modules/risk/service"
	trackersvc "signal_bot/internal/modules/tracker/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *memNotifier) Send(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *memNotifier) Sendf(format string, args ...any) { n.Send(fmt.Sprintf(format, args...)) }

func (n *memNotifier) has(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type venueFake struct {
	mu  sync.Mutex
	qty float64
}

func (v *venueFake) PlaceOrder(_ context.Context, intent *models.OrderIntent, clientID string) (*models.Order, error) {
	v.mu.Lock()
	v.qty = intent.Quantity
	v.mu.Unlock()
	return &models.Order{
		ID:                "ord-1",
		ClientID:          clientID,
		Symbol:            intent.Symbol,
		Side:              intent.Side,
		Type:              intent.Type,
		RequestedQuantity: intent.Quantity,
		Status:            models.OrderSubmitted,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

func (v *venueFake) OrderStatus(_ context.Context, orderID string) (models.OrderUpdate, error) {
	v.mu.Lock()
	qty := v.qty
	v.mu.Unlock()
	return models.OrderUpdate{
		OrderID:        orderID,
		Status:         models.OrderFilled,
		FilledQuantity: qty,
		AvgFillPrice:   100,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

func (v *venueFake) CancelOrder(_ context.Context, _, _ string) error { return nil }

type storeFake struct{}

func (storeFake) Insert(_ context.Context, _ *models.Order) error { return nil }
func (storeFake) UpdateStatus(_ context.Context, _ string, _ models.OrderStatus, _ time.Time) error {
	return nil
}
func (storeFake) Open(_ context.Context) ([]models.Order, error) { return nil, nil }

type fillStoreFake struct{}

func (fillStoreFake) Insert(_ context.Context, _ models.Fill) error { return nil }

type emptyJournal struct{}

func (emptyJournal) All(_ context.Context) ([]models.Fill, error) { return nil, nil }

type riskFake struct{}

func (riskFake) Get(_ context.Context, symbol string) (models.RiskParams, error) {
	return models.DefaultRiskParams(symbol), nil
}

// A buy signal must produce the submit notification and, once the tracker
// reaches FILLED, a fill notification with quantity and average price.
func TestActNotifiesOnFill(t *testing.T) {
	cfg := &config.Config{
		InitialCash:         1000,
		TrackerPollInterval: time.Millisecond,
		TrackerMaxPolls:     10,
		TradeTimeframe:      "1h",
	}
	venue := &venueFake{}
	tracker := trackersvc.NewTracker(cfg, venue, venue, venue, storeFake{}, fillStoreFake{})
	n := &memNotifier{}

	r := New(cfg, nil, nil, nil, nil, nil, riskFake{}, risksvc.NewSizer(),
		tracker, emptyJournal{}, healthsvc.NewState(), n)

	candle := models.Candle{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Open:      100, High: 101, Low: 99, Close: 100,
	}
	require.NoError(t, r.act(context.Background(), candle, models.SignalBuy))

	require.Eventually(t, func() bool { return n.has("filled BUY BTCUSDT") },
		time.Second, time.Millisecond)
	assert.True(t, n.has("qty=0.50000000"), "five percent of 1000 cash at price 100")
	assert.True(t, n.has("avg 100.0000"))

	// the pending guard is released once tracking finished
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return !r.pending["BTCUSDT"]
	}, time.Second, time.Millisecond)
}
