package service

import (
	"context"
	"sync"
	"time"

	"signal_bot/internal/apperrors"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/id"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
)

// OrderPlacer is the submit side of the exchange client.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, intent *models.OrderIntent, clientID string) (*models.Order, error)
}

// StatusSource is the poll side.
type StatusSource interface {
	OrderStatus(ctx context.Context, orderID string) (models.OrderUpdate, error)
}

// OrderCanceler is the cancel side.
type OrderCanceler interface {
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) error
	Open(ctx context.Context) ([]models.Order, error)
}

// FillStore is append-only.
type FillStore interface {
	Insert(ctx context.Context, f models.Fill) error
}

// Tracker owns the post-submit lifecycle of every order. A tracked order is
// polled until the venue reports a terminal state or the poll budget runs
// out; fill rows are derived from cumulative filled quantity, so a repeated
// observation never produces a duplicate fill.
type Tracker struct {
	exchange StatusSource
	placer   OrderPlacer
	canceler OrderCanceler
	orders   OrderStore
	fills    FillStore

	pollInterval time.Duration
	maxPolls     int

	mu    sync.Mutex
	stops map[string]chan struct{}
}

func NewTracker(cfg *config.Config, placer OrderPlacer, src StatusSource, canceler OrderCanceler, orders OrderStore, fills FillStore) *Tracker {
	return &Tracker{
		exchange:     src,
		placer:       placer,
		canceler:     canceler,
		orders:       orders,
		fills:        fills,
		pollInterval: cfg.TrackerPollInterval,
		maxPolls:     cfg.TrackerMaxPolls,
		stops:        map[string]chan struct{}{},
	}
}

// TrackResult is where polling stopped: the last observed status and what
// got filled along the way.
type TrackResult struct {
	Status         models.OrderStatus
	FilledQuantity float64
	AvgFillPrice   float64
}

// Submit places the intent and persists the resulting order in SUBMITTED
// state. The caller decides when (and on which goroutine) to Track it.
func (t *Tracker) Submit(ctx context.Context, intent *models.OrderIntent) (*models.Order, error) {
	order, err := t.placer.PlaceOrder(ctx, intent, id.New())
	if err != nil {
		return nil, err
	}
	if err := t.orders.Insert(ctx, order); err != nil {
		return nil, errors.Wrap(err, "persist submitted order")
	}
	logger.Info("submitted %s %s %s qty=%.8f order=%s",
		order.Symbol, order.Side, order.Type, order.RequestedQuantity, order.ID)
	return order, nil
}

// Track polls one order to completion. Blocking; run it on its own
// goroutine. Transient poll failures consume a poll from the budget and the
// loop keeps going. On budget exhaustion the order keeps its last known
// state and a TrackerTimeoutError is returned alongside the partial result.
func (t *Tracker) Track(ctx context.Context, order *models.Order) (TrackResult, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	stop := t.registerStop(order.ID)
	defer t.dropStop(order.ID)

	status := order.Status
	var cumFilled, cumNotional float64
	result := func() TrackResult {
		res := TrackResult{Status: status, FilledQuantity: cumFilled}
		if cumFilled > 0 {
			res.AvgFillPrice = cumNotional / cumFilled
		}
		return res
	}

	for poll := 1; poll <= t.maxPolls; poll++ {
		select {
		case <-ctx.Done():
			return result(), ctx.Err()
		case <-stop:
			// local cancel; Cancel already persisted the state
			status = models.OrderCanceled
			return result(), nil
		case <-ticker.C:
		}

		upd, err := t.exchange.OrderStatus(ctx, order.ID)
		if err != nil {
			if apperrors.IsTransient(err) {
				logger.Error("poll %s (%d/%d): %v", order.ID, poll, t.maxPolls, err)
				continue
			}
			return result(), err
		}

		status, cumFilled, cumNotional, err = t.apply(ctx, order, upd, status, cumFilled, cumNotional)
		if err != nil {
			return result(), err
		}
		if status.Terminal() {
			logger.Info("order %s terminal: %s (filled %.8f)", order.ID, status, cumFilled)
			return result(), nil
		}
	}

	return result(), &apperrors.TrackerTimeoutError{
		Symbol:     order.Symbol,
		OrderID:    order.ID,
		LastStatus: string(status),
		Polls:      t.maxPolls,
	}
}

// Cancel asks the venue to cancel and stops the order's poll loop right
// away. Fills already recorded in the journal stay.
func (t *Tracker) Cancel(ctx context.Context, order *models.Order) error {
	if err := t.canceler.CancelOrder(ctx, order.Symbol, order.ID); err != nil {
		return err
	}
	if err := t.orders.UpdateStatus(ctx, order.ID, models.OrderCanceled, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "persist cancel")
	}

	t.mu.Lock()
	if ch, ok := t.stops[order.ID]; ok {
		close(ch)
		delete(t.stops, order.ID)
	}
	t.mu.Unlock()

	logger.Info("cancel %s: polling stopped", order.ID)
	return nil
}

// Resume restarts tracking for every order the store still holds in a
// non-terminal state. Called once at startup.
func (t *Tracker) Resume(ctx context.Context) (int, error) {
	open, err := t.orders.Open(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load open orders")
	}
	for i := range open {
		order := open[i]
		go func() {
			if _, err := t.Track(ctx, &order); err != nil && ctx.Err() == nil {
				logger.Error("resume track %s: %v", order.ID, err)
			}
		}()
	}
	if len(open) > 0 {
		logger.Info("resumed tracking %d open orders", len(open))
	}
	return len(open), nil
}

func (t *Tracker) registerStop(orderID string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan struct{})
	t.stops[orderID] = ch
	return ch
}

func (t *Tracker) dropStop(orderID string) {
	t.mu.Lock()
	delete(t.stops, orderID)
	t.mu.Unlock()
}

// apply folds one observation into the tracked state: at most one fill row
// per observed increase of cumulative quantity, then the status transition.
func (t *Tracker) apply(
	ctx context.Context,
	order *models.Order,
	upd models.OrderUpdate,
	status models.OrderStatus,
	cumFilled, cumNotional float64,
) (models.OrderStatus, float64, float64, error) {
	if delta := upd.FilledQuantity - cumFilled; delta > 1e-12 {
		// venue reports a cumulative average price; back the increment out
		newNotional := upd.AvgFillPrice * upd.FilledQuantity
		price := (newNotional - cumNotional) / delta
		if price <= 0 {
			price = upd.AvgFillPrice
		}

		fill := models.Fill{
			OrderID:        order.ID,
			Symbol:         order.Symbol,
			Side:           order.Side,
			FilledQuantity: delta,
			FilledPrice:    price,
			FilledAt:       upd.UpdatedAt,
		}
		if fill.FilledAt.IsZero() {
			fill.FilledAt = time.Now().UTC()
		}
		if err := t.fills.Insert(ctx, fill); err != nil {
			return status, cumFilled, cumNotional, errors.Wrap(err, "persist fill")
		}
		cumFilled = upd.FilledQuantity
		cumNotional = newNotional
	}

	if upd.Status != status && status.CanTransition(upd.Status) {
		at := upd.UpdatedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if err := t.orders.UpdateStatus(ctx, order.ID, upd.Status, at); err != nil {
			return status, cumFilled, cumNotional, errors.Wrap(err, "persist status")
		}
		status = upd.Status
	}
	return status, cumFilled, cumNotional, nil
}
