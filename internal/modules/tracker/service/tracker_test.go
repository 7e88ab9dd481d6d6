package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/apperrors"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	mu      sync.Mutex
	updates []models.OrderUpdate
	errs    []error
	call    int
}

func (f *fakeExchange) OrderStatus(_ context.Context, _ string) (models.OrderUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.call
	if i >= len(f.updates) {
		i = len(f.updates) - 1
	}
	f.call++
	if i < len(f.errs) && f.errs[i] != nil {
		return models.OrderUpdate{}, f.errs[i]
	}
	return f.updates[i], nil
}

func (f *fakeExchange) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.call
}

type fakeStore struct {
	mu       sync.Mutex
	fills    []models.Fill
	statuses []models.OrderStatus
	open     []models.Order
}

func (s *fakeStore) Insert(_ context.Context, f models.Fill) error {
	s.mu.Lock()
	s.fills = append(s.fills, f)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, _ string, status models.OrderStatus, _ time.Time) error {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Open(_ context.Context) ([]models.Order, error) {
	return s.open, nil
}

func (s *fakeStore) fillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fills)
}

func (s *fakeStore) lastStatus() models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type fakeCanceler struct {
	mu    sync.Mutex
	calls int
}

func (c *fakeCanceler) CancelOrder(_ context.Context, _, _ string) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

func newTestTracker(ex *fakeExchange, store *fakeStore, maxPolls int) *Tracker {
	cfg := &config.Config{
		TrackerPollInterval: time.Millisecond,
		TrackerMaxPolls:     maxPolls,
	}
	return &Tracker{
		exchange:     ex,
		canceler:     &fakeCanceler{},
		orders:       ordersOnly{store},
		fills:        fillsOnly{store},
		pollInterval: cfg.TrackerPollInterval,
		maxPolls:     cfg.TrackerMaxPolls,
		stops:        map[string]chan struct{}{},
	}
}

type ordersOnly struct{ *fakeStore }

func (o ordersOnly) Insert(_ context.Context, _ *models.Order) error { return nil }

type fillsOnly struct{ *fakeStore }

func submittedOrder() *models.Order {
	return &models.Order{
		ID:                "ord-1",
		Symbol:            "BTCUSDT",
		Side:              models.SideBuy,
		Type:              models.OrderMarket,
		RequestedQuantity: 100,
		Status:            models.OrderSubmitted,
	}
}

func TestTrackDeduplicatesCumulativeFills(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchange{updates: []models.OrderUpdate{
		{OrderID: "ord-1", Status: models.OrderPartiallyFilled, FilledQuantity: 50, AvgFillPrice: 101, UpdatedAt: at},
		{OrderID: "ord-1", Status: models.OrderPartiallyFilled, FilledQuantity: 50, AvgFillPrice: 101, UpdatedAt: at},
		{OrderID: "ord-1", Status: models.OrderFilled, FilledQuantity: 100, AvgFillPrice: 102, UpdatedAt: at.Add(time.Second)},
	}}
	store := &fakeStore{}

	res, err := newTestTracker(ex, store, 10).Track(context.Background(), submittedOrder())
	require.NoError(t, err)

	// the repeated 50 observation must not produce a second fill
	require.Len(t, store.fills, 2)
	assert.InDelta(t, 50, store.fills[0].FilledQuantity, 1e-9)
	assert.InDelta(t, 101, store.fills[0].FilledPrice, 1e-9)
	assert.InDelta(t, 50, store.fills[1].FilledQuantity, 1e-9)
	// cumulative avg moved 101 -> 102 over 100 units: the increment traded at 103
	assert.InDelta(t, 103, store.fills[1].FilledPrice, 1e-9)

	assert.Equal(t,
		[]models.OrderStatus{models.OrderPartiallyFilled, models.OrderFilled},
		store.statuses)

	assert.Equal(t, models.OrderFilled, res.Status)
	assert.InDelta(t, 100, res.FilledQuantity, 1e-9)
	assert.InDelta(t, 102, res.AvgFillPrice, 1e-9)
}

func TestTrackCancelKeepsEarlierFills(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchange{updates: []models.OrderUpdate{
		{OrderID: "ord-1", Status: models.OrderPartiallyFilled, FilledQuantity: 30, AvgFillPrice: 100, UpdatedAt: at},
		{OrderID: "ord-1", Status: models.OrderCanceled, FilledQuantity: 30, AvgFillPrice: 100, UpdatedAt: at},
	}}
	store := &fakeStore{}

	res, err := newTestTracker(ex, store, 10).Track(context.Background(), submittedOrder())
	require.NoError(t, err)

	require.Len(t, store.fills, 1)
	assert.InDelta(t, 30, store.fills[0].FilledQuantity, 1e-9)
	assert.Equal(t,
		[]models.OrderStatus{models.OrderPartiallyFilled, models.OrderCanceled},
		store.statuses)
	// polling stopped at the terminal state
	assert.Equal(t, 2, ex.call)
	assert.Equal(t, models.OrderCanceled, res.Status)
	assert.InDelta(t, 30, res.FilledQuantity, 1e-9)
}

func TestTrackPollBudgetExhausted(t *testing.T) {
	ex := &fakeExchange{updates: []models.OrderUpdate{
		{OrderID: "ord-1", Status: models.OrderSubmitted},
	}}
	store := &fakeStore{}

	res, err := newTestTracker(ex, store, 4).Track(context.Background(), submittedOrder())
	require.Error(t, err)

	var te *apperrors.TrackerTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "ord-1", te.OrderID)
	assert.Equal(t, 4, te.Polls)
	assert.Equal(t, string(models.OrderSubmitted), te.LastStatus)
	assert.Empty(t, store.fills)
	assert.Equal(t, models.OrderSubmitted, res.Status)
}

func TestTrackTransientPollErrorsAreRetried(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchange{
		updates: []models.OrderUpdate{
			{},
			{OrderID: "ord-1", Status: models.OrderFilled, FilledQuantity: 100, AvgFillPrice: 100, UpdatedAt: at},
		},
		errs: []error{
			&apperrors.ExchangeTransientError{Op: "order status"},
			nil,
		},
	}
	store := &fakeStore{}

	_, err := newTestTracker(ex, store, 10).Track(context.Background(), submittedOrder())
	require.NoError(t, err)
	require.Len(t, store.fills, 1)
	assert.Equal(t, []models.OrderStatus{models.OrderFilled}, store.statuses)
}

func TestTrackContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &fakeExchange{updates: []models.OrderUpdate{{Status: models.OrderSubmitted}}}
	_, err := newTestTracker(ex, &fakeStore{}, 10).Track(ctx, submittedOrder())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCancelStopsPollingAndKeepsFills(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// the venue keeps reporting the same partial fill forever
	ex := &fakeExchange{updates: []models.OrderUpdate{
		{OrderID: "ord-1", Status: models.OrderPartiallyFilled, FilledQuantity: 30, AvgFillPrice: 100, UpdatedAt: at},
	}}
	store := &fakeStore{}
	tr := newTestTracker(ex, store, 10000)

	type outcome struct {
		res TrackResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := tr.Track(context.Background(), submittedOrder())
		done <- outcome{res, err}
	}()

	// wait until the partial fill landed, then cancel
	require.Eventually(t, func() bool { return store.fillCount() == 1 },
		time.Second, time.Millisecond)
	require.NoError(t, tr.Cancel(context.Background(), submittedOrder()))

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, models.OrderCanceled, out.res.Status)
		assert.InDelta(t, 30, out.res.FilledQuantity, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("track did not stop after cancel")
	}

	assert.Equal(t, 1, store.fillCount(), "recorded fills survive the cancel")
	assert.Equal(t, models.OrderCanceled, store.lastStatus())
	assert.Equal(t, 1, tr.canceler.(*fakeCanceler).calls)
}

func TestResumeTracksOpenOrders(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchange{updates: []models.OrderUpdate{
		{OrderID: "ord-1", Status: models.OrderFilled, FilledQuantity: 100, AvgFillPrice: 100, UpdatedAt: at},
	}}
	store := &fakeStore{open: []models.Order{*submittedOrder()}}
	tr := newTestTracker(ex, store, 10)

	n, err := tr.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool { return store.lastStatus() == models.OrderFilled },
		time.Second, time.Millisecond)
	assert.Equal(t, 1, store.fillCount())
}
