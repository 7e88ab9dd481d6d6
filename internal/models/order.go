package models

import "time"

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderStatus is a finite state. Filled, canceled and rejected are terminal.
type OrderStatus string

const (
	OrderSubmitted       OrderStatus = "SUBMITTED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// No transition ever leaves a terminal state.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case OrderSubmitted:
		switch to {
		case OrderPartiallyFilled, OrderFilled, OrderCanceled, OrderRejected:
			return true
		}
	case OrderPartiallyFilled:
		switch to {
		case OrderPartiallyFilled, OrderFilled, OrderCanceled:
			return true
		}
	}
	return false
}

// OrderIntent is what the position sizer emits: a desired trade before it
// has an exchange identity.
type OrderIntent struct {
	Symbol   string
	Side     Side
	Type     OrderType
	Quantity float64
	Price    float64 // 0 for market orders
	Stoploss bool    // breached stop, not a regular sell signal
	Reason   string
}

// Order is a locally tracked exchange order. Mutated only by the lifecycle
// tracker once submitted.
type Order struct {
	ID                string // exchange order id
	ClientID          string // our ulid, assigned at submit time
	Symbol            string
	Side              Side
	Type              OrderType
	RequestedQuantity float64
	RequestedPrice    float64 // 0 for market
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderUpdate is one observation of an order's exchange-side state.
// FilledQuantity is cumulative, not incremental.
type OrderUpdate struct {
	OrderID        string
	Status         OrderStatus
	FilledQuantity float64
	AvgFillPrice   float64
	UpdatedAt      time.Time
}

// Fill is one increment of executed quantity. Append-only.
type Fill struct {
	OrderID        string
	Symbol         string
	Side           Side
	FilledQuantity float64
	FilledPrice    float64
	FilledAt       time.Time
}
