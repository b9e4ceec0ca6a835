package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the engine-side order lifecycle. An order starts in
// submitted and moves to exactly one terminal status, after which it is
// immutable.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusTimedOut  OrderStatus = "timed_out"
)

// Terminal reports whether no further transition can occur from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusTimedOut:
		return true
	default:
		return false
	}
}

// Order is the engine's view of one submitted broker order. The order
// execution state machine exclusively owns an Order until it reaches a
// terminal status.
type Order struct {
	ID             string // broker-assigned id
	Symbol         string
	Side           OrderSide
	Qty            int64
	Status         OrderStatus
	FilledAvgPrice float64 // set only when Status == filled
	SubmittedAt    time.Time
	ResolvedAt     time.Time // set when a terminal status is reached
}
