package domain

import (
	"context"
	"time"
)

// Clock is the broker's market clock.
type Clock struct {
	IsOpen    bool
	Timestamp time.Time
	NextOpen  time.Time
	NextClose time.Time
}

// Account is a snapshot of the trading account.
type Account struct {
	Equity      float64
	BuyingPower float64
}

// BrokerPosition is one open position as reported by the broker.
type BrokerPosition struct {
	Symbol string
	Qty    int64
}

// LatestTrade is the most recent trade print for a symbol.
type LatestTrade struct {
	Price     float64
	Timestamp time.Time
}

// Bar is one daily (or intraday) candle. Only the close is used.
type Bar struct {
	Timestamp time.Time
	Close     float64
}

// OrderRequest describes an order to submit to the broker.
type OrderRequest struct {
	Symbol      string
	Qty         int64
	Side        OrderSide
	Type        string // e.g. "market"
	TimeInForce string // e.g. "gtc"
}

// BrokerOrder is the broker's view of a previously submitted order, as
// returned by order-status polling.
type BrokerOrder struct {
	ID             string
	Status         string // broker status string, e.g. "filled", "rejected"
	FilledAvgPrice float64
	FilledAt       time.Time
}

// Broker is the capability through which the engine talks to the brokerage.
// Every call takes a context and may fail; callers degrade a failed call to an
// absent value rather than aborting the cycle. Implementations live under
// internal/platform; tests substitute an in-memory double.
type Broker interface {
	GetClock(ctx context.Context) (Clock, error)
	GetAccount(ctx context.Context) (Account, error)
	ListPositions(ctx context.Context) ([]BrokerPosition, error)
	GetLatestTrade(ctx context.Context, symbol string) (LatestTrade, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)

	// SubmitOrder places an order and returns the broker-assigned id.
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	GetOrder(ctx context.Context, id string) (BrokerOrder, error)

	// AccountType labels the account for display, e.g. "Paper" or "Live".
	AccountType() string
}

// CloseProvider supplies the most recent daily close for a symbol. It is the
// historical fallback used when the market is closed or the live quote fails.
type CloseProvider interface {
	RecentClose(ctx context.Context, symbol string) (float64, error)
}
