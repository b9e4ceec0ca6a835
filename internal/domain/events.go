package domain

import "context"

// Event names on the live update feed. The dashboard depends on these exact
// strings.
const (
	EventDataUpdate  = "data_update"
	EventTradeUpdate = "trade_update"
)

// Publisher pushes an event to live subscribers. Delivery is best-effort: a
// failed or slow subscriber never blocks the caller and missed events are not
// queued or retried.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// InstrumentView is the per-instrument slice of a state snapshot: the current
// quote (absent when unavailable), configured thresholds, and position.
type InstrumentView struct {
	Symbol         string   `json:"symbol"`
	CurrentPrice   *float64 `json:"current_price"`
	LastCloseTime  *int64   `json:"last_close_time"` // unix millis; nil when no quote
	BuyThreshold   float64  `json:"buy_threshold"`
	SellThreshold  float64  `json:"sell_threshold"`
	Exchange       string   `json:"exchange"`
	SharesOwned    int64    `json:"shares_owned"`
	ValueInDollars float64  `json:"value_in_dollars"`
}

// StateSnapshot is the payload of a data_update event: the full aggregate
// state pushed on every broadcast cycle and to every newly connected
// subscriber.
type StateSnapshot struct {
	DataList         []InstrumentView       `json:"data_list"`
	MarketStatus     string                 `json:"market_status"`
	PortfolioBalance float64                `json:"portfolio_balance"`
	BuyingPower      float64                `json:"buying_power"`
	AccountType      string                 `json:"account_type"`
	LastActions      map[string]*LastAction `json:"last_actions"`
	TradeRecords     []Trade                `json:"trade_records"`
}

// TradeUpdate is the payload of a trade_update event, published exactly once
// per fill.
type TradeUpdate struct {
	Symbol       string     `json:"symbol"`
	LastAction   LastAction `json:"last_action"`
	TradeRecords []Trade    `json:"trade_records"`
}
