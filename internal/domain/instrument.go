// Package domain defines the core types and interfaces shared across the
// tickerbot: instruments, quotes, orders, trades, and the broker capability
// that concrete platform clients implement.
package domain

import "time"

// Instrument is a tradable symbol together with its configured price
// thresholds. The set of instruments and their thresholds is supplied by the
// configuration layer and only changes between decision cycles, never during
// one.
type Instrument struct {
	Symbol        string  `json:"symbol"`
	BuyThreshold  float64 `json:"buy_threshold"`
	SellThreshold float64 `json:"sell_threshold"`
	Exchange      string  `json:"exchange"`
}

// QuoteSource records where a quote's price came from.
type QuoteSource string

const (
	// QuoteSourceLive means the price is the latest trade while the market
	// is open.
	QuoteSourceLive QuoteSource = "live"
	// QuoteSourceClose means the price is the most recent daily close,
	// used when the market is closed or the live fetch failed.
	QuoteSourceClose QuoteSource = "close"
)

// Quote is a single observed price for an instrument. A price is always
// positive; unavailability is signalled by the absence of a Quote, never by a
// zero price.
type Quote struct {
	Symbol    string      `json:"symbol"`
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
	Source    QuoteSource `json:"source"`
}

// Action is the outcome of evaluating an instrument against its thresholds.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Decision is the result of one signal evaluation. Decisions are derived
// values: they are never persisted on their own, only the order they lead to.
type Decision struct {
	Symbol string
	Action Action
	Price  float64
	At     time.Time
}

// LastAction is the per-instrument display cache of the most recent completed
// trade. It is overwritten on every fill and never consulted by decision
// logic.
type LastAction struct {
	Action string  `json:"action"`
	Price  float64 `json:"price"`
}
