package domain

import "time"

// Trade is one completed fill as recorded by the trade ledger. Rows are
// append-only: a Trade is never mutated or deleted after it is written. The
// JSON field names match the columns of the durable trade log and the payloads
// sent to dashboard subscribers.
type Trade struct {
	Symbol           string    `json:"symbol"`
	Qty              int64     `json:"qty"`
	Side             OrderSide `json:"side"`
	Price            float64   `json:"price"`
	Time             time.Time `json:"time"`
	PortfolioBalance float64   `json:"portfolio_balance"`
}
