// Package engine implements the trading core: the pure signal evaluator, the
// order execution state machine with its per-instrument in-flight guard, the
// decision cycle that ties them together, and the snapshot/broadcast side.
package engine

import (
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Evaluate is the signal evaluator: a pure function from a quote and the
// instrument's thresholds to a Decision. A nil quote means the price is
// unavailable this cycle, which always yields none; missing data never
// defaults to a trade. Thresholds are compared as supplied; a misconfigured
// instrument (buy >= sell) is the configuration layer's problem to flag.
func Evaluate(inst domain.Instrument, quote *domain.Quote) domain.Decision {
	dec := domain.Decision{
		Symbol: inst.Symbol,
		Action: domain.ActionNone,
		At:     time.Now().UTC(),
	}
	if quote == nil || quote.Price <= 0 {
		return dec
	}

	dec.Price = quote.Price
	switch {
	case quote.Price < inst.BuyThreshold:
		dec.Action = domain.ActionBuy
	case quote.Price > inst.SellThreshold:
		dec.Action = domain.ActionSell
	}
	return dec
}
