package engine

import (
	"sync"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// LastActions is the per-instrument cache of the most recent completed trade.
// It is written only by the order executor on a fill and read by the snapshot
// side for display; decision logic never consults it.
type LastActions struct {
	mu sync.RWMutex
	m  map[string]domain.LastAction
}

// NewLastActions creates an empty cache.
func NewLastActions() *LastActions {
	return &LastActions{m: make(map[string]domain.LastAction)}
}

// Set overwrites the last action for symbol.
func (c *LastActions) Set(symbol string, la domain.LastAction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[symbol] = la
}

// Get returns the last action for symbol, if any.
func (c *LastActions) Get(symbol string) (domain.LastAction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	la, ok := c.m[symbol]
	return la, ok
}

// View returns the cache as the dashboard payload shape: every requested
// symbol is present, with nil for symbols that have not traded yet.
func (c *LastActions) View(symbols []string) map[string]*domain.LastAction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*domain.LastAction, len(symbols))
	for _, sym := range symbols {
		if la, ok := c.m[sym]; ok {
			copied := la
			out[sym] = &copied
		} else {
			out[sym] = nil
		}
	}
	return out
}
