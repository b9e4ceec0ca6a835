package config

import (
	"fmt"
	"sync"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Settings holds the runtime-mutable trading surface: which instruments are
// selected, their thresholds, and the strategy/broker labels. The dashboard
// mutates it through Update; cycles never read it directly but take an
// immutable Snapshot at cycle start, so a mid-cycle update only affects the
// next cycle.
type Settings struct {
	mu          sync.RWMutex
	order       []string // selected symbols in evaluation order
	instruments map[string]domain.Instrument
	strategy    string
	broker      string
}

// Snapshot is an immutable copy of the settings taken at the start of a cycle.
type Snapshot struct {
	Instruments []domain.Instrument // in configured evaluation order
	Strategy    string
	Broker      string
}

// Update describes a settings change from the configuration surface. A nil
// Symbols slice leaves the selection untouched; Thresholds entries replace the
// thresholds of the named instruments.
type Update struct {
	Symbols    []string
	Thresholds map[string]Threshold
	Strategy   string
	Broker     string
}

// Threshold is a buy/sell threshold pair.
type Threshold struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// NewSettings builds the runtime settings from the loaded trading config. All
// configured instruments start selected, in file order.
func NewSettings(tc TradingConfig) *Settings {
	s := &Settings{
		instruments: make(map[string]domain.Instrument, len(tc.Instruments)),
		strategy:    tc.Strategy,
		broker:      tc.Broker,
	}
	for _, ic := range tc.Instruments {
		exchange := ic.Exchange
		if exchange == "" {
			exchange = "NASDAQ"
		}
		s.order = append(s.order, ic.Symbol)
		s.instruments[ic.Symbol] = domain.Instrument{
			Symbol:        ic.Symbol,
			BuyThreshold:  ic.BuyThreshold,
			SellThreshold: ic.SellThreshold,
			Exchange:      exchange,
		}
	}
	return s
}

// Snapshot returns an immutable copy of the current settings. The returned
// instrument slice preserves the configured evaluation order, which fixes the
// deterministic per-cycle instrument ordering.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Instruments: make([]domain.Instrument, 0, len(s.order)),
		Strategy:    s.strategy,
		Broker:      s.broker,
	}
	for _, sym := range s.order {
		if inst, ok := s.instruments[sym]; ok {
			snap.Instruments = append(snap.Instruments, inst)
		}
	}
	return snap
}

// Apply merges an Update into the settings. Unknown symbols in the selection
// are rejected; threshold changes for known symbols are applied. It returns
// warnings for any instrument left with buy >= sell, mirroring the load-time
// Warnings check.
func (s *Settings) Apply(u Update) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate and stage the entire update before touching live state, so a
	// rejected update leaves the settings exactly as they were.
	order := s.order
	if u.Symbols != nil {
		for _, sym := range u.Symbols {
			if _, ok := s.instruments[sym]; !ok {
				return nil, fmt.Errorf("config: unknown instrument %s", sym)
			}
		}
		order = append([]string(nil), u.Symbols...)
	}

	staged := make(map[string]domain.Instrument, len(u.Thresholds))
	for sym, th := range u.Thresholds {
		inst, ok := s.instruments[sym]
		if !ok {
			return nil, fmt.Errorf("config: unknown instrument %s", sym)
		}
		if th.Buy <= 0 || th.Sell <= 0 {
			return nil, fmt.Errorf("config: instrument %s: thresholds must be positive", sym)
		}
		inst.BuyThreshold = th.Buy
		inst.SellThreshold = th.Sell
		staged[sym] = inst
	}

	s.order = order
	for sym, inst := range staged {
		s.instruments[sym] = inst
	}
	if u.Strategy != "" {
		s.strategy = u.Strategy
	}
	if u.Broker != "" {
		s.broker = u.Broker
	}

	var warns []string
	for _, sym := range s.order {
		inst := s.instruments[sym]
		if inst.BuyThreshold >= inst.SellThreshold {
			warns = append(warns, fmt.Sprintf(
				"instrument %s: buy threshold %.4f >= sell threshold %.4f; may oscillate every cycle",
				sym, inst.BuyThreshold, inst.SellThreshold,
			))
		}
	}
	return warns, nil
}
