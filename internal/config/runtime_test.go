package config

import (
	"strings"
	"testing"
)

func testTrading() TradingConfig {
	return TradingConfig{
		Instruments: []InstrumentConfig{
			{Symbol: "AAPL", BuyThreshold: 180, SellThreshold: 195, Exchange: "NASDAQ"},
			{Symbol: "MSFT", BuyThreshold: 400, SellThreshold: 430, Exchange: "NASDAQ"},
			{Symbol: "GOOG", BuyThreshold: 150, SellThreshold: 170, Exchange: "NASDAQ"},
		},
		Strategy: "Scalping",
		Broker:   "Alpaca",
	}
}

func TestSnapshotPreservesConfiguredOrder(t *testing.T) {
	s := NewSettings(testTrading())
	snap := s.Snapshot()

	want := []string{"AAPL", "MSFT", "GOOG"}
	if len(snap.Instruments) != len(want) {
		t.Fatalf("instruments = %d, want %d", len(snap.Instruments), len(want))
	}
	for i, sym := range want {
		if snap.Instruments[i].Symbol != sym {
			t.Errorf("instruments[%d] = %s, want %s", i, snap.Instruments[i].Symbol, sym)
		}
	}
	if snap.Strategy != "Scalping" || snap.Broker != "Alpaca" {
		t.Errorf("strategy/broker = %s/%s, want Scalping/Alpaca", snap.Strategy, snap.Broker)
	}
}

func TestApplyThresholdUpdate(t *testing.T) {
	s := NewSettings(testTrading())

	warns, err := s.Apply(Update{
		Thresholds: map[string]Threshold{
			"AAPL": {Buy: 170, Sell: 190},
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("warnings = %v, want none", warns)
	}

	snap := s.Snapshot()
	if snap.Instruments[0].BuyThreshold != 170 || snap.Instruments[0].SellThreshold != 190 {
		t.Errorf("AAPL thresholds = %v/%v, want 170/190",
			snap.Instruments[0].BuyThreshold, snap.Instruments[0].SellThreshold)
	}
	// Untouched instruments keep their thresholds.
	if snap.Instruments[1].BuyThreshold != 400 {
		t.Errorf("MSFT buy threshold = %v, want 400", snap.Instruments[1].BuyThreshold)
	}
}

func TestApplyRejectsUnknownSymbol(t *testing.T) {
	s := NewSettings(testTrading())
	before := s.Snapshot()

	if _, err := s.Apply(Update{Symbols: []string{"AAPL", "TSLA"}}); err == nil {
		t.Fatal("Apply accepted unknown symbol in selection")
	}
	if _, err := s.Apply(Update{Thresholds: map[string]Threshold{"TSLA": {Buy: 1, Sell: 2}}}); err == nil {
		t.Fatal("Apply accepted thresholds for unknown symbol")
	}

	// A rejected update must leave the settings untouched.
	after := s.Snapshot()
	if len(after.Instruments) != len(before.Instruments) {
		t.Errorf("instrument count changed after rejected update")
	}
}

func TestApplyRejectedUpdateLeavesNoPartialState(t *testing.T) {
	s := NewSettings(testTrading())
	before := s.Snapshot()

	// A valid selection change combined with an invalid threshold must be
	// rejected as a whole, not leave the narrowed selection behind.
	_, err := s.Apply(Update{
		Symbols: []string{"MSFT"},
		Thresholds: map[string]Threshold{
			"AAPL": {Buy: 0, Sell: 190},
		},
	})
	if err == nil {
		t.Fatal("Apply accepted update with non-positive threshold")
	}

	after := s.Snapshot()
	if len(after.Instruments) != len(before.Instruments) {
		t.Fatalf("selection = %d instruments after rejected update, want %d",
			len(after.Instruments), len(before.Instruments))
	}
	for i, inst := range before.Instruments {
		got := after.Instruments[i]
		if got.Symbol != inst.Symbol {
			t.Errorf("instruments[%d] = %s, want %s", i, got.Symbol, inst.Symbol)
		}
		if got.BuyThreshold != inst.BuyThreshold || got.SellThreshold != inst.SellThreshold {
			t.Errorf("%s thresholds = %v/%v, want %v/%v",
				got.Symbol, got.BuyThreshold, got.SellThreshold, inst.BuyThreshold, inst.SellThreshold)
		}
	}
}

func TestApplyRejectsNonPositiveThresholds(t *testing.T) {
	s := NewSettings(testTrading())
	if _, err := s.Apply(Update{Thresholds: map[string]Threshold{"AAPL": {Buy: 0, Sell: 190}}}); err == nil {
		t.Fatal("Apply accepted non-positive threshold")
	}
}

func TestApplyReordersSelection(t *testing.T) {
	s := NewSettings(testTrading())

	if _, err := s.Apply(Update{Symbols: []string{"GOOG", "AAPL"}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Instruments) != 2 {
		t.Fatalf("instruments = %d, want 2 after narrowing selection", len(snap.Instruments))
	}
	if snap.Instruments[0].Symbol != "GOOG" || snap.Instruments[1].Symbol != "AAPL" {
		t.Errorf("order = %s,%s, want GOOG,AAPL", snap.Instruments[0].Symbol, snap.Instruments[1].Symbol)
	}
}

func TestApplyWarnsOnOverlap(t *testing.T) {
	s := NewSettings(testTrading())

	warns, err := s.Apply(Update{
		Thresholds: map[string]Threshold{
			"AAPL": {Buy: 195, Sell: 180},
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v (overlap is a warning, not an error)", err)
	}
	if len(warns) != 1 || !strings.Contains(warns[0], "AAPL") {
		t.Fatalf("warnings = %v, want one AAPL overlap warning", warns)
	}
	// The overlapping thresholds are still applied.
	if snap := s.Snapshot(); snap.Instruments[0].BuyThreshold != 195 {
		t.Errorf("buy threshold = %v, want 195", snap.Instruments[0].BuyThreshold)
	}
}
