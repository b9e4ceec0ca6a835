package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nwestbury/tickerbot/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL,
		DataURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
	})
}

func TestGetClock(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/clock" {
			t.Errorf("path = %s, want /v2/clock", r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			t.Errorf("auth headers missing: %v", r.Header)
		}
		w.Write([]byte(`{"timestamp":"2026-08-28T14:00:00Z","is_open":true,"next_open":"2026-08-31T13:30:00Z","next_close":"2026-08-28T20:00:00Z"}`))
	}))

	clock, err := c.GetClock(context.Background())
	if err != nil {
		t.Fatalf("GetClock: %v", err)
	}
	if !clock.IsOpen {
		t.Errorf("IsOpen = false, want true")
	}
}

func TestGetAccountParsesStringMoney(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"equity":"25000.50","buying_power":"50001.00","status":"ACTIVE"}`))
	}))

	acct, err := c.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Equity != 25000.50 || acct.BuyingPower != 50001.00 {
		t.Errorf("account = %+v, want 25000.50/50001.00", acct)
	}
}

func TestListPositionsFractionalQty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"AAPL","qty":"3"},{"symbol":"MSFT","qty":"1.5"}]`))
	}))

	positions, err := c.ListPositions(context.Background())
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(positions))
	}
	if positions[0].Qty != 3 {
		t.Errorf("AAPL qty = %d, want 3", positions[0].Qty)
	}
	if positions[1].Qty != 1 {
		t.Errorf("MSFT qty = %d, want 1 (fractional rounds toward zero)", positions[1].Qty)
	}
}

func TestGetLatestTrade(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/AAPL/trades/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"symbol":"AAPL","trade":{"p":180.55,"t":"2026-08-28T14:00:00Z"}}`))
	}))

	lt, err := c.GetLatestTrade(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetLatestTrade: %v", err)
	}
	if lt.Price != 180.55 {
		t.Errorf("price = %v, want 180.55", lt.Price)
	}
}

func TestGetLatestTradeZeroPriceUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","trade":{"p":0,"t":"2026-08-28T14:00:00Z"}}`))
	}))

	if _, err := c.GetLatestTrade(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestSubmitOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("request = %s %s, want POST /v2/orders", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["symbol"] != "AAPL" || body["qty"] != "1" || body["side"] != "buy" ||
			body["type"] != "market" || body["time_in_force"] != "gtc" {
			t.Errorf("order body = %v", body)
		}
		w.Write([]byte(`{"id":"abc-123","symbol":"AAPL","qty":"1","side":"buy","status":"new","submitted_at":"2026-08-28T14:00:00Z"}`))
	}))

	id, err := c.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:      "AAPL",
		Qty:         1,
		Side:        domain.OrderSideBuy,
		Type:        "market",
		TimeInForce: "gtc",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("order id = %q, want abc-123", id)
	}
}

func TestSubmitOrderRejectsNonPositiveQty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the broker")
	}))
	if _, err := c.SubmitOrder(context.Background(), domain.OrderRequest{Symbol: "AAPL", Qty: 0}); err == nil {
		t.Fatal("expected error for zero qty")
	}
}

func TestGetOrderFilled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders/abc-123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"abc-123","status":"filled","filled_avg_price":"180.55","filled_at":"2026-08-28T14:00:01Z","submitted_at":"2026-08-28T14:00:00Z"}`))
	}))

	order, err := c.GetOrder(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != "filled" || order.FilledAvgPrice != 180.55 {
		t.Errorf("order = %+v, want filled at 180.55", order)
	}
	if order.FilledAt.IsZero() {
		t.Errorf("filled_at not parsed")
	}
}

func TestGetOrderPendingNullFields(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"abc-123","status":"new","filled_avg_price":null,"filled_at":null,"submitted_at":"2026-08-28T14:00:00Z"}`))
	}))

	order, err := c.GetOrder(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != "new" || order.FilledAvgPrice != 0 {
		t.Errorf("order = %+v, want pending with zero fill price", order)
	}
}

func TestErrorStatusIncludesBodyExcerpt(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"insufficient buying power"}`))
	}))

	_, err := c.GetAccount(context.Background())
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if got := err.Error(); !strings.Contains(got, "403") || !strings.Contains(got, "insufficient buying power") {
		t.Errorf("error = %q, want status and body excerpt", got)
	}
}

func TestAccountType(t *testing.T) {
	paper := NewClient(Config{BaseURL: "https://paper-api.alpaca.markets"})
	if got := paper.AccountType(); got != "Paper" {
		t.Errorf("AccountType = %q, want Paper", got)
	}
	live := NewClient(Config{BaseURL: "https://api.alpaca.markets"})
	if got := live.AccountType(); got != "Live" {
		t.Errorf("AccountType = %q, want Live", got)
	}
}
