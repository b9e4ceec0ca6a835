package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBroker is an in-memory domain.Broker for tests. Order status polls are
// answered from orderStates in sequence; the last entry repeats.
type fakeBroker struct {
	mu sync.Mutex

	clock    domain.Clock
	clockErr error

	account    domain.Account
	accountErr error

	positions    []domain.BrokerPosition
	positionsErr error

	latestTrades map[string]domain.LatestTrade
	tradeErr     error
	tradeCalls   int

	submitErr   error
	submitCalls int
	lastRequest domain.OrderRequest

	orderStates   []domain.BrokerOrder
	orderErr      error
	getOrderCalls int
	orderGate     chan struct{} // when non-nil, GetOrder blocks until closed
	polling       chan struct{} // when non-nil, closed on the first GetOrder
}

func (b *fakeBroker) GetClock(ctx context.Context) (domain.Clock, error) {
	return b.clock, b.clockErr
}

func (b *fakeBroker) GetAccount(ctx context.Context) (domain.Account, error) {
	return b.account, b.accountErr
}

func (b *fakeBroker) ListPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	return b.positions, b.positionsErr
}

func (b *fakeBroker) GetLatestTrade(ctx context.Context, symbol string) (domain.LatestTrade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tradeCalls++
	if b.tradeErr != nil {
		return domain.LatestTrade{}, b.tradeErr
	}
	lt, ok := b.latestTrades[symbol]
	if !ok {
		return domain.LatestTrade{}, domain.ErrUnavailable
	}
	return lt, nil
}

func (b *fakeBroker) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	return nil, nil
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitCalls++
	b.lastRequest = req
	if b.submitErr != nil {
		return "", b.submitErr
	}
	return "order-1", nil
}

func (b *fakeBroker) GetOrder(ctx context.Context, id string) (domain.BrokerOrder, error) {
	b.mu.Lock()
	b.getOrderCalls++
	first := b.getOrderCalls == 1
	idx := b.getOrderCalls - 1
	if idx >= len(b.orderStates) {
		idx = len(b.orderStates) - 1
	}
	gate := b.orderGate
	b.mu.Unlock()

	if first && b.polling != nil {
		close(b.polling)
	}
	if gate != nil {
		<-gate
	}
	if b.orderErr != nil {
		return domain.BrokerOrder{}, b.orderErr
	}
	if idx < 0 {
		return domain.BrokerOrder{ID: id, Status: "new"}, nil
	}
	return b.orderStates[idx], nil
}

func (b *fakeBroker) AccountType() string { return "Paper" }

func (b *fakeBroker) orderPolls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getOrderCalls
}

type fakeRecorder struct {
	mu     sync.Mutex
	trades []domain.Trade
	err    error
}

func (r *fakeRecorder) Record(t domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.trades = append(r.trades, t)
	return nil
}

func (r *fakeRecorder) AllTrades() []domain.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Trade, len(r.trades))
	copy(out, r.trades)
	return out
}

type publishedEvent struct {
	event   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{event: event, payload: payload})
	return nil
}

func (p *fakePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func newTestExecutor(broker *fakeBroker, rec *fakeRecorder, pub *fakePublisher) (*Executor, *LastActions) {
	la := NewLastActions()
	ex := NewExecutor(broker, rec, la, pub, 3, time.Millisecond, testLogger())
	return ex, la
}

func buyDecision(symbol string, price float64) domain.Decision {
	return domain.Decision{
		Symbol: symbol,
		Action: domain.ActionBuy,
		Price:  price,
		At:     time.Now().UTC(),
	}
}

func TestPlaceFillsAfterRetry(t *testing.T) {
	broker := &fakeBroker{
		account: domain.Account{Equity: 25000},
		orderStates: []domain.BrokerOrder{
			{ID: "order-1", Status: "new"},
			{ID: "order-1", Status: "filled", FilledAvgPrice: 0.561234},
		},
	}
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	ex, la := newTestExecutor(broker, rec, pub)

	order, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Fatalf("status = %s, want %s", order.Status, domain.OrderStatusFilled)
	}
	if order.FilledAvgPrice != 0.56 {
		t.Errorf("fill price = %v, want 0.56 (rounded to cents)", order.FilledAvgPrice)
	}
	if got := broker.orderPolls(); got != 2 {
		t.Errorf("GetOrder calls = %d, want 2", got)
	}

	trades := rec.AllTrades()
	if len(trades) != 1 {
		t.Fatalf("recorded trades = %d, want 1", len(trades))
	}
	if trades[0].PortfolioBalance != 25000 {
		t.Errorf("portfolio balance = %v, want 25000", trades[0].PortfolioBalance)
	}
	if trades[0].Side != domain.OrderSideBuy {
		t.Errorf("side = %s, want buy", trades[0].Side)
	}

	events := pub.published()
	if len(events) != 1 || events[0].event != domain.EventTradeUpdate {
		t.Fatalf("published = %+v, want one trade_update", events)
	}
	update, ok := events[0].payload.(domain.TradeUpdate)
	if !ok {
		t.Fatalf("payload type = %T, want domain.TradeUpdate", events[0].payload)
	}
	if update.LastAction.Action != "Buy" || update.LastAction.Price != 0.56 {
		t.Errorf("last action = %+v, want {Buy 0.56}", update.LastAction)
	}
	if len(update.TradeRecords) != 1 {
		t.Errorf("trade records in update = %d, want 1", len(update.TradeRecords))
	}

	if got, ok := la.Get("AAPL"); !ok || got.Action != "Buy" {
		t.Errorf("last action cache = %+v ok=%v, want Buy", got, ok)
	}
}

func TestPlaceRejectedRecordsNothing(t *testing.T) {
	broker := &fakeBroker{
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "rejected"}},
	}
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	ex, la := newTestExecutor(broker, rec, pub)

	order, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if order.Status != domain.OrderStatusRejected {
		t.Fatalf("status = %s, want %s", order.Status, domain.OrderStatusRejected)
	}
	if len(rec.AllTrades()) != 0 {
		t.Errorf("rejected order must not be recorded")
	}
	if len(pub.published()) != 0 {
		t.Errorf("rejected order must not be broadcast")
	}
	if _, ok := la.Get("AAPL"); ok {
		t.Errorf("rejected order must not update last action")
	}

	// The instrument is eligible again once the failed order resolved.
	broker.orderStates = []domain.BrokerOrder{{ID: "order-1", Status: "filled", FilledAvgPrice: 0.5}}
	if _, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1); err != nil {
		t.Fatalf("second Place after rejection: %v", err)
	}
	if broker.submitCalls != 2 {
		t.Errorf("submit calls = %d, want 2", broker.submitCalls)
	}
}

func TestPlaceTimesOutAfterBudget(t *testing.T) {
	broker := &fakeBroker{
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "new"}},
	}
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	ex, _ := newTestExecutor(broker, rec, pub)

	order, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if order.Status != domain.OrderStatusTimedOut {
		t.Fatalf("status = %s, want %s", order.Status, domain.OrderStatusTimedOut)
	}
	if got := broker.orderPolls(); got != 3 {
		t.Errorf("GetOrder calls = %d, want exactly the 3-attempt budget", got)
	}
	if len(rec.AllTrades()) != 0 {
		t.Errorf("timed out order must not be recorded")
	}

	// Waiting longer must not produce more polls; the order is abandoned.
	time.Sleep(10 * time.Millisecond)
	if got := broker.orderPolls(); got != 3 {
		t.Errorf("GetOrder calls after abandon = %d, want 3", got)
	}
}

func TestPlaceCancelledVariantSpelling(t *testing.T) {
	broker := &fakeBroker{
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "cancelled"}},
	}
	ex, _ := newTestExecutor(broker, &fakeRecorder{}, &fakePublisher{})

	order, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if order.Status != domain.OrderStatusCanceled {
		t.Fatalf("status = %s, want %s", order.Status, domain.OrderStatusCanceled)
	}
}

func TestPlaceSubmitFailure(t *testing.T) {
	broker := &fakeBroker{submitErr: errors.New("insufficient buying power")}
	ex, _ := newTestExecutor(broker, &fakeRecorder{}, &fakePublisher{})

	_, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if err == nil {
		t.Fatal("expected error when submission fails")
	}
	if got := broker.orderPolls(); got != 0 {
		t.Errorf("GetOrder calls = %d, want 0 when submit failed", got)
	}

	// Guard must be released so the next cycle can retry the decision.
	broker.submitErr = nil
	broker.orderStates = []domain.BrokerOrder{{ID: "order-1", Status: "filled", FilledAvgPrice: 0.5}}
	if _, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1); err != nil {
		t.Fatalf("Place after submit failure: %v", err)
	}
}

func TestPlaceSuppressesConcurrentOrderPerInstrument(t *testing.T) {
	gate := make(chan struct{})
	polling := make(chan struct{})
	broker := &fakeBroker{
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "filled", FilledAvgPrice: 0.5}},
		orderGate:   gate,
		polling:     polling,
	}
	ex, _ := newTestExecutor(broker, &fakeRecorder{}, &fakePublisher{})

	done := make(chan error, 1)
	go func() {
		_, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
		done <- err
	}()

	<-polling // first order is now in flight, blocked on its status poll

	_, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if !errors.Is(err, domain.ErrOrderInFlight) {
		t.Fatalf("concurrent Place error = %v, want ErrOrderInFlight", err)
	}
	if broker.submitCalls != 1 {
		t.Errorf("submit calls = %d, want 1 (second decision suppressed)", broker.submitCalls)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Place returned error: %v", err)
	}

	// A different instrument is never blocked by AAPL's guard.
	if _, err := ex.Place(context.Background(), buyDecision("MSFT", 0.55), 1); err != nil {
		t.Fatalf("Place for other symbol: %v", err)
	}
}

func TestPlaceLedgerFailureSkipsBroadcast(t *testing.T) {
	broker := &fakeBroker{
		account:     domain.Account{Equity: 1000},
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "filled", FilledAvgPrice: 0.5}},
	}
	rec := &fakeRecorder{err: errors.New("disk full")}
	pub := &fakePublisher{}
	ex, la := newTestExecutor(broker, rec, pub)

	order, err := ex.Place(context.Background(), buyDecision("AAPL", 0.55), 1)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Fatalf("status = %s, want filled (the fill happened at the broker)", order.Status)
	}
	if len(pub.published()) != 0 {
		t.Errorf("unpersisted fill must not be broadcast")
	}
	if _, ok := la.Get("AAPL"); ok {
		t.Errorf("unpersisted fill must not update last action")
	}
}

func TestPlaceEquityUnavailableAtFill(t *testing.T) {
	broker := &fakeBroker{
		accountErr:  errors.New("account endpoint down"),
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "filled", FilledAvgPrice: 2.5}},
	}
	rec := &fakeRecorder{}
	ex, _ := newTestExecutor(broker, rec, &fakePublisher{})

	order, err := ex.Place(context.Background(), buyDecision("AAPL", 2.4), 1)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Fatalf("status = %s, want filled", order.Status)
	}
	trades := rec.AllTrades()
	if len(trades) != 1 {
		t.Fatalf("recorded trades = %d, want 1 (equity failure must not drop the trade)", len(trades))
	}
	if trades[0].PortfolioBalance != 0 {
		t.Errorf("portfolio balance = %v, want 0 when equity unavailable", trades[0].PortfolioBalance)
	}
}

func TestPlaceSellSide(t *testing.T) {
	broker := &fakeBroker{
		orderStates: []domain.BrokerOrder{{ID: "order-1", Status: "filled", FilledAvgPrice: 10}},
	}
	rec := &fakeRecorder{}
	ex, la := newTestExecutor(broker, rec, &fakePublisher{})

	dec := domain.Decision{Symbol: "AAPL", Action: domain.ActionSell, Price: 10.5, At: time.Now().UTC()}
	if _, err := ex.Place(context.Background(), dec, 2); err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if broker.lastRequest.Side != domain.OrderSideSell {
		t.Errorf("submitted side = %s, want sell", broker.lastRequest.Side)
	}
	if broker.lastRequest.Qty != 2 {
		t.Errorf("submitted qty = %d, want 2", broker.lastRequest.Qty)
	}
	if broker.lastRequest.Type != "market" || broker.lastRequest.TimeInForce != "gtc" {
		t.Errorf("order request = %+v, want market/gtc", broker.lastRequest)
	}
	if got, _ := la.Get("AAPL"); got.Action != "Sell" {
		t.Errorf("last action = %+v, want Sell", got)
	}
}
