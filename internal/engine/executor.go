package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
	"github.com/nwestbury/tickerbot/internal/metrics"
)

// TradeRecorder is the slice of the ledger the executor needs: the durable
// append plus the full history included in trade_update payloads.
type TradeRecorder interface {
	Record(trade domain.Trade) error
	AllTrades() []domain.Trade
}

// Alerter receives operator notifications for fills and failed orders. It is
// optional; a nil Alerter disables notifications.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Executor is the order execution state machine. It submits an order for a
// decision and drives it to exactly one terminal status by polling the broker
// with a bounded retry budget. At most one order per instrument may be in
// flight at a time; a decision arriving while a prior order for the same
// instrument is unresolved is suppressed with domain.ErrOrderInFlight.
type Executor struct {
	broker      domain.Broker
	recorder    TradeRecorder
	lastActions *LastActions
	pub         domain.Publisher
	alerter     Alerter
	attempts    int
	delay       time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool

	// fillMu serializes the append-then-broadcast sequence so a trade is
	// never broadcast before it is durably appended and never appended
	// twice for one fill.
	fillMu sync.Mutex
}

// NewExecutor creates an order executor. attempts is the fill-confirmation
// retry budget per order; delay is the fixed wait between poll attempts.
func NewExecutor(
	broker domain.Broker,
	recorder TradeRecorder,
	lastActions *LastActions,
	pub domain.Publisher,
	attempts int,
	delay time.Duration,
	logger *slog.Logger,
) *Executor {
	if attempts <= 0 {
		attempts = 3
	}
	return &Executor{
		broker:      broker,
		recorder:    recorder,
		lastActions: lastActions,
		pub:         pub,
		attempts:    attempts,
		delay:       delay,
		logger:      logger.With(slog.String("component", "executor")),
		inflight:    make(map[string]bool),
	}
}

// SetAlerter attaches an optional operator notifier.
func (e *Executor) SetAlerter(a Alerter) {
	e.alerter = a
}

// Place submits an order for the decision and drives it to a terminal status.
// It returns the terminal order; err is non-nil only when no order was created
// (in-flight guard or submit failure). Callers inspect order.Status to
// distinguish filled from canceled/rejected/timed_out.
func (e *Executor) Place(ctx context.Context, dec domain.Decision, qty int64) (domain.Order, error) {
	log := e.logger.With(
		slog.String("symbol", dec.Symbol),
		slog.String("action", string(dec.Action)),
	)

	if !e.acquire(dec.Symbol) {
		log.Warn("decision skipped: prior order still in flight")
		metrics.OrdersSuppressed.Inc()
		return domain.Order{}, fmt.Errorf("executor: %s: %w", dec.Symbol, domain.ErrOrderInFlight)
	}
	defer e.release(dec.Symbol)

	side := domain.OrderSideBuy
	if dec.Action == domain.ActionSell {
		side = domain.OrderSideSell
	}

	id, err := e.broker.SubmitOrder(ctx, domain.OrderRequest{
		Symbol:      dec.Symbol,
		Qty:         qty,
		Side:        side,
		Type:        "market",
		TimeInForce: "gtc",
	})
	if err != nil {
		// No order object exists; the next decision cycle re-evaluates
		// the same thresholds, which is the only cross-cycle retry.
		log.Error("order submission failed", slog.String("error", err.Error()))
		return domain.Order{}, fmt.Errorf("executor: submit %s: %w", dec.Symbol, err)
	}

	order := domain.Order{
		ID:          id,
		Symbol:      dec.Symbol,
		Side:        side,
		Qty:         qty,
		Status:      domain.OrderStatusSubmitted,
		SubmittedAt: time.Now().UTC(),
	}
	log = log.With(slog.String("order_id", id))
	log.Info("order submitted", slog.Float64("trigger_price", dec.Price))

	return e.confirm(ctx, log, order)
}

// confirm polls the broker until the order reaches a terminal state or the
// retry budget is exhausted.
func (e *Executor) confirm(ctx context.Context, log *slog.Logger, order domain.Order) (domain.Order, error) {
	for attempt := 1; attempt <= e.attempts; attempt++ {
		bo, err := e.broker.GetOrder(ctx, order.ID)
		if err != nil {
			log.Warn("order status poll failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		} else {
			switch classify(bo.Status) {
			case domain.OrderStatusFilled:
				return e.finalizeFill(ctx, log, order, bo), nil

			case domain.OrderStatusCanceled, domain.OrderStatusRejected:
				order.Status = classify(bo.Status)
				order.ResolvedAt = time.Now().UTC()
				log.Error("order failed at broker",
					slog.String("status", string(order.Status)),
				)
				metrics.Orders.WithLabelValues(string(order.Status)).Inc()
				e.alert(ctx, "order_failed", "Order failed",
					fmt.Sprintf("%s %s x%d was %s by the broker (order %s)",
						order.Side, order.Symbol, order.Qty, order.Status, order.ID))
				return order, nil
			}
		}

		if attempt == e.attempts {
			break
		}
		log.Warn("order not filled yet, retrying",
			slog.Int("attempts_left", e.attempts-attempt),
		)
		select {
		case <-ctx.Done():
			order.Status = domain.OrderStatusTimedOut
			order.ResolvedAt = time.Now().UTC()
			metrics.Orders.WithLabelValues(string(order.Status)).Inc()
			return order, nil
		case <-time.After(e.delay):
		}
	}

	// Budget exhausted while still pending. The order may still fill later
	// at the broker; it is abandoned here and never polled again.
	order.Status = domain.OrderStatusTimedOut
	order.ResolvedAt = time.Now().UTC()
	log.Error("order not filled after retries, abandoning",
		slog.Int("attempts", e.attempts),
	)
	metrics.Orders.WithLabelValues(string(order.Status)).Inc()
	e.alert(ctx, "order_failed", "Order timed out",
		fmt.Sprintf("%s %s x%d unresolved after %d polls; broker order %s abandoned",
			order.Side, order.Symbol, order.Qty, e.attempts, order.ID))
	return order, nil
}

// finalizeFill records the trade, updates the last-action cache, and publishes
// the trade_update event, in that order and under fillMu.
func (e *Executor) finalizeFill(ctx context.Context, log *slog.Logger, order domain.Order, bo domain.BrokerOrder) domain.Order {
	order.Status = domain.OrderStatusFilled
	order.FilledAvgPrice = math.Round(bo.FilledAvgPrice*100) / 100
	if !bo.FilledAt.IsZero() {
		order.ResolvedAt = bo.FilledAt
	} else {
		order.ResolvedAt = time.Now().UTC()
	}

	equity := 0.0
	if acct, err := e.broker.GetAccount(ctx); err != nil {
		log.Warn("equity unavailable at fill time", slog.String("error", err.Error()))
	} else {
		equity = acct.Equity
	}

	trade := domain.Trade{
		Symbol:           order.Symbol,
		Qty:              order.Qty,
		Side:             order.Side,
		Price:            order.FilledAvgPrice,
		Time:             order.ResolvedAt,
		PortfolioBalance: equity,
	}
	lastAction := domain.LastAction{
		Action: titleSide(order.Side),
		Price:  order.FilledAvgPrice,
	}

	e.fillMu.Lock()
	if err := e.recorder.Record(trade); err != nil {
		// The fill happened at the broker but could not be persisted;
		// do not broadcast what was not appended.
		e.fillMu.Unlock()
		log.Error("trade ledger append failed, fill not broadcast",
			slog.String("error", err.Error()),
		)
		metrics.Orders.WithLabelValues(string(order.Status)).Inc()
		return order
	}
	e.lastActions.Set(order.Symbol, lastAction)
	update := domain.TradeUpdate{
		Symbol:       order.Symbol,
		LastAction:   lastAction,
		TradeRecords: e.recorder.AllTrades(),
	}
	if err := e.pub.Publish(ctx, domain.EventTradeUpdate, update); err != nil {
		log.Warn("trade_update publish failed", slog.String("error", err.Error()))
	}
	e.fillMu.Unlock()

	log.Info("order filled",
		slog.Float64("fill_price", order.FilledAvgPrice),
		slog.Float64("equity", equity),
	)
	metrics.Orders.WithLabelValues(string(order.Status)).Inc()
	metrics.Trades.Inc()
	e.alert(ctx, "trade_filled", "Trade filled",
		fmt.Sprintf("%s %s x%d filled at %.2f (equity %.2f)",
			lastAction.Action, order.Symbol, order.Qty, order.FilledAvgPrice, equity))
	return order
}

// InFlight reports whether an order for symbol is currently unresolved.
func (e *Executor) InFlight(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight[symbol]
}

func (e *Executor) acquire(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[symbol] {
		return false
	}
	e.inflight[symbol] = true
	return true
}

func (e *Executor) release(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, symbol)
}

func (e *Executor) alert(ctx context.Context, event, title, message string) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

// classify maps a broker status string onto the engine's order states.
// Anything that is not terminal counts as still pending.
func classify(brokerStatus string) domain.OrderStatus {
	switch strings.ToLower(brokerStatus) {
	case "filled":
		return domain.OrderStatusFilled
	case "canceled", "cancelled":
		return domain.OrderStatusCanceled
	case "rejected":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusSubmitted
	}
}

func titleSide(side domain.OrderSide) string {
	switch side {
	case domain.OrderSideBuy:
		return "Buy"
	case domain.OrderSideSell:
		return "Sell"
	default:
		return string(side)
	}
}
