package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nwestbury/tickerbot/internal/config"
	"github.com/nwestbury/tickerbot/internal/domain"
	"github.com/nwestbury/tickerbot/internal/marketdata"
	"github.com/nwestbury/tickerbot/internal/metrics"
)

// Engine runs one trading-decision cycle: check the market clock, evaluate
// each selected instrument against its thresholds in configured order, and
// hand any buy/sell decision to the executor. Runtime settings are snapshotted
// once at cycle start, so a configuration change mid-cycle only affects the
// next cycle.
type Engine struct {
	gateway  *marketdata.Gateway
	settings *config.Settings
	executor *Executor
	qty      int64
	logger   *slog.Logger
}

// NewEngine creates a decision-cycle engine. qty is the fixed per-order size.
func NewEngine(
	gateway *marketdata.Gateway,
	settings *config.Settings,
	executor *Executor,
	qty int64,
	logger *slog.Logger,
) *Engine {
	if qty <= 0 {
		qty = 1
	}
	return &Engine{
		gateway:  gateway,
		settings: settings,
		executor: executor,
		qty:      qty,
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// RunCycle executes one decision cycle. Every failure is scoped to a single
// instrument or the whole cycle and is logged, never returned as fatal; the
// error return exists only for context cancellation.
func (e *Engine) RunCycle(ctx context.Context) error {
	metrics.DecisionCycles.Inc()

	open, err := e.gateway.IsOpen(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "market clock unavailable, skipping decision cycle",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !open {
		e.logger.InfoContext(ctx, "market is closed, no trading this cycle")
		return nil
	}

	snap := e.settings.Snapshot()
	for _, inst := range snap.Instruments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.evaluateInstrument(ctx, inst)
	}
	return nil
}

// evaluateInstrument evaluates one instrument and executes the resulting
// decision, if any.
func (e *Engine) evaluateInstrument(ctx context.Context, inst domain.Instrument) {
	log := e.logger.With(slog.String("symbol", inst.Symbol))

	quote, err := e.gateway.GetQuote(ctx, inst.Symbol, true)
	var qp *domain.Quote
	if err == nil {
		qp = &quote
	}

	dec := Evaluate(inst, qp)
	metrics.Decisions.WithLabelValues(string(dec.Action)).Inc()

	if qp == nil {
		log.WarnContext(ctx, "no current price available, skipping evaluation")
		return
	}
	log.DebugContext(ctx, "checked trading conditions",
		slog.Float64("price", quote.Price),
		slog.Float64("buy_threshold", inst.BuyThreshold),
		slog.Float64("sell_threshold", inst.SellThreshold),
		slog.String("decision", string(dec.Action)),
	)
	if dec.Action == domain.ActionNone {
		return
	}

	log.InfoContext(ctx, "threshold crossed, placing order",
		slog.String("action", string(dec.Action)),
		slog.Float64("price", dec.Price),
	)

	order, err := e.executor.Place(ctx, dec, e.qty)
	switch {
	case errors.Is(err, domain.ErrOrderInFlight):
		// Already logged and counted by the executor; the instrument
		// stays eligible once the prior order resolves.
	case err != nil:
		log.ErrorContext(ctx, "order placement failed",
			slog.String("error", err.Error()),
		)
	case order.Status != domain.OrderStatusFilled:
		log.WarnContext(ctx, "order did not fill",
			slog.String("status", string(order.Status)),
		)
	}
}
