// Package marketdata provides the read-only gateway to broker market data and
// account state. Every call is bounded by a per-call timeout and degrades to
// an absent value on provider failure; a failure in one call never invalidates
// values already obtained from the others in the same cycle.
package marketdata

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Gateway wraps the broker and the historical-close fallback behind bounded,
// failure-isolated reads. It holds no state of its own.
type Gateway struct {
	broker  domain.Broker
	closes  domain.CloseProvider
	timeout time.Duration
	logger  *slog.Logger
}

// NewGateway creates a Gateway. timeout bounds every individual provider
// call; zero falls back to 10 seconds.
func NewGateway(broker domain.Broker, closes domain.CloseProvider, timeout time.Duration, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		broker:  broker,
		closes:  closes,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "marketdata")),
	}
}

// IsOpen reports whether the market is currently open.
func (g *Gateway) IsOpen(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	clock, err := g.broker.GetClock(ctx)
	if err != nil {
		return false, err
	}
	return clock.IsOpen, nil
}

// MarketStatus returns "Open" or "Closed" for display. A clock failure
// degrades to "Closed".
func (g *Gateway) MarketStatus(ctx context.Context) string {
	open, err := g.IsOpen(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "market clock unavailable",
			slog.String("error", err.Error()),
		)
		return "Closed"
	}
	if open {
		return "Open"
	}
	return "Closed"
}

// GetQuote fetches the current price for symbol: the latest trade while the
// market is open, the most recent daily close otherwise. A live-quote failure
// while open also falls through to the closes. Closes come from the broker's
// daily bars first, then the chart provider. It returns domain.ErrUnavailable
// (wrapped) when no price can be obtained.
func (g *Gateway) GetQuote(ctx context.Context, symbol string, marketOpen bool) (domain.Quote, error) {
	if marketOpen {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		trade, err := g.broker.GetLatestTrade(callCtx, symbol)
		cancel()
		if err == nil {
			return domain.Quote{
				Symbol:    symbol,
				Price:     math.Round(trade.Price*100) / 100,
				Timestamp: trade.Timestamp,
				Source:    domain.QuoteSourceLive,
			}, nil
		}
		g.logger.WarnContext(ctx, "live quote failed, falling back to last close",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}

	if px, ok := g.recentBarClose(ctx, symbol); ok {
		return domain.Quote{
			Symbol:    symbol,
			Price:     px,
			Timestamp: time.Now().UTC(),
			Source:    domain.QuoteSourceClose,
		}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	px, err := g.closes.RecentClose(callCtx, symbol)
	if err != nil {
		g.logger.WarnContext(ctx, "recent close unavailable",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return domain.Quote{}, err
	}
	return domain.Quote{
		Symbol:    symbol,
		Price:     px,
		Timestamp: time.Now().UTC(),
		Source:    domain.QuoteSourceClose,
	}, nil
}

// recentBarClose asks the broker for the last few daily bars and returns the
// most recent positive close, rounded to cents. False means no usable bar,
// for any reason; the caller falls through to the chart provider.
func (g *Gateway) recentBarClose(ctx context.Context, symbol string) (float64, bool) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	bars, err := g.broker.GetBars(callCtx, symbol, "1Day", 5)
	if err != nil {
		g.logger.WarnContext(ctx, "broker bars unavailable",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close > 0 {
			return math.Round(bars[i].Close*100) / 100, true
		}
	}
	return 0, false
}

// Positions returns the current holdings as a symbol -> quantity map. A
// provider failure degrades to an empty map so callers can keep rendering the
// rest of the cycle.
func (g *Gateway) Positions(ctx context.Context) map[string]int64 {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	positions, err := g.broker.ListPositions(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "positions unavailable",
			slog.String("error", err.Error()),
		)
		return map[string]int64{}
	}

	held := make(map[string]int64, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p.Qty
	}
	return held
}

// Account returns the account equity and buying power.
func (g *Gateway) Account(ctx context.Context) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.broker.GetAccount(ctx)
}

// AccountType returns the broker's account label ("Paper" or "Live").
func (g *Gateway) AccountType() string {
	return g.broker.AccountType()
}
