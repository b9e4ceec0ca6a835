package engine

import (
	"context"
	"log/slog"
	"math"

	"github.com/nwestbury/tickerbot/internal/config"
	"github.com/nwestbury/tickerbot/internal/domain"
	"github.com/nwestbury/tickerbot/internal/marketdata"
	"github.com/nwestbury/tickerbot/internal/metrics"
)

// Snapshotter assembles the full current-state view pushed to dashboard
// subscribers: per-instrument quote/threshold/position, market status, account
// figures, last actions, and the complete trade history. Each provider failure
// degrades only its own slice of the snapshot.
type Snapshotter struct {
	gateway     *marketdata.Gateway
	settings    *config.Settings
	history     TradeRecorder
	lastActions *LastActions
	logger      *slog.Logger
}

// NewSnapshotter creates a Snapshotter over the gateway, runtime settings,
// trade history, and last-action cache.
func NewSnapshotter(
	gateway *marketdata.Gateway,
	settings *config.Settings,
	history TradeRecorder,
	lastActions *LastActions,
	logger *slog.Logger,
) *Snapshotter {
	return &Snapshotter{
		gateway:     gateway,
		settings:    settings,
		history:     history,
		lastActions: lastActions,
		logger:      logger.With(slog.String("component", "snapshot")),
	}
}

// Snapshot builds the current aggregate state. It never fails: unavailable
// values appear as zero/absent fields so subscribers keep receiving the
// last-known shape of the world.
func (s *Snapshotter) Snapshot(ctx context.Context) domain.StateSnapshot {
	cfg := s.settings.Snapshot()
	status := s.gateway.MarketStatus(ctx)
	open := status == "Open"
	positions := s.gateway.Positions(ctx)

	var equity, buyingPower float64
	if acct, err := s.gateway.Account(ctx); err != nil {
		s.logger.WarnContext(ctx, "account snapshot unavailable",
			slog.String("error", err.Error()),
		)
	} else {
		equity = acct.Equity
		buyingPower = acct.BuyingPower
		metrics.Equity.Set(equity)
		metrics.BuyingPower.Set(buyingPower)
	}

	symbols := make([]string, 0, len(cfg.Instruments))
	views := make([]domain.InstrumentView, 0, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		symbols = append(symbols, inst.Symbol)
		views = append(views, s.instrumentView(ctx, inst, open, positions[inst.Symbol]))
	}

	return domain.StateSnapshot{
		DataList:         views,
		MarketStatus:     status,
		PortfolioBalance: equity,
		BuyingPower:      buyingPower,
		AccountType:      s.gateway.AccountType(),
		LastActions:      s.lastActions.View(symbols),
		TradeRecords:     s.history.AllTrades(),
	}
}

// instrumentView renders one instrument row. A quote failure leaves the price
// absent but still reports thresholds and holdings.
func (s *Snapshotter) instrumentView(ctx context.Context, inst domain.Instrument, open bool, held int64) domain.InstrumentView {
	view := domain.InstrumentView{
		Symbol:        inst.Symbol,
		BuyThreshold:  inst.BuyThreshold,
		SellThreshold: inst.SellThreshold,
		Exchange:      inst.Exchange,
		SharesOwned:   held,
	}

	quote, err := s.gateway.GetQuote(ctx, inst.Symbol, open)
	if err != nil {
		return view
	}

	price := quote.Price
	view.CurrentPrice = &price
	ts := quote.Timestamp.UnixMilli()
	view.LastCloseTime = &ts
	view.ValueInDollars = math.Round(price*float64(held)*100) / 100
	return view
}

// Broadcaster runs one broadcast cycle: build a snapshot and publish it as a
// data_update event, independent of whether any trade occurred.
type Broadcaster struct {
	snapshotter *Snapshotter
	pub         domain.Publisher
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcast-cycle runner.
func NewBroadcaster(snapshotter *Snapshotter, pub domain.Publisher, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		snapshotter: snapshotter,
		pub:         pub,
		logger:      logger.With(slog.String("component", "broadcaster")),
	}
}

// RunCycle publishes the current full state to all subscribers.
func (b *Broadcaster) RunCycle(ctx context.Context) error {
	snap := b.snapshotter.Snapshot(ctx)
	if err := b.pub.Publish(ctx, domain.EventDataUpdate, snap); err != nil {
		b.logger.WarnContext(ctx, "data_update publish failed",
			slog.String("error", err.Error()),
		)
	}
	return nil
}
