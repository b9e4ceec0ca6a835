// Package app wires the tickerbot components together and supervises their
// lifecycle: the market-data gateway, the decision engine, the broadcast hub,
// the scheduler, and the HTTP/WebSocket server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nwestbury/tickerbot/internal/broadcast"
	"github.com/nwestbury/tickerbot/internal/config"
	"github.com/nwestbury/tickerbot/internal/engine"
	"github.com/nwestbury/tickerbot/internal/marketdata"
	"github.com/nwestbury/tickerbot/internal/scheduler"
	"github.com/nwestbury/tickerbot/internal/server"
	"github.com/nwestbury/tickerbot/internal/server/handler"
)

// App is the running application.
type App struct {
	cfg     *config.Config
	deps    *Dependencies
	cleanup func()
	logger  *slog.Logger
}

// New builds an App from configuration. Call Run to start it and Close to
// release resources after Run returns.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	deps, cleanup, err := Wire(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return &App{
		cfg:     cfg,
		deps:    deps,
		cleanup: cleanup,
		logger:  slog.Default().With(slog.String("component", "app")),
	}, nil
}

// Close releases the App's resources. Safe to call after Run returns.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// Run composes the components and blocks until the context is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	logger := slog.Default()
	cfg := a.cfg
	deps := a.deps

	gateway := marketdata.NewGateway(
		deps.Broker,
		deps.Closes,
		time.Duration(cfg.Alpaca.TimeoutSeconds)*time.Second,
		logger,
	)
	lastActions := engine.NewLastActions()

	snapshotter := engine.NewSnapshotter(gateway, deps.Settings, deps.Ledger, lastActions, logger)
	hub := broadcast.NewHub(snapshotter.Snapshot, logger)

	pub := broadcast.NewFanout(logger, hub, deps.Bridge)

	executor := engine.NewExecutor(
		deps.Broker,
		deps.Ledger,
		lastActions,
		pub,
		cfg.Trading.OrderPollAttempts,
		cfg.OrderPollDelay(),
		logger,
	)
	executor.SetAlerter(deps.Notifier)

	eng := engine.NewEngine(gateway, deps.Settings, executor, cfg.Trading.QtyPerOrder, logger)
	broadcaster := engine.NewBroadcaster(snapshotter, pub, logger)

	sched := scheduler.New(
		eng.RunCycle, cfg.DecisionInterval(),
		broadcaster.RunCycle, cfg.BroadcastInterval(),
		logger,
	)

	srv := server.New(
		server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			APIKey:      cfg.Server.APIKey,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(),
			State:    handler.NewStateHandler(snapshotter, deps.Ledger, logger),
			Settings: handler.NewSettingsHandler(deps.Settings, logger),
		},
		hub,
		logger,
	)

	a.logger.InfoContext(ctx, "starting",
		slog.Int("port", cfg.Server.Port),
		slog.Int("instruments", len(cfg.Trading.Instruments)),
		slog.String("broker", cfg.Trading.Broker),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("app: server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
