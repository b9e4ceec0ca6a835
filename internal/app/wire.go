package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redisbridge "github.com/nwestbury/tickerbot/internal/cache/redis"
	"github.com/nwestbury/tickerbot/internal/config"
	"github.com/nwestbury/tickerbot/internal/domain"
	"github.com/nwestbury/tickerbot/internal/ledger"
	"github.com/nwestbury/tickerbot/internal/notify"
	"github.com/nwestbury/tickerbot/internal/platform/alpaca"
	"github.com/nwestbury/tickerbot/internal/platform/yahooq"
)

// Dependencies bundles the infrastructure the application needs: the broker
// client, the historical-close fallback, the trade ledger, the runtime
// settings, the optional Redis event bridge, and the notifier. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Broker   domain.Broker
	Closes   domain.CloseProvider
	Ledger   *ledger.Ledger
	Settings *config.Settings
	Bridge   domain.Publisher // nil when Redis is not configured
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependencies from the configuration and returns
// them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Settings: config.NewSettings(cfg.Trading),
	}

	// --- Broker + historical fallback ---
	deps.Broker = alpaca.NewClient(alpaca.Config{
		BaseURL:   cfg.Alpaca.BaseURL,
		DataURL:   cfg.Alpaca.DataURL,
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
		Timeout:   time.Duration(cfg.Alpaca.TimeoutSeconds) * time.Second,
	})
	deps.Closes = yahooq.NewClient(
		cfg.Fallback.BaseURL,
		cfg.Fallback.RangeDays,
		time.Duration(cfg.Fallback.TimeoutSeconds)*time.Second,
	)

	// --- Trade ledger ---
	led, err := ledger.New(cfg.Ledger.Path, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	deps.Ledger = led

	// --- Optional Redis event bridge ---
	if cfg.Redis.Addr != "" {
		client, err := redisbridge.New(ctx, redisbridge.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Bridge = redisbridge.NewBridge(client, cfg.Redis.ChannelPrefix)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
