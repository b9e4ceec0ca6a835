package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TICKERBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TICKERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Alpaca ──
	setStr(&cfg.Alpaca.APIKey, "TICKERBOT_ALPACA_API_KEY")
	setStr(&cfg.Alpaca.APIKey, "APCA_API_KEY_ID") // compatibility alias
	setStr(&cfg.Alpaca.APISecret, "TICKERBOT_ALPACA_API_SECRET")
	setStr(&cfg.Alpaca.APISecret, "APCA_API_SECRET_KEY") // compatibility alias
	setStr(&cfg.Alpaca.BaseURL, "TICKERBOT_ALPACA_BASE_URL")
	setStr(&cfg.Alpaca.BaseURL, "APCA_API_BASE_URL") // compatibility alias
	setStr(&cfg.Alpaca.DataURL, "TICKERBOT_ALPACA_DATA_URL")
	setInt(&cfg.Alpaca.TimeoutSeconds, "TICKERBOT_ALPACA_TIMEOUT_SECONDS")

	// ── Fallback quotes ──
	setStr(&cfg.Fallback.BaseURL, "TICKERBOT_FALLBACK_BASE_URL")
	setInt(&cfg.Fallback.RangeDays, "TICKERBOT_FALLBACK_RANGE_DAYS")
	setInt(&cfg.Fallback.TimeoutSeconds, "TICKERBOT_FALLBACK_TIMEOUT_SECONDS")

	// ── Trading ──
	setInt64(&cfg.Trading.QtyPerOrder, "TICKERBOT_TRADING_QTY_PER_ORDER")
	setInt(&cfg.Trading.DecisionIntervalSeconds, "TICKERBOT_TRADING_DECISION_INTERVAL_SECONDS")
	setInt(&cfg.Trading.BroadcastIntervalSeconds, "TICKERBOT_TRADING_BROADCAST_INTERVAL_SECONDS")
	setInt(&cfg.Trading.OrderPollAttempts, "TICKERBOT_TRADING_ORDER_POLL_ATTEMPTS")
	setInt(&cfg.Trading.OrderPollDelaySeconds, "TICKERBOT_TRADING_ORDER_POLL_DELAY_SECONDS")
	setStr(&cfg.Trading.Strategy, "TICKERBOT_TRADING_STRATEGY")
	setStr(&cfg.Trading.Broker, "TICKERBOT_TRADING_BROKER")

	// ── Ledger ──
	setStr(&cfg.Ledger.Path, "TICKERBOT_LEDGER_PATH")

	// ── Server ──
	setInt(&cfg.Server.Port, "TICKERBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TICKERBOT_SERVER_API_KEY")
	if v := os.Getenv("TICKERBOT_SERVER_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TICKERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TICKERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TICKERBOT_REDIS_DB")
	setStr(&cfg.Redis.ChannelPrefix, "TICKERBOT_REDIS_CHANNEL_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TICKERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TICKERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TICKERBOT_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TICKERBOT_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
