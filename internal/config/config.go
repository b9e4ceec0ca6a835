// Package config defines the tickerbot configuration and validation helpers,
// plus the runtime-mutable trading settings that the dashboard can change
// between cycles.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TICKERBOT_* environment variables.
type Config struct {
	Alpaca   AlpacaConfig   `toml:"alpaca"`
	Fallback FallbackConfig `toml:"fallback"`
	Trading  TradingConfig  `toml:"trading"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// AlpacaConfig holds brokerage API endpoints and credentials.
type AlpacaConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	BaseURL   string `toml:"base_url"` // trading API root
	DataURL   string `toml:"data_url"` // market data API root
	// TimeoutSeconds bounds every single API call.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// FallbackConfig holds the historical-close provider used when the market is
// closed or a live quote fails.
type FallbackConfig struct {
	BaseURL        string `toml:"base_url"`
	RangeDays      int    `toml:"range_days"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// InstrumentConfig is one tracked symbol with its thresholds.
type InstrumentConfig struct {
	Symbol        string  `toml:"symbol"`
	BuyThreshold  float64 `toml:"buy_threshold"`
	SellThreshold float64 `toml:"sell_threshold"`
	Exchange      string  `toml:"exchange"`
}

// TradingConfig holds the decision-cycle parameters.
type TradingConfig struct {
	Instruments []InstrumentConfig `toml:"instruments"`
	// QtyPerOrder is the fixed order size for every buy/sell decision.
	QtyPerOrder int64 `toml:"qty_per_order"`
	// DecisionIntervalSeconds is the cadence of the trading-decision cycle.
	DecisionIntervalSeconds int `toml:"decision_interval_seconds"`
	// BroadcastIntervalSeconds is the cadence of the state-broadcast cycle.
	BroadcastIntervalSeconds int `toml:"broadcast_interval_seconds"`
	// OrderPollAttempts is the fill-confirmation retry budget per order.
	OrderPollAttempts int `toml:"order_poll_attempts"`
	// OrderPollDelaySeconds is the fixed delay between poll attempts.
	OrderPollDelaySeconds int    `toml:"order_poll_delay_seconds"`
	Strategy              string `toml:"strategy"`
	Broker                string `toml:"broker"`
}

// LedgerConfig holds trade-log parameters.
type LedgerConfig struct {
	// Path is the append-only trade log file.
	Path string `toml:"path"`
}

// ServerConfig holds the HTTP/WebSocket server configuration.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects mutating endpoints; empty disables authentication.
	APIKey string `toml:"api_key"`
}

// RedisConfig holds the optional event-bus bridge. When Addr is empty the
// bridge is disabled and events stay in-process.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	// ChannelPrefix namespaces published pub/sub channels.
	ChannelPrefix string `toml:"channel_prefix"`
}

// NotifyConfig holds operator notification channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	// Events filters which event types are forwarded; empty allows all.
	Events []string `toml:"events"`
}

// Defaults returns a Config pre-populated with working defaults matching the
// paper-trading setup. Load merges the TOML file on top of these.
func Defaults() Config {
	return Config{
		Alpaca: AlpacaConfig{
			BaseURL:        "https://paper-api.alpaca.markets",
			DataURL:        "https://data.alpaca.markets",
			TimeoutSeconds: 10,
		},
		Fallback: FallbackConfig{
			BaseURL:        "https://query1.finance.yahoo.com",
			RangeDays:      5,
			TimeoutSeconds: 10,
		},
		Trading: TradingConfig{
			QtyPerOrder:              1,
			DecisionIntervalSeconds:  60,
			BroadcastIntervalSeconds: 30,
			OrderPollAttempts:        3,
			OrderPollDelaySeconds:    3,
			Strategy:                 "Scalping",
			Broker:                   "Alpaca",
		},
		Ledger: LedgerConfig{
			Path: "trades.csv",
		},
		Server: ServerConfig{
			Port: 5000,
		},
		Redis: RedisConfig{
			ChannelPrefix: "tickerbot",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for hard errors. Threshold
// misconfigurations (buy >= sell) are deliberately not errors; see Warnings.
func (c *Config) Validate() error {
	if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
		return fmt.Errorf("config: alpaca api_key and api_secret are required")
	}
	if c.Alpaca.BaseURL == "" {
		return fmt.Errorf("config: alpaca base_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Trading.QtyPerOrder <= 0 {
		return fmt.Errorf("config: qty_per_order must be positive")
	}
	if c.Trading.DecisionIntervalSeconds <= 0 || c.Trading.BroadcastIntervalSeconds <= 0 {
		return fmt.Errorf("config: cycle intervals must be positive")
	}
	if c.Trading.OrderPollAttempts <= 0 {
		return fmt.Errorf("config: order_poll_attempts must be positive")
	}
	if c.Trading.OrderPollDelaySeconds < 0 {
		return fmt.Errorf("config: order_poll_delay_seconds must not be negative")
	}
	if len(c.Trading.Instruments) == 0 {
		return fmt.Errorf("config: at least one instrument is required")
	}
	seen := make(map[string]bool, len(c.Trading.Instruments))
	for _, inst := range c.Trading.Instruments {
		sym := strings.TrimSpace(inst.Symbol)
		if sym == "" {
			return fmt.Errorf("config: instrument with empty symbol")
		}
		if seen[sym] {
			return fmt.Errorf("config: duplicate instrument %s", sym)
		}
		seen[sym] = true
		if inst.BuyThreshold <= 0 || inst.SellThreshold <= 0 {
			return fmt.Errorf("config: instrument %s: thresholds must be positive", sym)
		}
	}
	return nil
}

// Warnings reports non-fatal configuration issues, currently instruments whose
// buy threshold is at or above the sell threshold. Such an instrument can
// oscillate between buying and selling every cycle, so operators are warned
// but trading is allowed to proceed.
func (c *Config) Warnings() []string {
	var warns []string
	for _, inst := range c.Trading.Instruments {
		if inst.BuyThreshold >= inst.SellThreshold {
			warns = append(warns, fmt.Sprintf(
				"instrument %s: buy threshold %.4f >= sell threshold %.4f; may oscillate every cycle",
				inst.Symbol, inst.BuyThreshold, inst.SellThreshold,
			))
		}
	}
	return warns
}

// DecisionInterval returns the decision-cycle cadence as a Duration.
func (c *Config) DecisionInterval() time.Duration {
	return time.Duration(c.Trading.DecisionIntervalSeconds) * time.Second
}

// BroadcastInterval returns the broadcast-cycle cadence as a Duration.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Trading.BroadcastIntervalSeconds) * time.Second
}

// OrderPollDelay returns the fixed inter-attempt delay for fill polling.
func (c *Config) OrderPollDelay() time.Duration {
	return time.Duration(c.Trading.OrderPollDelaySeconds) * time.Second
}
