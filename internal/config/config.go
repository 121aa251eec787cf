// Package config handles loading and validating configuration.
//
// Secrets (API keys, the private key path) come from environment variables
// with fallback to a .env file; trading behavior comes from an optional
// config.yaml with env overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BailoutConfig holds the stop-loss override settings.
type BailoutConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	TriggerWindow      time.Duration `mapstructure:"trigger_window"`
	LossTriggerPercent float64       `mapstructure:"loss_trigger_percent"`
}

// ScheduleConfig gates order-placing ticks to a daily window.
type ScheduleConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Start   string   `mapstructure:"start"` // "HH:MM" local time
	End     string   `mapstructure:"end"`   // "HH:MM" local time
	Days    []string `mapstructure:"days"`  // mon..sun, empty = every day
}

// Config holds all configuration values for the engine.
type Config struct {
	// Kalshi exchange
	KalshiAPIBase        string `mapstructure:"kalshi_api_base"`
	KalshiWSURL          string `mapstructure:"kalshi_ws_url"`
	KalshiAccessKey      string `mapstructure:"kalshi_access_key"`
	KalshiPrivateKeyPath string `mapstructure:"kalshi_private_key_path"`

	// Odds source
	OddsAPIBase string   `mapstructure:"odds_api_base"`
	OddsAPIKey  string   `mapstructure:"odds_api_key"`
	Sports      []string `mapstructure:"sports"`

	// Strategy
	BidMarginPercent       float64 `mapstructure:"bid_margin_percent"`
	AutoCloseMarginPercent float64 `mapstructure:"auto_close_margin_percent"`
	TradeSize              int     `mapstructure:"trade_size"`
	MaxPositions           int     `mapstructure:"max_positions"`
	AutoBid                bool    `mapstructure:"auto_bid"`
	AutoClose              bool    `mapstructure:"auto_close"`
	VolatilityWindow       int     `mapstructure:"volatility_window"`

	Bailout  BailoutConfig  `mapstructure:"bailout"`
	Schedule ScheduleConfig `mapstructure:"schedule"`

	// Polling
	TurboMode       bool          `mapstructure:"turbo_mode"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	TurboInterval   time.Duration `mapstructure:"turbo_interval"`

	// Ledger persistence
	DBPath string `mapstructure:"db_path"`

	// Alerting
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
	AlertCooldown     time.Duration `mapstructure:"alert_cooldown"`

	// UI
	EnableTUI     bool          `mapstructure:"enable_tui"`
	UIRefreshRate time.Duration `mapstructure:"ui_refresh_rate"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from the optional yaml file at path (empty = skip)
// and environment variables, with fallback to a .env file.
// Priority order: Environment variables > config file > hardcoded defaults
func Load(path string) (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KALSHI_ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets keep their conventional unprefixed names.
	_ = v.BindEnv("kalshi_access_key", "KALSHI_ACCESS_KEY")
	_ = v.BindEnv("kalshi_private_key_path", "KALSHI_PRIVATE_KEY_PATH")
	_ = v.BindEnv("odds_api_key", "ODDS_API_KEY")
	_ = v.BindEnv("discord_webhook_url", "DISCORD_WEBHOOK_URL")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Kalshi
	v.SetDefault("kalshi_api_base", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("kalshi_ws_url", "wss://api.elections.kalshi.com/trade-api/ws/v2")

	// Odds source
	v.SetDefault("odds_api_base", "https://api.the-odds-api.com")
	v.SetDefault("sports", []string{"americanfootball_nfl"})

	// Strategy
	v.SetDefault("bid_margin_percent", 5.0)
	v.SetDefault("auto_close_margin_percent", 15.0)
	v.SetDefault("trade_size", 10)
	v.SetDefault("max_positions", 5)
	v.SetDefault("auto_bid", false)
	v.SetDefault("auto_close", false)
	v.SetDefault("volatility_window", 10)

	// Bail out
	v.SetDefault("bailout.enabled", false)
	v.SetDefault("bailout.trigger_window", "2h")
	v.SetDefault("bailout.loss_trigger_percent", 20.0)

	// Schedule
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.start", "09:00")
	v.SetDefault("schedule.end", "23:00")
	v.SetDefault("schedule.days", []string{})

	// Polling
	v.SetDefault("turbo_mode", false)
	v.SetDefault("refresh_interval", "15s")
	v.SetDefault("turbo_interval", "3s")

	// Ledger
	v.SetDefault("db_path", "./data/trades.db")

	// Alerting
	v.SetDefault("alert_cooldown", "10m")

	// UI
	v.SetDefault("enable_tui", true)
	v.SetDefault("ui_refresh_rate", "500ms")

	// Logging
	v.SetDefault("log_level", "INFO")
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.KalshiAPIBase == "" {
		return fmt.Errorf("kalshi_api_base is required")
	}

	if c.OddsAPIBase == "" {
		return fmt.Errorf("odds_api_base is required")
	}

	if len(c.Sports) == 0 {
		return fmt.Errorf("at least one sport must be selected")
	}

	if c.BidMarginPercent < 0 || c.BidMarginPercent >= 100 {
		return fmt.Errorf("bid_margin_percent must be in [0, 100)")
	}

	if c.AutoCloseMarginPercent < 0 {
		return fmt.Errorf("auto_close_margin_percent must not be negative")
	}

	if c.TradeSize < 1 {
		return fmt.Errorf("trade_size must be at least 1")
	}

	if c.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be at least 1")
	}

	if c.VolatilityWindow < 2 {
		return fmt.Errorf("volatility_window must be at least 2")
	}

	if c.Bailout.Enabled {
		if c.Bailout.TriggerWindow <= 0 {
			return fmt.Errorf("bailout.trigger_window must be positive")
		}
		if c.Bailout.LossTriggerPercent <= 0 || c.Bailout.LossTriggerPercent > 100 {
			return fmt.Errorf("bailout.loss_trigger_percent must be in (0, 100]")
		}
	}

	if c.Schedule.Enabled {
		if err := validateClock(c.Schedule.Start); err != nil {
			return fmt.Errorf("schedule.start: %w", err)
		}
		if err := validateClock(c.Schedule.End); err != nil {
			return fmt.Errorf("schedule.end: %w", err)
		}
	}

	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh_interval must be at least 1s")
	}

	if c.TurboInterval < time.Second {
		return fmt.Errorf("turbo_interval must be at least 1s")
	}

	return nil
}

// PollInterval returns the active polling cadence.
func (c *Config) PollInterval() time.Duration {
	if c.TurboMode {
		return c.TurboInterval
	}
	return c.RefreshInterval
}

// validateClock checks a "HH:MM" string.
func validateClock(s string) error {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("invalid time %q", s)
	}
	return nil
}

// MaskedOddsAPIKey returns the odds API key with most characters hidden for logging.
func (c *Config) MaskedOddsAPIKey() string {
	return maskSecret(c.OddsAPIKey)
}

// MaskedKalshiAccessKey returns the Kalshi access key with most characters hidden for logging.
func (c *Config) MaskedKalshiAccessKey() string {
	return maskSecret(c.KalshiAccessKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
