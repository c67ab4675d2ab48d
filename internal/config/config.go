// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "auction-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Trading       TradingConfig      `mapstructure:"trading"`
	Pricing       PricingConfig      `mapstructure:"pricing"`
	SDK           SDKConfig          `mapstructure:"sdk"`
	Payoff        PayoffConfig       `mapstructure:"payoff"`
	Store         StoreConfig        `mapstructure:"store"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Paper         PaperConfig        `mapstructure:"paper"`
	Credentials   Credentials        `mapstructure:"-" json:"-"` // Loaded separately
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode            string `mapstructure:"mode"` // "live", "paper"
	CurrencyPair    string `mapstructure:"currency_pair"`
	StrikePrecision int32  `mapstructure:"strike_precision"`
	MaxLegs         int    `mapstructure:"max_legs"`
}

// PricingConfig holds the pricing backend and bid/ask spread configuration.
type PricingConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second
	Burst           int           `mapstructure:"burst"`
	RetryMax        int           `mapstructure:"retry_max"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Spreads         SpreadConfig  `mapstructure:"spreads"`
}

// SpreadConfig holds the total bid/ask spread per instrument family, in
// price currency units.
type SpreadConfig struct {
	Vanilla      float64 `mapstructure:"vanilla"`
	Binary       float64 `mapstructure:"binary"`
	Forward      float64 `mapstructure:"forward"`
	MinimumPrice float64 `mapstructure:"minimum_price"`
}

// SDKConfig holds trading API configuration.
type SDKConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	WSURL   string        `mapstructure:"ws_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PayoffConfig holds payoff chart sampling configuration.
type PayoffConfig struct {
	Points  int     `mapstructure:"points"`
	Padding float64 `mapstructure:"padding"` // fraction of the highest anchor
}

// StoreConfig holds the order journal location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    bool   `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Level   string        `mapstructure:"level"` // all, orders_only, errors_only
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// PaperConfig describes the synthetic market used in paper mode.
type PaperConfig struct {
	Spot         float64   `mapstructure:"spot"`
	Strikes      []float64 `mapstructure:"strikes"`
	ExpiryDays   int       `mapstructure:"expiry_days"`
	TimeValue    float64   `mapstructure:"time_value"`    // vanilla time value at the money
	FeeRate      float64   `mapstructure:"fee_rate"`      // fraction of premium notional
	LockMultiple float64   `mapstructure:"lock_multiple"` // collateral per unit of short exposure
}

// Credentials holds API credentials.
type Credentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/auction-trader"
	}
	return filepath.Join(home, ".config", "auction-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(configDir, "orders.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated only with defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.currency_pair", "WETH/USDC")
	v.SetDefault("trading.strike_precision", 4)
	v.SetDefault("trading.max_legs", 5)

	v.SetDefault("pricing.url", "https://app.ithaca.finance")
	v.SetDefault("pricing.timeout", "10s")
	v.SetDefault("pricing.rate_limit", 10.0)
	v.SetDefault("pricing.burst", 5)
	v.SetDefault("pricing.retry_max", 2)
	v.SetDefault("pricing.refresh_interval", "30s")
	v.SetDefault("pricing.spreads.vanilla", 5.25)
	v.SetDefault("pricing.spreads.binary", 0.05)
	v.SetDefault("pricing.spreads.forward", 1.05)
	v.SetDefault("pricing.spreads.minimum_price", 0.01)

	v.SetDefault("sdk.timeout", "15s")

	v.SetDefault("payoff.points", 101)
	v.SetDefault("payoff.padding", 0.2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.console", true)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.level", "all")

	v.SetDefault("paper.spot", 1900.0)
	v.SetDefault("paper.strikes", []float64{1600, 1700, 1800, 1900, 2000, 2100, 2200})
	v.SetDefault("paper.expiry_days", 7)
	v.SetDefault("paper.time_value", 40.0)
	v.SetDefault("paper.fee_rate", 0.0004)
	v.SetDefault("paper.lock_multiple", 1.0)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Missing file: write a template and run on defaults.
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUCTION_TRADER_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("AUCTION_TRADER_PRICING_URL"); v != "" {
		cfg.Pricing.URL = v
	}
	if v := os.Getenv("AUCTION_TRADER_API_URL"); v != "" {
		cfg.SDK.APIURL = v
	}
	if v := os.Getenv("AUCTION_TRADER_WS_URL"); v != "" {
		cfg.SDK.WSURL = v
	}
	if v := os.Getenv("AUCTION_TRADER_API_KEY"); v != "" {
		cfg.Credentials.APIKey = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "trading mode %q (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if c.Trading.MaxLegs < 1 || c.Trading.MaxLegs > 10 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "max_legs must be between 1 and 10")
	}
	if c.Trading.StrikePrecision < 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "strike_precision must be non-negative")
	}

	s := c.Pricing.Spreads
	if s.Vanilla < 0 || s.Binary < 0 || s.Forward < 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "spreads must be non-negative")
	}
	if s.MinimumPrice <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "minimum_price must be positive")
	}
	if c.Pricing.RateLimit <= 0 || c.Pricing.Burst < 1 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "pricing rate_limit and burst must be positive")
	}
	if c.Pricing.RefreshInterval < time.Second {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "refresh_interval must be at least 1s")
	}
	if c.Payoff.Points < 2 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "payoff points must be at least 2")
	}

	if c.IsPaperMode() {
		if c.Paper.Spot <= 0 || len(c.Paper.Strikes) == 0 {
			return apperrors.Wrap(apperrors.ErrConfigInvalid, "paper mode needs a positive spot and at least one strike")
		}
		return nil
	}

	for name, raw := range map[string]string{"pricing.url": c.Pricing.URL, "sdk.api_url": c.SDK.APIURL} {
		if raw == "" {
			return apperrors.Wrapf(apperrors.ErrConfigInvalid, "%s is required in live mode", name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return apperrors.Wrapf(apperrors.ErrConfigInvalid, "%s: %v", name, err)
		}
	}

	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}
