package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/camuig/coin-sim/internal/trading"
)

type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Trading   TradingConfig   `yaml:"trading"`
	Triggers  TriggersConfig  `yaml:"triggers"`
	Storage   StorageConfig   `yaml:"storage"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Headlines HeadlinesConfig `yaml:"headlines"`
	Web       WebConfig       `yaml:"web"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type MarketConfig struct {
	Interval string `yaml:"interval"`
	Seed     int64  `yaml:"seed"`
}

type TradingConfig struct {
	StartingCash       float64 `yaml:"starting_cash"`
	MinAmount          float64 `yaml:"min_amount"`
	AmountPlaces       int32   `yaml:"amount_places"`
	FeeRate            float64 `yaml:"fee_rate"`
	TriggerConcurrency int     `yaml:"trigger_concurrency"`
}

type TriggersConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// HeadlinesConfig points at an OpenAI-compatible endpoint used to rewrite
// market event headlines.
type HeadlinesConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// WebConfig serves the HTTP API. Admin routes answer 403 while AdminToken
// is empty.
type WebConfig struct {
	Port       int    `yaml:"port"`
	AdminToken string `yaml:"admin_token"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Market.Interval == "" {
		cfg.Market.Interval = "60s"
	}
	if cfg.Trading.StartingCash == 0 {
		cfg.Trading.StartingCash = 100
	}
	if cfg.Trading.AmountPlaces == 0 {
		cfg.Trading.AmountPlaces = trading.DefaultAmountPlaces
	}
	if cfg.Trading.MinAmount == 0 {
		cfg.Trading.MinAmount = 0.001
	}
	if cfg.Trading.TriggerConcurrency == 0 {
		cfg.Trading.TriggerConcurrency = 8
	}
	if cfg.Triggers.RetentionDays == 0 {
		cfg.Triggers.RetentionDays = 30
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/coin-sim.db"
	}
	if cfg.Headlines.BaseURL == "" {
		cfg.Headlines.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Headlines.Model == "" {
		cfg.Headlines.Model = "deepseek-chat"
	}
	if cfg.Headlines.Timeout == "" {
		cfg.Headlines.Timeout = "15s"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	if d, err := time.ParseDuration(c.Market.Interval); err != nil {
		return fmt.Errorf("invalid market.interval %q: %w", c.Market.Interval, err)
	} else if d <= 0 {
		return fmt.Errorf("market.interval must be positive, got %s", d)
	}
	if c.Trading.StartingCash < 0 {
		return fmt.Errorf("trading.starting_cash must not be negative")
	}
	if c.Trading.AmountPlaces < 0 || c.Trading.AmountPlaces > trading.MoneyPlaces {
		return fmt.Errorf("trading.amount_places must be between 0 and %d", trading.MoneyPlaces)
	}
	if c.Trading.MinAmount < 0 {
		return fmt.Errorf("trading.min_amount must not be negative")
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return fmt.Errorf("trading.fee_rate must be in [0, 1), got %v", c.Trading.FeeRate)
	}
	if c.Trading.TriggerConcurrency < 1 {
		return fmt.Errorf("trading.trigger_concurrency must be at least 1")
	}
	if c.Triggers.RetentionDays < 1 {
		return fmt.Errorf("triggers.retention_days must be at least 1")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if _, err := time.ParseDuration(c.Headlines.Timeout); err != nil {
		return fmt.Errorf("invalid headlines.timeout %q: %w", c.Headlines.Timeout, err)
	}
	if c.Headlines.Enabled && c.Headlines.APIKey == "" {
		return fmt.Errorf("headlines.api_key is required when headlines are enabled")
	}
	return nil
}

func (c *Config) UpdateInterval() time.Duration {
	d, _ := time.ParseDuration(c.Market.Interval)
	return d
}

func (c *Config) HeadlinesTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Headlines.Timeout)
	return d
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Triggers.RetentionDays) * 24 * time.Hour
}

func (c *Config) StartingCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.StartingCash)
}

func (c *Config) FeeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.FeeRate)
}

// Validator builds the trade validator from the trading section.
func (c *Config) Validator() trading.Validator {
	return trading.NewValidator(
		decimal.NewFromFloat(c.Trading.MinAmount),
		c.Trading.AmountPlaces,
		c.FeeRate(),
	)
}

func (c *Config) Ledger() trading.Ledger {
	return trading.NewLedger(c.FeeRate())
}
