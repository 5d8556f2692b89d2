package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		AlphaVantageKey string `yaml:"alpha_vantage_key"`
		CoinGeckoKey    string `yaml:"coingecko_key"`
		Symbol          string `yaml:"symbol"`
		BarCount        int    `yaml:"bar_count"`
		MinCallDelaySec int    `yaml:"min_call_delay_sec"`
	} `yaml:"data_source"`
	Cache struct {
		MaxAgeMinutes int `yaml:"max_age_minutes"`
	} `yaml:"cache"`
	Schedule struct {
		MorningCron string `yaml:"morning_cron"`
		EveningCron string `yaml:"evening_cron"`
		CleanupCron string `yaml:"cleanup_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath    string `yaml:"sqlite_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"database"`
	Export struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"export"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy      string  `yaml:"proxy"`
	Indicators *Tables `yaml:"indicators"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.DataSource.AlphaVantageKey = v
	}
	if v := os.Getenv("COINGECKO_PRO_API_KEY"); v != "" {
		cfg.DataSource.CoinGeckoKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Export.OutputDir = v
	}
	if v := os.Getenv("CACHE_MAX_AGE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.MaxAgeMinutes = n
		}
	}

	// Defaults
	if cfg.DataSource.Symbol == "" {
		cfg.DataSource.Symbol = "BTCUSD"
	}
	if cfg.DataSource.BarCount == 0 {
		cfg.DataSource.BarCount = 300
	}
	if cfg.DataSource.MinCallDelaySec == 0 {
		cfg.DataSource.MinCallDelaySec = 12
	}
	if cfg.Cache.MaxAgeMinutes == 0 {
		cfg.Cache.MaxAgeMinutes = 60
	}
	if cfg.Schedule.MorningCron == "" {
		cfg.Schedule.MorningCron = "0 0 8 * * *"
	}
	if cfg.Schedule.EveningCron == "" {
		cfg.Schedule.EveningCron = "0 0 20 * * *"
	}
	if cfg.Schedule.CleanupCron == "" {
		cfg.Schedule.CleanupCron = "0 30 3 * * 0"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/cycle_sentinel.db"
	}
	if cfg.Database.RetentionDays == 0 {
		cfg.Database.RetentionDays = 90
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "outputs"
	}
	if cfg.Indicators == nil {
		cfg.Indicators = DefaultTables()
	} else {
		cfg.Indicators.fillDefaults()
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.DataSource.Symbol == "" {
		return fmt.Errorf("data_source.symbol is required")
	}
	if c.Cache.MaxAgeMinutes <= 0 {
		return fmt.Errorf("cache.max_age_minutes must be positive")
	}
	if c.DataSource.BarCount <= 0 {
		return fmt.Errorf("data_source.bar_count must be positive")
	}
	return c.Indicators.Validate()
}

// CacheMaxAge returns the cache staleness threshold as a duration.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeMinutes) * time.Minute
}
