package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"StockChart/internal/chart"
	"StockChart/internal/collector"
	"StockChart/internal/input"
	"StockChart/internal/model"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Job is a scheduled export of one symbol over a trailing window.
type Job struct {
	Name         string `yaml:"name"`
	Cron         string `yaml:"cron"`
	Symbol       string `yaml:"symbol"`
	LookbackDays int    `yaml:"lookback_days"`
}

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		BaseURL      string `yaml:"base_url"`
		PageSize     int    `yaml:"page_size"`
		MaxPages     int    `yaml:"max_pages"`
		MaxRetries   int    `yaml:"max_retries"`
		RetryDelayMS int    `yaml:"retry_delay_ms"`
		TimeoutSec   int    `yaml:"timeout_sec"`
	} `yaml:"data_source"`
	Output struct {
		Dir         string `yaml:"dir"`
		OpenBrowser bool   `yaml:"open_browser"`
		RangePreset string `yaml:"range_preset"`
		MAPeriods   []int  `yaml:"ma_periods"`
	} `yaml:"output"`
	Fields   model.FieldMap `yaml:"fields"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Jobs     []Job  `yaml:"jobs"`
	LogLevel string `yaml:"log_level"`
	Proxy    string `yaml:"proxy"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	opts := collector.DefaultOptions()
	cfg.DataSource.BaseURL = collector.DefaultSSIBaseURL
	cfg.DataSource.PageSize = opts.PageSize
	cfg.DataSource.MaxPages = opts.MaxPages
	cfg.DataSource.MaxRetries = opts.MaxRetries
	cfg.DataSource.RetryDelayMS = int(opts.RetryDelay / time.Millisecond)
	cfg.DataSource.TimeoutSec = 30
	cfg.Output.Dir = "Data"
	cfg.Output.OpenBrowser = true
	cfg.Output.RangePreset = chart.RangeAll
	cfg.Fields = model.DefaultFieldMap()
	cfg.Database.SQLitePath = "data/stockchart.db"
	cfg.LogLevel = "info"
	return cfg
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

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
	if v := os.Getenv("SSI_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSource.PageSize = n
		}
	}
	if v := os.Getenv("MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSource.MaxPages = n
		}
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("NO_BROWSER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Output.OpenBrowser = !b
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
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
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults for fields a file may have blanked out
	cfg.Fields = cfg.Fields.WithDefaults()
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "Data"
	}
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = collector.DefaultSSIBaseURL
	}
	for i := range cfg.Jobs {
		cfg.Jobs[i].Symbol = input.NormalizeSymbol(cfg.Jobs[i].Symbol)
		if cfg.Jobs[i].LookbackDays == 0 {
			cfg.Jobs[i].LookbackDays = 365
		}
		if cfg.Jobs[i].Name == "" {
			cfg.Jobs[i].Name = strings.ToLower(cfg.Jobs[i].Symbol)
		}
	}

	return cfg, nil
}

// CronParser parses job schedules for both validation and the daemon. The
// leading seconds field is optional.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks the settings every front end depends on.
func (c *Config) Validate() error {
	if c.DataSource.PageSize <= 0 {
		return fmt.Errorf("data_source.page_size must be positive")
	}
	if c.DataSource.MaxPages < 0 {
		return fmt.Errorf("data_source.max_pages must not be negative")
	}
	if c.DataSource.MaxRetries < 0 {
		return fmt.Errorf("data_source.max_retries must not be negative")
	}
	if !chart.ValidRange(c.Output.RangePreset) {
		return fmt.Errorf("output.range_preset %q is not one of all, 1m, 6m, ytd, 1y", c.Output.RangePreset)
	}
	for _, p := range c.Output.MAPeriods {
		if p <= 0 {
			return fmt.Errorf("output.ma_periods: %d is not a positive period", p)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	seen := make(map[string]bool)
	for _, j := range c.Jobs {
		if seen[j.Name] {
			return fmt.Errorf("jobs: duplicate name %q", j.Name)
		}
		seen[j.Name] = true
		if !input.ValidateSymbol(j.Symbol) {
			return fmt.Errorf("jobs.%s: %w: %q", j.Name, input.ErrInvalidSymbol, j.Symbol)
		}
		if j.LookbackDays < 0 {
			return fmt.Errorf("jobs.%s: lookback_days must not be negative", j.Name)
		}
		if _, err := CronParser.Parse(j.Cron); err != nil {
			return fmt.Errorf("jobs.%s: cron %q: %w", j.Name, j.Cron, err)
		}
	}
	return nil
}

// ValidateTelegram checks the settings the bot needs.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// HasTelegram reports whether both Telegram settings are present.
func (c *Config) HasTelegram() bool { return c.ValidateTelegram() == nil }

// CollectorOptions maps data_source onto collector options.
func (c *Config) CollectorOptions() collector.Options {
	opts := collector.DefaultOptions()
	opts.PageSize = c.DataSource.PageSize
	opts.MaxPages = c.DataSource.MaxPages
	opts.MaxRetries = c.DataSource.MaxRetries
	opts.RetryDelay = time.Duration(c.DataSource.RetryDelayMS) * time.Millisecond
	return opts
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.DataSource.TimeoutSec) * time.Second
}

// NewLogger builds the process logger at the given level, falling back to info.
func NewLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
