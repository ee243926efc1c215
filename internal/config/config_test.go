package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"StockChart/internal/input"
)

var envKeys = []string{
	"SSI_BASE_URL", "PAGE_SIZE", "MAX_PAGES", "OUTPUT_DIR", "NO_BROWSER",
	"SQLITE_PATH", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "HTTPS_PROXY", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 50, cfg.DataSource.PageSize)
	require.Equal(t, 1000, cfg.DataSource.MaxPages)
	require.Equal(t, "Data", cfg.Output.Dir)
	require.True(t, cfg.Output.OpenBrowser)
	require.Equal(t, "closePrice", cfg.Fields.Close)
	require.False(t, cfg.HasTelegram())

	opts := cfg.CollectorOptions()
	require.Equal(t, time.Second, opts.RetryDelay)
	require.Equal(t, 2, opts.MaxRetries)
	require.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, `
data_source:
  page_size: 100
  retry_delay_ms: 250
output:
  dir: out
  open_browser: false
  range_preset: 6m
  ma_periods: [20, 50]
fields:
  volume: totalVolume
jobs:
  - cron: "0 0 18 * * 1-5"
    symbol: fpt
telegram:
  bot_token: from-file
`)
	t.Setenv("OUTPUT_DIR", "env-out")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 100, cfg.DataSource.PageSize)
	require.Equal(t, 1000, cfg.DataSource.MaxPages)
	require.Equal(t, 250*time.Millisecond, cfg.CollectorOptions().RetryDelay)
	require.Equal(t, "env-out", cfg.Output.Dir)
	require.False(t, cfg.Output.OpenBrowser)
	require.Equal(t, []int{20, 50}, cfg.Output.MAPeriods)
	require.Equal(t, "totalVolume", cfg.Fields.Volume)
	require.Equal(t, "tradingDate", cfg.Fields.Date)
	require.True(t, cfg.HasTelegram())

	require.Len(t, cfg.Jobs, 1)
	require.Equal(t, "FPT", cfg.Jobs[0].Symbol)
	require.Equal(t, "fpt", cfg.Jobs[0].Name)
	require.Equal(t, 365, cfg.Jobs[0].LookbackDays)
}

func TestLoad_NoBrowserEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NO_BROWSER", "true")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.False(t, cfg.Output.OpenBrowser)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "data_source: [unclosed"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"page size", func(c *Config) { c.DataSource.PageSize = 0 }},
		{"range preset", func(c *Config) { c.Output.RangePreset = "2w" }},
		{"ma period", func(c *Config) { c.Output.MAPeriods = []int{0} }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"job symbol", func(c *Config) { c.Jobs = []Job{{Name: "x", Cron: "@daily", Symbol: "GOOGL"}} }},
		{"job cron", func(c *Config) { c.Jobs = []Job{{Name: "x", Cron: "every day", Symbol: "FPT"}} }},
		{"duplicate job", func(c *Config) {
			c.Jobs = []Job{{Name: "x", Cron: "@daily", Symbol: "FPT"}, {Name: "x", Cron: "@daily", Symbol: "VNM"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			require.Error(t, c.Validate())
		})
	}

	c := Default()
	c.Jobs = []Job{{Name: "x", Cron: "@daily", Symbol: "GOOGL"}}
	require.ErrorIs(t, c.Validate(), input.ErrInvalidSymbol)

	c = Default()
	c.Jobs = []Job{
		{Name: "six", Cron: "0 30 15 * * 1-5", Symbol: "FPT"},
		{Name: "five", Cron: "30 15 * * 1-5", Symbol: "VNM"},
	}
	require.NoError(t, c.Validate())
}

func TestNewLogger(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	require.Equal(t, logrus.InfoLevel, NewLogger("nonsense").GetLevel())
}
