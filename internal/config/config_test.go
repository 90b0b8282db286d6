package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SPREADBOOK_DATA_DIR", dir)
	t.Setenv("TRADIER_TOKEN", "token")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "strategy.db"), cfg.DatabasePath())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ProviderTradier, cfg.MarketData.Provider)
	assert.Equal(t, 200*time.Millisecond, cfg.MarketData.Delay)
	assert.Equal(t, []string{"weekly"}, cfg.Scraper.ScanNames)
	assert.True(t, cfg.Schedules.Enabled)
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, portfolios.DefaultEngineConfig(), cfg.Engine)
}

func TestLoad_Overrides(t *testing.T) {
	dir := setBaseEnv(t)
	strategy := filepath.Join(dir, "strategy.yaml")
	require.NoError(t, os.WriteFile(strategy, []byte("trades_per_portfolio: 8\nmin_return_percent: 3.5\n"), 0644))

	t.Setenv("PORT", "9000")
	t.Setenv("MARKET_DATA_PROVIDER", "NONE")
	t.Setenv("TRADIER_TOKEN", "")
	t.Setenv("MARKET_DATA_DELAY", "1s")
	t.Setenv("SCAN_NAMES", "weekly, yearly ,,monthly")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("BACKUP_BUCKET", "spreadbook-backups")
	t.Setenv("STRATEGY_CONFIG", strategy)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, ProviderNone, cfg.MarketData.Provider)
	assert.Equal(t, time.Second, cfg.MarketData.Delay)
	assert.Equal(t, []string{"weekly", "yearly", "monthly"}, cfg.Scraper.ScanNames)
	assert.False(t, cfg.Schedules.Enabled)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, 8, cfg.Engine.TradesPerPortfolio)
	assert.Equal(t, units.BasisPoints(350), cfg.Engine.MinReturn)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("MARKET_DATA_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 200*time.Millisecond, cfg.MarketData.Delay)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:       8080,
			MarketData: MarketDataConfig{Provider: ProviderTradier, TradierToken: "t"},
			Scraper:    ScraperConfig{ScanNames: []string{"weekly"}},
			Engine:     portfolios.DefaultEngineConfig(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"offline without token", func(c *Config) { c.MarketData = MarketDataConfig{Provider: ProviderNone} }, ""},
		{"missing token", func(c *Config) { c.MarketData.TradierToken = "" }, "TRADIER_TOKEN"},
		{"unknown provider", func(c *Config) { c.MarketData.Provider = "polygon" }, "unknown market data provider"},
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"no scans", func(c *Config) { c.Scraper.ScanNames = nil }, "scan name"},
		{"negative retention", func(c *Config) { c.Backup.RetentionDays = -1 }, "retention"},
		{"bad engine", func(c *Config) { c.Engine.ContractsPerTrade = 0 }, "invalid strategy config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
