// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/joho/godotenv"
)

// Market data providers
const (
	ProviderTradier = "tradier"
	ProviderNone    = "none"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and backup staging (always absolute)
	LogLevel string
	Port     int
	DevMode  bool // Pretty console logs

	MarketData MarketDataConfig
	Scraper    ScraperConfig
	Schedules  ScheduleConfig
	Backup     BackupConfig

	// Engine holds the strategy tunables, optionally overridden from StrategyFile.
	Engine       portfolios.EngineConfig
	StrategyFile string
}

// MarketDataConfig configures the market data gateway
type MarketDataConfig struct {
	Provider     string // tradier or none
	TradierToken string
	TradierURL   string
	Timeout      time.Duration
	// Delay is the minimum spacing between two gateway calls.
	Delay time.Duration
}

// ScraperConfig configures the external screener scraper
type ScraperConfig struct {
	Command   string
	Timeout   time.Duration
	ScanNames []string
}

// ScheduleConfig holds six-field cron expressions in market time. An empty
// expression disables the job.
type ScheduleConfig struct {
	Enabled           bool
	ScanPipeline      string
	PnlUpdate         string
	CacheCleanup      string
	WALCheckpoint     string
	IntegrityCheck    string
	DailyMaintenance  string
	WeeklyMaintenance string
	Backup            string
}

// BackupConfig configures S3-compatible backups. Backups are disabled without a bucket.
type BackupConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether a bucket is configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// DatabasePath returns the strategy database location
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "strategy.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("SPREADBOOK_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		MarketData: MarketDataConfig{
			Provider:     strings.ToLower(getEnv("MARKET_DATA_PROVIDER", ProviderTradier)),
			TradierToken: getEnv("TRADIER_TOKEN", ""),
			TradierURL:   getEnv("TRADIER_URL", ""),
			Timeout:      getEnvAsDuration("MARKET_DATA_TIMEOUT", 15*time.Second),
			Delay:        getEnvAsDuration("MARKET_DATA_DELAY", 200*time.Millisecond),
		},
		Scraper: ScraperConfig{
			Command:   getEnv("SCRAPER_COMMAND", ""),
			Timeout:   getEnvAsDuration("SCRAPER_TIMEOUT", 5*time.Minute),
			ScanNames: getEnvAsList("SCAN_NAMES", []string{"weekly"}),
		},
		Schedules: ScheduleConfig{
			Enabled:           getEnvAsBool("SCHEDULER_ENABLED", true),
			ScanPipeline:      getEnv("SCHEDULE_SCAN_PIPELINE", "0 30 16 * * MON-FRI"),
			PnlUpdate:         getEnv("SCHEDULE_PNL_UPDATE", "0 15 10-16 * * MON-FRI"),
			CacheCleanup:      getEnv("SCHEDULE_CACHE_CLEANUP", "0 0 3 * * *"),
			WALCheckpoint:     getEnv("SCHEDULE_WAL_CHECKPOINT", "0 */10 * * * *"),
			IntegrityCheck:    getEnv("SCHEDULE_INTEGRITY_CHECK", "0 30 2 * * *"),
			DailyMaintenance:  getEnv("SCHEDULE_DAILY_MAINTENANCE", "0 0 2 * * *"),
			WeeklyMaintenance: getEnv("SCHEDULE_WEEKLY_MAINTENANCE", "0 0 4 * * SUN"),
			Backup:            getEnv("SCHEDULE_BACKUP", "0 0 1 * * *"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
		Engine:       portfolios.DefaultEngineConfig(),
		StrategyFile: getEnv("STRATEGY_CONFIG", ""),
	}

	if cfg.StrategyFile != "" {
		engine, err := LoadStrategyFile(cfg.StrategyFile, cfg.Engine)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.MarketData.Provider {
	case ProviderTradier:
		if c.MarketData.TradierToken == "" {
			return fmt.Errorf("TRADIER_TOKEN is required when MARKET_DATA_PROVIDER=%s", ProviderTradier)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown market data provider %q", c.MarketData.Provider)
	}
	if c.MarketData.Delay < 0 {
		return fmt.Errorf("market data delay must not be negative")
	}

	if len(c.Scraper.ScanNames) == 0 {
		return fmt.Errorf("at least one scan name is required")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup retention must not be negative")
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid strategy config: %w", err)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
