// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/spreadbook/internal/clientdata"
	"github.com/aristath/spreadbook/internal/clients/scraper"
	"github.com/aristath/spreadbook/internal/clients/tradier"
	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/metrics"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/aristath/spreadbook/internal/reliability"
	"github.com/aristath/spreadbook/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and passed to the server and CLI.
type Container struct {
	// Database
	DB *database.DB

	// Clients
	CacheRepo     *clientdata.Repository
	TradierClient *tradier.Client        // nil when the provider is "none"
	ScanSource    *scraper.CommandSource // nil when no scraper command is configured
	Gateway       marketdata.Gateway     // throttled

	// Services
	Calendar    *market_hours.Calendar
	Metrics     *metrics.Registry
	Engine      *portfolios.Engine
	ScanService *scans.Service
	Backup      *reliability.BackupService // nil when backups are disabled

	// Background jobs
	Scheduler *scheduler.Scheduler
	Jobs      *JobInstances
}

// JobInstances holds references to all registered jobs
type JobInstances struct {
	ScanPipeline      *scheduler.ScanPipelineJob // nil without a scraper
	UpdatePnl         *scheduler.UpdatePnlJob
	CacheCleanup      *clientdata.CleanupJob
	WALCheckpoints    *scheduler.CheckWALCheckpointsJob
	CoreDatabases     *scheduler.CheckCoreDatabasesJob
	DailyMaintenance  *reliability.DailyMaintenanceJob
	WeeklyMaintenance *reliability.WeeklyMaintenanceJob
	Backup            *reliability.BackupJob // nil when backups are disabled
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
