package di

import (
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/clientdata"
	"github.com/aristath/spreadbook/internal/config"
	"github.com/aristath/spreadbook/internal/reliability"
	"github.com/aristath/spreadbook/internal/scheduler"
	"github.com/rs/zerolog"
)

// cacheCleanupGrace keeps expired quotes around as stale fallbacks for a day
const cacheCleanupGrace = 24 * time.Hour

// RegisterJobs creates all jobs and registers them with the scheduler.
// Schedules come from cfg; when scheduling is disabled jobs are registered for
// manual triggering only.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(container.Metrics, log)
	container.Scheduler = sched
	instances := &JobInstances{}

	schedule := func(expr string) string {
		if !cfg.Schedules.Enabled {
			return ""
		}
		return expr
	}

	register := func(expr string, job scheduler.Job) error {
		if err := sched.AddJob(schedule(expr), job); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
		return nil
	}

	// Strategy jobs
	instances.UpdatePnl = scheduler.NewUpdatePnlJob(container.Engine, container.Gateway, container.Calendar, 0, log)
	if err := register(cfg.Schedules.PnlUpdate, instances.UpdatePnl); err != nil {
		return nil, err
	}

	if container.ScanSource != nil {
		instances.ScanPipeline = scheduler.NewScanPipelineJob(
			container.ScanSource,
			container.ScanService,
			container.Engine,
			container.Gateway,
			container.Calendar,
			cfg.Scraper.ScanNames,
			0,
			log,
		)
		if err := register(cfg.Schedules.ScanPipeline, instances.ScanPipeline); err != nil {
			return nil, err
		}
	}

	// Cache and database health
	instances.CacheCleanup = clientdata.NewCleanupJob(container.CacheRepo, cacheCleanupGrace, log)
	if err := register(cfg.Schedules.CacheCleanup, instances.CacheCleanup); err != nil {
		return nil, err
	}

	instances.WALCheckpoints = scheduler.NewCheckWALCheckpointsJob(log, container.DB)
	if err := register(cfg.Schedules.WALCheckpoint, instances.WALCheckpoints); err != nil {
		return nil, err
	}

	instances.CoreDatabases = scheduler.NewCheckCoreDatabasesJob(log, container.DB)
	if err := register(cfg.Schedules.IntegrityCheck, instances.CoreDatabases); err != nil {
		return nil, err
	}

	instances.DailyMaintenance = reliability.NewDailyMaintenanceJob(container.DB, cfg.DataDir, log)
	if err := register(cfg.Schedules.DailyMaintenance, instances.DailyMaintenance); err != nil {
		return nil, err
	}

	instances.WeeklyMaintenance = reliability.NewWeeklyMaintenanceJob(container.DB, log)
	if err := register(cfg.Schedules.WeeklyMaintenance, instances.WeeklyMaintenance); err != nil {
		return nil, err
	}

	if container.Backup != nil {
		instances.Backup = reliability.NewBackupJob(container.Backup, cfg.Backup.RetentionDays, log)
		if err := register(cfg.Schedules.Backup, instances.Backup); err != nil {
			return nil, err
		}
	}

	container.Jobs = instances
	log.Info().Int("jobs", len(sched.Jobs())).Bool("scheduled", cfg.Schedules.Enabled).Msg("Jobs registered")

	return instances, nil
}
