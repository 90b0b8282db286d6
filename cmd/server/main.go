// Package main is the entry point for the spreadbook server. It runs the
// HTTP API and the scheduled jobs that ingest scans, build paper portfolios
// and mark them to market.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/spreadbook/internal/config"
	"github.com/aristath/spreadbook/internal/di"
	"github.com/aristath/spreadbook/internal/server"
	"github.com/aristath/spreadbook/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("market_data", cfg.MarketData.Provider).
		Strs("scans", cfg.Scraper.ScanNames).
		Msg("Starting spreadbook")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	if cfg.Schedules.Enabled {
		container.Scheduler.Start()
		log.Info().Strs("jobs", container.Scheduler.Jobs()).Msg("Scheduler started")
	} else {
		log.Warn().Msg("Scheduler disabled, jobs only run on demand")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for running jobs so the database is not closed under them.
	if cfg.Schedules.Enabled {
		container.Scheduler.Stop()
		log.Info().Msg("Scheduler stopped")
	}

	log.Info().Msg("Server stopped")
}
