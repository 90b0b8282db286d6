package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/spreadbook/internal/clientdata"
	"github.com/aristath/spreadbook/internal/clients/scraper"
	"github.com/aristath/spreadbook/internal/clients/tradier"
	"github.com/aristath/spreadbook/internal/config"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/metrics"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/aristath/spreadbook/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services on top of the database
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	conn := container.DB.Conn()

	container.CacheRepo = clientdata.NewRepository(conn)
	container.Calendar = market_hours.NewCalendar()
	container.Metrics = metrics.NewRegistry()

	gateway, err := initializeGateway(container, cfg, log)
	if err != nil {
		return err
	}
	container.Gateway = marketdata.NewThrottle(gateway, cfg.MarketData.Delay, container.Metrics, log)

	engine, err := portfolios.NewEngine(
		conn,
		scans.NewRepository(conn, log),
		container.Gateway,
		container.Calendar,
		cfg.Engine,
		container.Metrics,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio engine: %w", err)
	}
	container.Engine = engine
	container.ScanService = scans.NewService(conn, engine.Portfolios(), log)

	source, err := scraper.NewCommandSource(scraper.Config{
		Command: cfg.Scraper.Command,
		Timeout: cfg.Scraper.Timeout,
	}, log)
	switch {
	case errors.Is(err, scraper.ErrNotConfigured):
		log.Warn().Msg("SCRAPER_COMMAND not set, scan pipeline disabled")
	case err != nil:
		return err
	default:
		container.ScanSource = source
	}

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Region:          cfg.Backup.Region,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.Backup = reliability.NewBackupService(container.DB, store, cfg.DataDir, log)
	}

	return nil
}

// initializeGateway picks the market data provider
func initializeGateway(container *Container, cfg *config.Config, log zerolog.Logger) (marketdata.Gateway, error) {
	switch cfg.MarketData.Provider {
	case config.ProviderNone:
		log.Warn().Msg("Market data disabled, trades will keep their last known values")
		return marketdata.NewOffline(container.Calendar), nil

	case config.ProviderTradier:
		client, err := tradier.NewClient(tradier.Config{
			BaseURL:        cfg.MarketData.TradierURL,
			Token:          cfg.MarketData.TradierToken,
			Timeout:        cfg.MarketData.Timeout,
			RequestSpacing: cfg.MarketData.Delay,
		}, container.CacheRepo, container.Calendar, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create tradier client: %w", err)
		}
		container.TradierClient = client

		container.Metrics.TrackGauge("tradier_breaker_open", "1 while the Tradier circuit breaker is open.", func() float64 {
			if client.BreakerState() == "open" {
				return 1
			}
			return 0
		})
		return client, nil
	}

	return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
}
