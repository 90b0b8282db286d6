package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/rs/zerolog"
)

// PnlUpdater runs a P&L pass over every active portfolio.
type PnlUpdater interface {
	UpdateAllPortfolioPnl(ctx context.Context) (*portfolios.BatchReport, error)
}

// UpdatePnlJob marks all active portfolios to market and resolves expired trades.
type UpdatePnlJob struct {
	updater  PnlUpdater
	days     TradingDayChecker
	calendar *market_hours.Calendar
	timeout  time.Duration
	log      zerolog.Logger
}

// NewUpdatePnlJob creates a new UpdatePnlJob. days is usually the market data
// gateway; calendar supplies the clock and the fallback holiday rules.
func NewUpdatePnlJob(updater PnlUpdater, days TradingDayChecker, calendar *market_hours.Calendar, timeout time.Duration, log zerolog.Logger) *UpdatePnlJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &UpdatePnlJob{
		updater:  updater,
		days:     days,
		calendar: calendar,
		timeout:  timeout,
		log:      log.With().Str("job", "update_pnl").Logger(),
	}
}

// Name returns the job name
func (j *UpdatePnlJob) Name() string {
	return "update_pnl"
}

// Run executes the P&L pass. Non-trading days are skipped: nothing can be
// marked and nothing expires.
func (j *UpdatePnlJob) Run() error {
	now := j.calendar.Now()
	if !isTradingDay(j.days, j.calendar, now, j.log) {
		j.log.Debug().Str("date", market_hours.FormatDate(now)).Msg("Not a trading day, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.updater.UpdateAllPortfolioPnl(ctx)
	if err != nil {
		return fmt.Errorf("failed to update portfolio P&L: %w", err)
	}

	j.log.Info().
		Str("run_id", report.RunID).
		Int("updated", report.PortfoliosUpdated).
		Int("closed", report.PortfoliosClosed).
		Int("expired", report.TradesExpired).
		Int("skipped", report.TradesSkipped).
		Msg(report.Message)

	if report.PortfoliosFailed > 0 {
		return fmt.Errorf("%d portfolios failed to update", report.PortfoliosFailed)
	}
	return nil
}
