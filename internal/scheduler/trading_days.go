package scheduler

import (
	"context"
	"time"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

// TradingDayChecker answers whether the exchange is open on a date.
// marketdata.Gateway satisfies it.
type TradingDayChecker interface {
	IsTradingDay(ctx context.Context, date time.Time) (bool, error)
}

// tradingDayTimeout bounds the calendar lookup done before a job starts.
const tradingDayTimeout = 30 * time.Second

// isTradingDay asks days first and falls back to the local holiday calendar
// when the lookup fails or no checker is configured.
func isTradingDay(days TradingDayChecker, calendar *market_hours.Calendar, now time.Time, log zerolog.Logger) bool {
	if days == nil {
		return calendar.IsTradingDay(now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), tradingDayTimeout)
	defer cancel()

	open, err := days.IsTradingDay(ctx, now)
	if err != nil {
		log.Warn().Err(err).Str("date", market_hours.FormatDate(now)).Msg("Trading day lookup failed, using local holiday calendar")
		return calendar.IsTradingDay(now)
	}
	return open
}
