package marketdata

import (
	"context"
	"time"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/units"
)

// Offline is a Gateway with no provider behind it. Price lookups return ErrNoData,
// so positions keep their last known values and expirations settle from stored
// prices. Trading days come from the local exchange calendar.
type Offline struct {
	calendar *market_hours.Calendar
}

// NewOffline creates an offline gateway.
func NewOffline(calendar *market_hours.Calendar) *Offline {
	return &Offline{calendar: calendar}
}

// GetSpreadValue implements Gateway.
func (o *Offline) GetSpreadValue(ctx context.Context, ticker string, expiration time.Time, sellStrike, buyStrike units.Cents) (*SpreadValuation, error) {
	return nil, ErrNoData
}

// GetClosePrice implements Gateway.
func (o *Offline) GetClosePrice(ctx context.Context, ticker string, date time.Time) (units.Cents, error) {
	return 0, ErrNoData
}

// GetCurrentPrice implements Gateway.
func (o *Offline) GetCurrentPrice(ctx context.Context, ticker string) (units.Cents, error) {
	return 0, ErrNoData
}

// IsTradingDay implements Gateway.
func (o *Offline) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	return o.calendar.IsTradingDay(date), nil
}
