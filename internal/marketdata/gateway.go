// Package marketdata defines the market data gateway the portfolio engine values
// positions against, and the rate limiting every gateway call goes through.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/spreadbook/internal/units"
)

// ErrNoData is returned when the provider has no usable value for a request.
// Callers treat it as "keep the last known value".
var ErrNoData = errors.New("market data unavailable")

// SpreadValuation is the cost to close one vertical put spread contract.
type SpreadValuation struct {
	SpreadValue     units.Cents // (sell mid - buy mid) x 100, per contract
	UnderlyingPrice units.Cents
}

// Gateway is the market data provider contract.
type Gateway interface {
	// GetSpreadValue values a put credit spread at current mids.
	GetSpreadValue(ctx context.Context, ticker string, expiration time.Time, sellStrike, buyStrike units.Cents) (*SpreadValuation, error)
	// GetClosePrice returns the underlying's official close on date.
	GetClosePrice(ctx context.Context, ticker string, date time.Time) (units.Cents, error)
	// GetCurrentPrice returns the underlying's latest trade or quote.
	GetCurrentPrice(ctx context.Context, ticker string) (units.Cents, error)
	// IsTradingDay reports whether the exchange is open on date.
	IsTradingDay(ctx context.Context, date time.Time) (bool, error)
}

// IsNoData reports whether err means the provider had nothing to return.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
