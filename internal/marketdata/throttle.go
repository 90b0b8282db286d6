package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultCallSpacing is the minimum delay between two provider calls.
const DefaultCallSpacing = 200 * time.Millisecond

// CallObserver receives the outcome of every gateway call.
type CallObserver interface {
	ObserveGatewayCall(method, outcome string, duration time.Duration)
}

// Outcome labels reported to the CallObserver
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"
)

// Throttle wraps a Gateway so that calls are spaced by at least the configured
// delay, regardless of how many goroutines share it.
type Throttle struct {
	next     Gateway
	limiter  *rate.Limiter
	observer CallObserver
	log      zerolog.Logger
}

// NewThrottle creates a throttled gateway. spacing <= 0 uses DefaultCallSpacing.
func NewThrottle(next Gateway, spacing time.Duration, observer CallObserver, log zerolog.Logger) *Throttle {
	if spacing <= 0 {
		spacing = DefaultCallSpacing
	}
	return &Throttle{
		next:     next,
		limiter:  rate.NewLimiter(rate.Every(spacing), 1),
		observer: observer,
		log:      log.With().Str("client", "marketdata_throttle").Logger(),
	}
}

func (t *Throttle) wait(ctx context.Context, method string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", method, err)
	}
	return nil
}

func (t *Throttle) observe(method string, started time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrNoData):
		outcome = OutcomeNoData
	default:
		outcome = OutcomeError
	}

	if outcome == OutcomeError {
		t.log.Debug().Err(err).Str("method", method).Msg("Gateway call failed")
	}
	if t.observer != nil {
		t.observer.ObserveGatewayCall(method, outcome, time.Since(started))
	}
}

// GetSpreadValue implements Gateway.
func (t *Throttle) GetSpreadValue(ctx context.Context, ticker string, expiration time.Time, sellStrike, buyStrike units.Cents) (*SpreadValuation, error) {
	if err := t.wait(ctx, "spread_value"); err != nil {
		return nil, err
	}
	started := time.Now()
	v, err := t.next.GetSpreadValue(ctx, ticker, expiration, sellStrike, buyStrike)
	t.observe("spread_value", started, err)
	return v, err
}

// GetClosePrice implements Gateway.
func (t *Throttle) GetClosePrice(ctx context.Context, ticker string, date time.Time) (units.Cents, error) {
	if err := t.wait(ctx, "close_price"); err != nil {
		return 0, err
	}
	started := time.Now()
	v, err := t.next.GetClosePrice(ctx, ticker, date)
	t.observe("close_price", started, err)
	return v, err
}

// GetCurrentPrice implements Gateway.
func (t *Throttle) GetCurrentPrice(ctx context.Context, ticker string) (units.Cents, error) {
	if err := t.wait(ctx, "current_price"); err != nil {
		return 0, err
	}
	started := time.Now()
	v, err := t.next.GetCurrentPrice(ctx, ticker)
	t.observe("current_price", started, err)
	return v, err
}

// IsTradingDay implements Gateway.
func (t *Throttle) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	if err := t.wait(ctx, "trading_day"); err != nil {
		return false, err
	}
	started := time.Now()
	v, err := t.next.IsTradingDay(ctx, date)
	t.observe("trading_day", started, err)
	return v, err
}
