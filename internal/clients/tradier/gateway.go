package tradier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/spreadbook/internal/clientdata"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/units"
)

// GetQuote returns the latest quote for an equity symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	quote, err := cached(ctx, c, clientdata.KindQuote, symbol, clientdata.TTLQuote, func() (Quote, error) {
		var resp quotesResponse
		params := url.Values{"symbols": {symbol}, "greeks": {"false"}}
		if err := c.get(ctx, "/v1/markets/quotes", params, &resp); err != nil {
			return Quote{}, err
		}
		if resp.Quotes.Value == nil {
			return Quote{}, marketdata.ErrNoData
		}
		for _, q := range resp.Quotes.Value.Quote {
			if strings.EqualFold(q.Symbol, symbol) {
				return q, nil
			}
		}
		return Quote{}, marketdata.ErrNoData
	})
	if err != nil {
		return nil, err
	}

	return &quote, nil
}

// GetPutChain returns the put contracts for symbol expiring on expiration.
func (c *Client) GetPutChain(ctx context.Context, symbol string, expiration time.Time) ([]OptionQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	expiry := market_hours.FormatDate(expiration)

	return cached(ctx, c, clientdata.KindChain, symbol+":"+expiry, clientdata.TTLChain, func() ([]OptionQuote, error) {
		var resp chainResponse
		params := url.Values{"symbol": {symbol}, "expiration": {expiry}, "greeks": {"false"}}
		if err := c.get(ctx, "/v1/markets/options/chains", params, &resp); err != nil {
			return nil, err
		}
		if resp.Options.Value == nil {
			return nil, marketdata.ErrNoData
		}

		puts := make([]OptionQuote, 0, len(resp.Options.Value.Option))
		for _, o := range resp.Options.Value.Option {
			if strings.EqualFold(o.OptionType, "put") {
				puts = append(puts, o)
			}
		}
		if len(puts) == 0 {
			return nil, marketdata.ErrNoData
		}
		return puts, nil
	})
}

// GetDailyBar returns the daily bar for symbol on date.
func (c *Client) GetDailyBar(ctx context.Context, symbol string, date time.Time) (*HistoryDay, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	day := market_hours.FormatDate(date)

	// Bars for today are still forming.
	ttl := clientdata.TTLHistory
	if day >= c.calendar.Today() {
		ttl = clientdata.TTLQuote
	}

	bar, err := cached(ctx, c, clientdata.KindHistory, symbol+":"+day, ttl, func() (HistoryDay, error) {
		var resp historyResponse
		params := url.Values{"symbol": {symbol}, "interval": {"daily"}, "start": {day}, "end": {day}}
		if err := c.get(ctx, "/v1/markets/history", params, &resp); err != nil {
			return HistoryDay{}, err
		}
		if resp.History.Value == nil {
			return HistoryDay{}, marketdata.ErrNoData
		}
		for _, d := range resp.History.Value.Day {
			if d.Date == day && d.Close > 0 {
				return d, nil
			}
		}
		return HistoryDay{}, marketdata.ErrNoData
	})
	if err != nil {
		return nil, err
	}

	return &bar, nil
}

// GetCalendarMonth returns the exchange calendar for a month.
func (c *Client) GetCalendarMonth(ctx context.Context, year int, month time.Month) ([]CalendarDay, error) {
	key := fmt.Sprintf("%04d-%02d", year, int(month))

	return cached(ctx, c, clientdata.KindCalendar, key, clientdata.TTLCalendar, func() ([]CalendarDay, error) {
		var resp calendarResponse
		params := url.Values{"year": {fmt.Sprintf("%d", year)}, "month": {fmt.Sprintf("%02d", int(month))}}
		if err := c.get(ctx, "/v1/markets/calendar", params, &resp); err != nil {
			return nil, err
		}
		if resp.Calendar.Days.Value == nil || len(resp.Calendar.Days.Value.Day) == 0 {
			return nil, marketdata.ErrNoData
		}
		return resp.Calendar.Days.Value.Day, nil
	})
}

// GetSpreadValue implements marketdata.Gateway. The value is the cost to close one
// contract at mid prices, bounded to [0, spread width].
func (c *Client) GetSpreadValue(ctx context.Context, ticker string, expiration time.Time, sellStrike, buyStrike units.Cents) (*marketdata.SpreadValuation, error) {
	puts, err := c.GetPutChain(ctx, ticker, expiration)
	if err != nil {
		return nil, err
	}

	sellLeg, ok := findStrike(puts, sellStrike)
	if !ok {
		return nil, fmt.Errorf("sell strike %s not in chain: %w", sellStrike, marketdata.ErrNoData)
	}
	buyLeg, ok := findStrike(puts, buyStrike)
	if !ok {
		return nil, fmt.Errorf("buy strike %s not in chain: %w", buyStrike, marketdata.ErrNoData)
	}

	sellMid, okSell := mid(sellLeg.Bid, sellLeg.Ask, sellLeg.Last)
	buyMid, okBuy := mid(buyLeg.Bid, buyLeg.Ask, buyLeg.Last)
	if !okSell || !okBuy {
		return nil, fmt.Errorf("no two-sided market for %s spread: %w", ticker, marketdata.ErrNoData)
	}

	underlying, err := c.GetCurrentPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}

	raw := units.PerShareToContractCents(sellMid - buyMid)
	width := (sellStrike - buyStrike).Times(units.SharesPerContract)
	value := min(max(raw, 0), width)
	if value != raw {
		c.log.Debug().
			Str("ticker", ticker).
			Int64("raw_cents", int64(raw)).
			Int64("width_cents", int64(width)).
			Msg("Spread value outside [0, width], clamped")
	}

	return &marketdata.SpreadValuation{
		SpreadValue:     value,
		UnderlyingPrice: underlying,
	}, nil
}

// GetClosePrice implements marketdata.Gateway.
func (c *Client) GetClosePrice(ctx context.Context, ticker string, date time.Time) (units.Cents, error) {
	bar, err := c.GetDailyBar(ctx, ticker, date)
	if err != nil {
		return 0, err
	}
	return units.ToCents(bar.Close), nil
}

// GetCurrentPrice implements marketdata.Gateway: last trade, then mid, then close.
func (c *Client) GetCurrentPrice(ctx context.Context, ticker string) (units.Cents, error) {
	q, err := c.GetQuote(ctx, ticker)
	if err != nil {
		return 0, err
	}

	switch {
	case q.Last > 0:
		return units.ToCents(q.Last), nil
	case q.Bid > 0 && q.Ask > 0:
		return units.ToCents((q.Bid + q.Ask) / 2), nil
	case q.Close > 0:
		return units.ToCents(q.Close), nil
	case q.PrevClose > 0:
		return units.ToCents(q.PrevClose), nil
	}
	return 0, marketdata.ErrNoData
}

// IsTradingDay implements marketdata.Gateway. When the calendar endpoint fails or
// does not list the date, the local holiday calendar answers instead.
func (c *Client) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	day := market_hours.StartOfDay(date)
	key := market_hours.FormatDate(day)

	days, err := c.GetCalendarMonth(ctx, day.Year(), day.Month())
	if err == nil {
		for _, d := range days {
			if d.Date == key {
				return strings.EqualFold(d.Status, "open"), nil
			}
		}
	} else {
		c.log.Warn().Err(err).Str("date", key).Msg("Calendar lookup failed, using local holiday calendar")
	}

	return c.calendar.IsTradingDay(day), nil
}

func findStrike(chain []OptionQuote, strike units.Cents) (OptionQuote, bool) {
	for _, o := range chain {
		if units.ToCents(o.Strike) == strike {
			return o, true
		}
	}
	return OptionQuote{}, false
}
