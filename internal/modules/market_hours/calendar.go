package market_hours

import (
	"sync"
	"time"
)

// Regular session close; options stop trading and expire at this time on their
// expiration date.
const (
	CloseHour   = 16
	CloseMinute = 0
)

// Calendar answers trading-day and expiration questions in market time.
type Calendar struct {
	mu           sync.Mutex
	holidayCache map[int]map[string]bool // year -> YYYY-MM-DD set
	now          func() time.Time
}

// NewCalendar creates a calendar using the wall clock.
func NewCalendar() *Calendar {
	return NewCalendarWithClock(time.Now)
}

// NewCalendarWithClock creates a calendar with an injected clock.
func NewCalendarWithClock(now func() time.Time) *Calendar {
	return &Calendar{
		holidayCache: make(map[int]map[string]bool),
		now:          now,
	}
}

// Now returns the current instant in market time.
func (c *Calendar) Now() time.Time {
	return c.now().In(marketLocation)
}

// Today returns today's date in market time as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return FormatDate(c.now())
}

// IsHoliday reports whether the market-time calendar date of t is a full-day holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	day := StartOfDay(t)
	return c.holidaysFor(day.Year())[day.Format(DateFormat)]
}

// IsTradingDay reports whether the market is scheduled to open on t's date.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	day := StartOfDay(t)
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(day)
}

// PreviousTradingDay returns the closest trading day strictly before t's date.
func (c *Calendar) PreviousTradingDay(t time.Time) time.Time {
	day := StartOfDay(t).AddDate(0, 0, -1)
	for !c.IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// LastTradingDayOnOrBefore returns t's date if it is a trading day, otherwise the
// closest earlier one. Expirations scheduled on a holiday settle on this day.
func (c *Calendar) LastTradingDayOnOrBefore(t time.Time) time.Time {
	day := StartOfDay(t)
	if c.IsTradingDay(day) {
		return day
	}
	return c.PreviousTradingDay(day)
}

// ExpirationCutoff returns the instant an option expiring on expiration's date stops
// trading: the regular close on that date in market time.
func ExpirationCutoff(expiration time.Time) time.Time {
	day := StartOfDay(expiration)
	return time.Date(day.Year(), day.Month(), day.Day(), CloseHour, CloseMinute, 0, 0, marketLocation)
}

// IsExpired reports whether an option expiring on expiration's date has expired as of
// the calendar's clock.
func (c *Calendar) IsExpired(expiration time.Time) bool {
	return IsExpiredAt(expiration, c.now())
}

// IsExpiredAt reports whether an option expiring on expiration's date has expired at now.
func IsExpiredAt(expiration, now time.Time) bool {
	return !now.Before(ExpirationCutoff(expiration))
}

func (c *Calendar) holidaysFor(year int) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.holidayCache[year]; ok {
		return set
	}

	set := make(map[string]bool)
	for _, h := range CalculateUSHolidays(year, marketLocation) {
		set[h.Format(DateFormat)] = true
	}
	c.holidayCache[year] = set
	return set
}
