// Package market_hours provides the US options market calendar used by spreadbook:
// date parsing for screener and provider formats, trading-day and holiday logic,
// and the expiration cut-off evaluated in market time.
package market_hours

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical persisted date format.
const DateFormat = "2006-01-02"

// MarketTimezone is the zone every expiration and snapshot date is evaluated in.
const MarketTimezone = "America/New_York"

// marketLocation is loaded once; a missing tzdata is a deployment error.
var marketLocation = mustLoadLocation(MarketTimezone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("failed to load timezone %s: %v", name, err))
	}
	return loc
}

// Location returns the market time zone.
func Location() *time.Location {
	return marketLocation
}

// dateLayouts lists the formats seen from the screener and data providers.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 02, 2006",
	"20060102",
}

// ParseDate parses a date in any supported layout and returns midnight of that
// calendar date in market time. The calendar date is taken as written, zone
// included, so the ISO expiration "2025-01-17T00:00:00.000Z" is the 17th.
func ParseDate(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, value)
			if err == nil {
				t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, marketLocation)
			}
		} else {
			t, err = time.ParseInLocation(layout, value, marketLocation)
		}
		if err == nil {
			return StartOfDay(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

// MustParseDate is like ParseDate but panics on error. Intended for tests and constants.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// NormalizeDate parses s and re-formats it as YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// FormatDate formats t's calendar date in market time.
func FormatDate(t time.Time) string {
	return t.In(marketLocation).Format(DateFormat)
}

// StartOfDay returns midnight market time of the calendar date t falls on in market time.
func StartOfDay(t time.Time) time.Time {
	m := t.In(marketLocation)
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, marketLocation)
}
