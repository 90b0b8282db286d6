package market_hours

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, Location())
}

func TestCalendar_IsTradingDay(t *testing.T) {
	cal := NewCalendar()

	tests := []struct {
		name     string
		date     time.Time
		expected bool
	}{
		{"regular friday", at(2025, time.January, 17, 0, 0), true},
		{"saturday", at(2025, time.January, 18, 0, 0), false},
		{"sunday", at(2025, time.January, 19, 0, 0), false},
		{"mlk day", at(2025, time.January, 20, 0, 0), false},
		{"good friday", at(2025, time.April, 18, 0, 0), false},
		{"day after thanksgiving", at(2025, time.November, 28, 0, 0), true},
		{"observed independence day", at(2026, time.July, 3, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cal.IsTradingDay(tt.date))
		})
	}
}

func TestCalendar_PreviousTradingDay(t *testing.T) {
	cal := NewCalendar()

	// Tuesday after MLK day -> Friday before
	assert.Equal(t, "2025-01-17", FormatDate(cal.PreviousTradingDay(at(2025, time.January, 21, 9, 30))))
	// Monday after Good Friday -> Thursday
	assert.Equal(t, "2025-04-17", FormatDate(cal.PreviousTradingDay(at(2025, time.April, 21, 0, 0))))
	// Ordinary Wednesday -> Tuesday
	assert.Equal(t, "2025-03-04", FormatDate(cal.PreviousTradingDay(at(2025, time.March, 5, 0, 0))))
}

func TestCalendar_LastTradingDayOnOrBefore(t *testing.T) {
	cal := NewCalendar()

	assert.Equal(t, "2025-04-17", FormatDate(cal.LastTradingDayOnOrBefore(at(2025, time.April, 18, 0, 0))))
	assert.Equal(t, "2025-04-17", FormatDate(cal.LastTradingDayOnOrBefore(at(2025, time.April, 17, 0, 0))))
}

func TestIsExpiredAt(t *testing.T) {
	expiration := at(2025, time.January, 17, 0, 0)

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"day before", at(2025, time.January, 16, 18, 0), false},
		{"expiration morning", at(2025, time.January, 17, 9, 30), false},
		{"one minute before close", at(2025, time.January, 17, 15, 59), false},
		{"at close", at(2025, time.January, 17, 16, 0), true},
		{"evening", at(2025, time.January, 17, 20, 0), true},
		{"next day", at(2025, time.January, 18, 0, 0), true},
		// 20:30 UTC is 15:30 in New York
		{"utc clock before close", time.Date(2025, time.January, 17, 20, 30, 0, 0, time.UTC), false},
		{"utc clock after close", time.Date(2025, time.January, 17, 21, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsExpiredAt(expiration, tt.now))
		})
	}
}

func TestCalendar_TodayUsesMarketTime(t *testing.T) {
	// 02:00 UTC on the 18th is still the 17th in New York.
	clock := func() time.Time { return time.Date(2025, time.January, 18, 2, 0, 0, 0, time.UTC) }
	cal := NewCalendarWithClock(clock)

	assert.Equal(t, "2025-01-17", cal.Today())
	assert.True(t, cal.IsExpired(at(2025, time.January, 17, 0, 0)))
	assert.False(t, cal.IsExpired(at(2025, time.January, 18, 0, 0)))
}

func TestCalendar_ConcurrentHolidayLookups(t *testing.T) {
	cal := NewCalendar()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			cal.IsTradingDay(at(year, time.July, 4, 0, 0))
		}(2020 + i%5)
	}
	wg.Wait()

	assert.False(t, cal.IsTradingDay(at(2024, time.July, 4, 0, 0)))
}
