package market_hours

import "time"

// CalculateEaster returns Western (Gregorian) Easter Sunday for a year, using the
// anonymous Gregorian computus.
func CalculateEaster(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

// CalculateGoodFriday returns the Friday before Easter Sunday.
func CalculateGoodFriday(year int, loc *time.Location) time.Time {
	return CalculateEaster(year, loc).AddDate(0, 0, -2)
}

// findNthWeekday finds the nth occurrence (1-based) of a weekday in a month.
func findNthWeekday(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	date := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	daysToAdd := int(weekday - date.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}

	return date.AddDate(0, 0, daysToAdd+(n-1)*7)
}

// findLastWeekday finds the last occurrence of a weekday in a month.
func findLastWeekday(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	date := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)

	daysToSubtract := int(date.Weekday() - weekday)
	if daysToSubtract < 0 {
		daysToSubtract += 7
	}

	return date.AddDate(0, 0, -daysToSubtract)
}

// observeOnWeekday moves a fixed-date holiday off the weekend:
// Saturday -> Friday, Sunday -> Monday.
func observeOnWeekday(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// CalculateUSHolidays returns the full-day US equity and options market holidays
// observed in a year. Juneteenth is only observed from 2022 on.
func CalculateUSHolidays(year int, loc *time.Location) []time.Time {
	fixed := func(month time.Month, day int) time.Time {
		return observeOnWeekday(time.Date(year, month, day, 0, 0, 0, 0, loc))
	}

	holidays := []time.Time{
		fixed(time.January, 1),
		findNthWeekday(year, time.January, time.Monday, 3, loc),    // Martin Luther King Jr. Day
		findNthWeekday(year, time.February, time.Monday, 3, loc),   // Presidents Day
		CalculateGoodFriday(year, loc),                             // Good Friday
		findLastWeekday(year, time.May, time.Monday, loc),          // Memorial Day
		fixed(time.July, 4),                                        // Independence Day
		findNthWeekday(year, time.September, time.Monday, 1, loc),  // Labor Day
		findNthWeekday(year, time.November, time.Thursday, 4, loc), // Thanksgiving
		fixed(time.December, 25),
	}

	if year >= 2022 {
		holidays = append(holidays, fixed(time.June, 19))
	}

	// New Year's Day on a Saturday is not moved back into the previous year.
	if holidays[0].Year() != year {
		holidays = holidays[1:]
	}

	return holidays
}
