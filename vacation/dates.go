package vacation

import (
	"math"
	"time"
)

// =============================================================================
// CALENDAR DATES - Day granularity, UTC
// =============================================================================

const DateLayout = "2006-01-02"

// NewDate returns midnight UTC of the given calendar day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DateOf drops the clock part, keeping the calendar day as seen in t's location.
func DateOf(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// YearEnd returns December 31 of year.
func YearEnd(year int) time.Time { return NewDate(year, time.December, 31) }

// DaysBetween returns the number of whole calendar days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	d := DateOf(b).Sub(DateOf(a))
	return int(math.Ceil(d.Hours() / 24))
}

// InclusiveDayCount counts both endpoints: (d, d) is 1, (d, d+6) is 7.
// Returns zero or less when end is before start.
func InclusiveDayCount(start, end time.Time) int {
	return DaysBetween(start, end) + 1
}
