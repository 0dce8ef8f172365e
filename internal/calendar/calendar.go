// Package calendar holds the date arithmetic behind a 30-day tracking cycle.
//
// Every function here is pure: the caller passes both the cycle's start date
// and "today". Nothing in this package reads the wall clock except
// SystemClock, and nothing returns an error except ParseDate.
//
// CALENDAR DATES, NOT INSTANTS:
// A cycle starts on a calendar day, not at a moment in time. We represent a
// calendar day as a time.Time at midnight UTC (see Date). Because UTC has no
// daylight-saving jumps, subtracting two such values always yields an exact
// multiple of 24 hours, so the day difference is a plain division with no
// rounding question left to answer.
package calendar

import (
	"fmt"
	"math"
	"time"
)

// CycleLength is the number of day slots in every cycle.
const CycleLength = 30

// ISOLayout is the storage form of a calendar date.
const ISOLayout = "2006-01-02"

// longLayout is the display form, e.g. "January 2, 2006".
const longLayout = "January 2, 2006"

// Date strips the time-of-day from t, keeping the calendar day t falls on in
// its own location, and returns that day as midnight UTC.
//
//	Date(2024-01-01T23:30:00-05:00) → 2024-01-01T00:00:00Z
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from start to today.
//
// The difference is floored on calendar dates: a cycle started this morning
// is on day 1 for the rest of the day, no matter how many hours have passed.
// A start date in the future (clock skew, manual edits) counts as 0.
func DaysBetween(start, today time.Time) int {
	diff := Date(today).Sub(Date(start))
	if diff <= 0 {
		return 0
	}
	return int(diff / (24 * time.Hour))
}

// DayNumber is the unclamped 1-based day index: the start date is day 1.
// It keeps counting past CycleLength, which is how completion is detected.
func DayNumber(start, today time.Time) int {
	return DaysBetween(start, today) + 1
}

// CurrentDay returns the active day slot, in [1, CycleLength].
func CurrentDay(start, today time.Time) int {
	return min(DayNumber(start, today), CycleLength)
}

// RemainingDays counts the slots left including today. Never negative.
func RemainingDays(start, today time.Time) int {
	return max(CycleLength-CurrentDay(start, today)+1, 0)
}

// IsComplete reports whether today lies beyond the cycle's last slot.
//
// It compares the UNCLAMPED day number: CurrentDay can never exceed
// CycleLength, so a check against it would never fire and a cycle would
// never roll over.
func IsComplete(start, today time.Time) bool {
	return DayNumber(start, today) > CycleLength
}

// Progress is the share of the cycle already behind the user, as a whole
// percentage (0 on day 1, 97 on day 30).
func Progress(start, today time.Time) int {
	elapsed := CycleLength - RemainingDays(start, today)
	return int(math.Round(float64(elapsed) / CycleLength * 100))
}

// FormatDate renders a date for display only ("January 2, 2006").
func FormatDate(t time.Time) string {
	return Date(t).Format(longLayout)
}

// FormatISO renders a date in its storage form ("2006-01-02").
func FormatISO(t time.Time) string {
	return Date(t).Format(ISOLayout)
}

// ParseDate parses a storage-form date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: parsing date %q: %w", s, err)
	}
	return t, nil
}
