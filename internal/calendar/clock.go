package calendar

import "time"

// Clock answers "what calendar day is it?". Services take a Clock instead of
// calling time.Now so tests can pin today to a fixed date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock and converts it to a calendar date in Location.
// The location matters: at 23:30 in New York it is already tomorrow in UTC.
type SystemClock struct {
	Location *time.Location
}

// Today returns the current calendar date in the clock's location.
func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return Date(time.Now().In(loc))
}

// FixedClock always returns the same day.
type FixedClock struct {
	Day time.Time
}

// Today returns the pinned day.
func (c FixedClock) Today() time.Time {
	return Date(c.Day)
}

// MustParse is ParseDate for literals in tests and fixtures. It panics on bad input.
func MustParse(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}
