package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/calendar"
)

// Field names one of the four free-text columns of a day slot.
type Field string

const (
	FieldMorning       Field = "morning"
	FieldNoon          Field = "noon"
	FieldEvening       Field = "evening"
	FieldTotalCalories Field = "totalCalories"
)

// Fields lists every field in display order.
var Fields = []Field{FieldMorning, FieldNoon, FieldEvening, FieldTotalCalories}

// ParseField accepts the API name of a field. "total_calories" is accepted as
// an alias so clients that speak the storage naming also work.
func ParseField(s string) (Field, error) {
	switch strings.TrimSpace(s) {
	case "morning":
		return FieldMorning, nil
	case "noon":
		return FieldNoon, nil
	case "evening":
		return FieldEvening, nil
	case "totalCalories", "total_calories":
		return FieldTotalCalories, nil
	}
	return "", apperror.ValidationFailed("field",
		fmt.Sprintf("unknown field %q: must be one of morning, noon, evening, totalCalories", s))
}

// Column returns the storage column name for the field.
func (f Field) Column() string {
	if f == FieldTotalCalories {
		return "total_calories"
	}
	return string(f)
}

// DayEntry is one day slot. The fields are opaque text: TotalCalories is
// whatever the user typed and is never parsed or summed.
type DayEntry struct {
	Morning       string `json:"morning"`
	Noon          string `json:"noon"`
	Evening       string `json:"evening"`
	TotalCalories string `json:"totalCalories"`
}

// Get returns the value of one field.
func (e DayEntry) Get(f Field) string {
	switch f {
	case FieldMorning:
		return e.Morning
	case FieldNoon:
		return e.Noon
	case FieldEvening:
		return e.Evening
	case FieldTotalCalories:
		return e.TotalCalories
	}
	return ""
}

// Set assigns one field. Unknown fields are ignored; callers validate with ParseField first.
func (e *DayEntry) Set(f Field, value string) {
	switch f {
	case FieldMorning:
		e.Morning = value
	case FieldNoon:
		e.Noon = value
	case FieldEvening:
		e.Evening = value
	case FieldTotalCalories:
		e.TotalCalories = value
	}
}

// IsEmpty reports whether all four fields are blank.
func (e DayEntry) IsEmpty() bool {
	return e == DayEntry{}
}

// TrackingData holds the day slots of one cycle.
//
// FIXED-SIZE ARRAY:
// An array (not a slice or a map) makes "a cycle always has exactly 30 slots"
// a property of the type. There is no way to build a TrackingData with 29 or
// 31 entries, and copying a Cycle copies its slots by value.
//
// Day numbers are 1-based everywhere outside this type; Entry translates them
// to 0-based indices.
type TrackingData [calendar.CycleLength]DayEntry

// NewTrackingData returns a full set of empty slots.
func NewTrackingData() TrackingData {
	return TrackingData{}
}

// ValidateDay checks that day is a slot number.
func ValidateDay(day int) error {
	if day < 1 || day > calendar.CycleLength {
		return apperror.ValidationFailed("day",
			fmt.Sprintf("day must be between 1 and %d, got %d", calendar.CycleLength, day))
	}
	return nil
}

// Entry returns a pointer to the slot for a 1-based day number.
func (t *TrackingData) Entry(day int) (*DayEntry, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}
	return &t[day-1], nil
}

// Cycle is one 30-day tracking period of a user.
//
// Number and StartDate are fixed at creation. Only Days changes afterwards,
// one field of one slot at a time.
type Cycle struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Number    int          `json:"cycleNumber"`
	StartDate time.Time    `json:"-"`
	Days      TrackingData `json:"-"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NewCycle builds an unsaved cycle with empty slots. StartDate is truncated
// to its calendar date.
func NewCycle(userID string, number int, startDate time.Time) *Cycle {
	return &Cycle{
		UserID:    userID,
		Number:    number,
		StartDate: calendar.Date(startDate),
		Days:      NewTrackingData(),
	}
}
