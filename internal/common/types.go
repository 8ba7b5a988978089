package common

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DayFormat is the canonical calendar-date layout used for attendance,
// declined days and food choices. All scheduling is anchored to a single
// fixed timezone (Asia/Tashkent), regardless of where a user actually is.
const DayFormat = "2006-01-02"

// Day is a calendar date string in YYYY-MM-DD form.
type Day string

// DayOf returns the Day for the given instant in its location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayFormat))
}

// ParseDay validates s as a YYYY-MM-DD date string.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(DayFormat, s); err != nil {
		return "", ValidationError{Field: "day", Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s)}
	}
	return Day(s), nil
}

// String returns the string representation of the Day.
func (d Day) String() string {
	return string(d)
}

// IsValid checks if the Day parses as a calendar date.
func (d Day) IsValid() bool {
	_, err := time.Parse(DayFormat, string(d))
	return err == nil
}

// Before reports whether d is strictly earlier than other.
// Lexicographic comparison is correct for the YYYY-MM-DD layout.
func (d Day) Before(other Day) bool {
	return string(d) < string(other)
}

// Weekday returns the weekday of the Day. Invalid days report Sunday,
// which the weekday-filtered jobs treat as a no-op.
func (d Day) Weekday() time.Weekday {
	t, err := time.Parse(DayFormat, string(d))
	if err != nil {
		return time.Sunday
	}
	return t.Weekday()
}

// DayList is an ordered set of Days persisted as a jsonb column.
// A day appears at most once.
type DayList []Day

// Contains reports whether day is in the list.
func (l DayList) Contains(day Day) bool {
	for _, d := range l {
		if d == day {
			return true
		}
	}
	return false
}

// Add appends day if it is not already present and returns the new list.
func (l DayList) Add(day Day) DayList {
	if l.Contains(day) {
		return l
	}
	return append(l, day)
}

// Remove returns the list without day.
func (l DayList) Remove(day Day) DayList {
	out := l[:0]
	for _, d := range l {
		if d != day {
			out = append(out, d)
		}
	}
	return out
}

// Value implements driver.Valuer for jsonb persistence.
func (l DayList) Value() (driver.Value, error) {
	if l == nil {
		l = DayList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb persistence.
func (l *DayList) Scan(src interface{}) error {
	if src == nil {
		*l = DayList{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into DayList", src)
	}
	if len(raw) == 0 {
		*l = DayList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Common error types shared across packages.

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
}

type InternalError struct {
	Message string
	Cause   error
}

func (e InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e InternalError) Unwrap() error {
	return e.Cause
}
