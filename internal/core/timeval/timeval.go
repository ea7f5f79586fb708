// Package timeval holds the wall-clock value helpers shared by the
// attendance state machine and the correction workflow: parsing "HH:MM"
// input, anchoring a time-of-day to a work date, and minute arithmetic.
package timeval

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrInvalidFormat is returned when input does not parse as "HH:MM".
var ErrInvalidFormat = errors.New("invalid time format, expected HH:MM")

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// TimeOfDay is a wall-clock time with minute precision, detached from any
// calendar day. The zero value is midnight.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseClock parses user input of the form "HH:MM" (hour may be a single
// digit). Out-of-range hours or minutes are rejected, never wrapped.
func ParseClock(s string) (TimeOfDay, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, ErrInvalidFormat
	}

	var h, min int
	fmt.Sscanf(m[1], "%d", &h)
	fmt.Sscanf(m[2], "%d", &min)

	if h > 23 || min > 59 {
		return TimeOfDay{}, ErrInvalidFormat
	}

	return TimeOfDay{Hour: h, Minute: min}, nil
}

// String renders the value back in the "HH:MM" input format, zero-padded.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON encodes the value as its "HH:MM" string form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts the same "HH:MM" form ParseClock does.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidFormat
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Minutes returns the offset from midnight in minutes, used for ordering
// comparisons between two times of day.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// After reports whether t is strictly later in the day than other.
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.Minutes() > other.Minutes()
}

// Combine anchors a time-of-day to the calendar day of date, in date's
// location. The record's work date carries the system reference location,
// so all combined instants land on one canonical day.
func Combine(date time.Time, t TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// MinutesBetween returns b minus a in whole minutes. It does not clamp;
// a negative result means the caller passed a reversed interval and must
// treat that as an error upstream.
func MinutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// FormatHHMM renders a minute total for display, e.g. 485 -> "8:05".
// Hours are unpadded, minutes are zero-padded, matching the display
// convention used across the system.
func FormatHHMM(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
