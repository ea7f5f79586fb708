package core

import "time"

// Clock supplies the current time to the state machine, injected so tests
// can script multi-step punch sequences deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewSystemClock returns a Clock reading real time in the given reference
// location.
func NewSystemClock(loc *time.Location) Clock {
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// WorkDate truncates an instant to midnight of its calendar day, preserving
// the location. All records for that day share this value.
func WorkDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
