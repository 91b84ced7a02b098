package services

import (
	"time"

	"github.com/trckr/apiserver/types"
)

// Clock decides what "now" and "today" are for date validation and progress.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

// NewClock returns a wall clock in loc. A nil loc means UTC.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Location: loc, Now: time.Now}
}

// Today returns the current calendar day in the clock's zone.
func (c Clock) Today() types.Date {
	return types.DateOf(c.now(), c.location())
}

// ParseDate parses a calendar day, converting timestamps into the clock's zone.
func (c Clock) ParseDate(value string) (types.Date, error) {
	return types.ParseDate(value, c.location())
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
