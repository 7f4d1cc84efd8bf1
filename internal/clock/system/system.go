// Package system provides the wall clock used by in-process stores.
package system

import "time"

// Clock reads time.Now in UTC.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
