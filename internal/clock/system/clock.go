// Package system provides the real clock behind export filenames and run
// events. Tests substitute a fixed courts.Clock instead.
package system

import "time"

// Clock implements courts.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC so artifact names and published
// timestamps sort consistently regardless of the host timezone.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
