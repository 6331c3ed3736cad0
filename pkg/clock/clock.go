// Package clock provides an injectable time source so that session tracking,
// streak math and scheduler jobs can be tested against a fixed instant.
package clock

import "time"

// Clock is the time source used by components that reason about "now".
type Clock interface {
	Now() time.Time
}

// System implements Clock using the real system clock.
type System struct{}

// Now returns the current time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock pinned to a settable instant. Intended for tests.
type Fixed struct {
	t time.Time
}

// NewFixed creates a Fixed clock at the given instant.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.UTC()}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.t
}

// Set moves the pinned instant.
func (f *Fixed) Set(t time.Time) {
	f.t = t.UTC()
}

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}
