// Package clock abstracts the current time so that sell windows and
// vote eligibility can be tested at exact boundaries. Production code
// uses Real(); tests use NewFake with a fixed instant.
package clock

import (
	"sync"
	"time"
)

// JST is the festival's timezone. Every persisted timestamp carries its
// +09:00 offset explicitly.
var JST = time.FixedZone("JST", 9*60*60)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().In(JST) }

// Real returns a Clock backed by the system time, expressed in JST.
func Real() Clock { return realClock{} }

// Fake is a manually controlled Clock. It is safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake frozen at t.
func NewFake(t time.Time) *Fake { return &Fake{now: t} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Format renders t as ISO-8601 with the JST offset, the storage format
// for event and ticket timestamps.
func Format(t time.Time) string {
	return t.In(JST).Format(time.RFC3339Nano)
}

// Parse reads a stored ISO-8601 timestamp. The offset in the string is
// authoritative; the result is normalized to JST.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(JST), nil
}
