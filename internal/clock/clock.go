// Package clock is the only source of "now" for the presence core. Every
// instant it hands out is expressed in the configured civil zone.
package clock

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

// Clock returns wall-clock instants in a fixed civil zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System reads the process wall clock.
type System struct {
	loc *time.Location
}

// NewSystem loads the IANA zone and returns a wall clock bound to it.
func NewSystem(zone string) (*System, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", zone, err)
	}
	return &System{loc: loc}, nil
}

func (s *System) Now() time.Time {
	return time.Now().In(s.loc)
}

func (s *System) Location() *time.Location {
	return s.loc
}

// Fake is a manually driven clock for tests and replays.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	loc     *time.Location
}

// NewFake returns a fake clock set to start, reporting instants in start's zone.
func NewFake(start time.Time) *Fake {
	return &Fake{current: start, loc: start.Location()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) Location() *time.Location {
	return f.loc
}

// Set moves the clock to t. Moving backwards is allowed.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t.In(f.loc)
	f.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	return f.current
}
