// Package clock abstracts time and identifier generation so that date
// calculations and ticket identifiers are deterministic under test.
// Production code injects Real() and UUIDs(); tests inject Fake() and
// Sequence().
package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

// FakeClock is a deterministic Clock. Time stands still until Advance
// or Set is called. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock initialized to the given time.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// IDSource allocates unique identifiers.
type IDSource interface {
	NewID() string
}

type uuidSource struct{}

// UUIDs returns an IDSource producing random v4 UUIDs.
func UUIDs() IDSource { return uuidSource{} }

func (uuidSource) NewID() string { return uuid.NewString() }

// SequenceSource yields prefix-1, prefix-2, ...
type SequenceSource struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// Sequence returns an IDSource producing predictable identifiers.
func Sequence(prefix string) *SequenceSource {
	return &SequenceSource{prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (s *SequenceSource) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s-%d", s.prefix, s.next)
}
