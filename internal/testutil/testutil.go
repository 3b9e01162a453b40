// Package testutil provides deterministic time and identity sources for
// tests, so version records and diffs come out byte-identical across runs.
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a thread-safe deterministic clock. Each call to Now advances by
// a fixed step so records created in sequence carry distinct, reproducible
// timestamps.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewClock creates a clock starting at a fixed instant, advancing one
// second per Now call.
func NewClock() *Clock {
	return &Clock{
		t:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		step: time.Second,
	}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// IDSequence issues sequential identifiers with a fixed prefix
// ("x-000001", "x-000002", ...). Thread-safe.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewIDSequence creates a sequence with the given prefix.
func NewIDSequence(prefix string) *IDSequence {
	return &IDSequence{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%06d", s.prefix, s.n)
}
