// Package clock provides the time and identifier sources used by the
// session: a wall clock for trash and provenance timestamps, a monotonic
// sequence for ordering entries that share a timestamp, and UUIDv7
// identifiers for provenance entries.
//
// Core packages never call time.Now directly. Tests inject a fixed clock
// from internal/testutil so that trash retention and provenance output
// are deterministic.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock. Times are returned in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Sequence is a monotonic counter. Provenance entries are stamped with
// its value so entries recorded within the same clock tick keep a total
// order.
//
// Sequence is safe for concurrent use, although the session only calls
// it from a single goroutine.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence starting at a specific value.
// Used after importing a provenance log to continue its numbering.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next increments the sequence and returns the new value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}

// Advance moves the sequence forward to at least v. It never moves
// backwards.
func (s *Sequence) Advance(v int64) {
	for {
		cur := s.seq.Load()
		if v <= cur || s.seq.CompareAndSwap(cur, v) {
			return
		}
	}
}
