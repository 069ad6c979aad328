package debugger

import (
	"sync"
	"time"
)

// Clock supplies the current time. Scoring never reads a clock; only the
// stopwatch that produces elapsed seconds does.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Stopwatch is a monotonically increasing counter that is frozen exactly once
type Stopwatch struct {
	mu      sync.Mutex
	clock   Clock
	started time.Time
	frozen  bool
	final   int
	high    int
}

// StartStopwatch starts a stopwatch at the clock's current time
func StartStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Stopwatch{clock: clock, started: clock.Now()}
}

// Elapsed returns whole seconds since start, or the frozen value once stopped
func (s *Stopwatch) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return s.final
	}
	return s.elapsedLocked()
}

// Stop freezes the stopwatch and returns the final reading. Later calls
// return the same value.
func (s *Stopwatch) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.frozen {
		s.final = s.elapsedLocked()
		s.frozen = true
	}
	return s.final
}

// Stopped reports whether the stopwatch has been frozen
func (s *Stopwatch) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

func (s *Stopwatch) elapsedLocked() int {
	secs := int(s.clock.Now().Sub(s.started) / time.Second)
	s.high = max(s.high, secs)
	return s.high
}
