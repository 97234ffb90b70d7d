// Package scheduler provides the timer primitives the engine is built on: a
// clock abstraction that works identically under real timers or a manual test
// clock, a per-key trailing-edge debouncer, and a repeating interval.
package scheduler

import "time"

// Timer is a cancellable scheduled task handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// function from firing.
	Stop() bool
}

// Clock schedules work and tells time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

type realTimer struct {
	t *time.Timer
}

func (t realTimer) Stop() bool { return t.t.Stop() }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// Real returns the wall-clock implementation.
func Real() Clock { return realClock{} }
