package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual clock for tests. Time only moves when Advance is
// called; due timer functions run synchronously on the advancing goroutine in
// (deadline, arming order) sequence.
type Manual struct {
	mu        sync.Mutex
	now       time.Time
	seq       int
	scheduled []*manualTimer
}

type manualTimer struct {
	clock   *Manual
	at      time.Time
	seq     int
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManual constructs a manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc implements Clock.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	timer := &manualTimer{clock: m, at: m.now.Add(d), seq: m.seq, f: f}
	m.scheduled = append(m.scheduled, timer)
	return timer
}

// Advance moves the clock forward by d, firing due timers in order. Timer
// functions may arm further timers; those fire too when they fall inside the
// advanced window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		timer := m.popDue(target)
		if timer == nil {
			break
		}
		timer.f()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

func (m *Manual) popDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.scheduled[:0]
	for _, t := range m.scheduled {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.scheduled = live

	sort.SliceStable(m.scheduled, func(i, j int) bool {
		if m.scheduled[i].at.Equal(m.scheduled[j].at) {
			return m.scheduled[i].seq < m.scheduled[j].seq
		}
		return m.scheduled[i].at.Before(m.scheduled[j].at)
	})

	if len(m.scheduled) == 0 || m.scheduled[0].at.After(target) {
		return nil
	}

	timer := m.scheduled[0]
	m.scheduled = m.scheduled[1:]
	timer.stopped = true
	if timer.at.After(m.now) {
		m.now = timer.at
	}
	return timer
}
