package scheduler

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers for the same key into one delayed
// fire. Arming a key cancels and replaces any timer already pending for that
// exact key, so only the most recently armed trigger fires ("last observation
// resets the clock"). Keys are independent of each other.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu     sync.Mutex
	timers map[string]Timer
}

// NewDebouncer constructs a Debouncer firing delay after the last Arm.
func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	return &Debouncer{
		clock:  clock,
		delay:  delay,
		timers: make(map[string]Timer),
	}
}

// Arm schedules fire for key, cancelling any pending timer for the same key.
func (d *Debouncer) Arm(key string, fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.timers[key]; ok {
		existing.Stop()
	}
	d.timers[key] = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fire()
	})
}

// Cancel stops a pending timer for key, reporting whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	timer, ok := d.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(d.timers, key)
	return true
}

// Pending returns the number of armed keys.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending timer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Interval invokes a function repeatedly on a fixed period until stopped.
type Interval struct {
	clock Clock
	every time.Duration
	f     func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

// NewInterval starts a repeating interval.
func NewInterval(clock Clock, every time.Duration, f func()) *Interval {
	iv := &Interval{clock: clock, every: every, f: f}
	iv.schedule()
	return iv
}

func (iv *Interval) schedule() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.stopped {
		return
	}
	iv.timer = iv.clock.AfterFunc(iv.every, func() {
		iv.f()
		iv.schedule()
	})
}

// Stop halts the interval.
func (iv *Interval) Stop() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.stopped = true
	if iv.timer != nil {
		iv.timer.Stop()
	}
}
