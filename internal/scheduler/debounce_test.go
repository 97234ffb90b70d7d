package scheduler

import (
	"testing"
	"time"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))
	deb := NewDebouncer(clock, 2*time.Second)

	fired := 0
	for i := 0; i < 10; i++ {
		deb.Arm("SPY|17 Apr|call", func() { fired++ })
		clock.Advance(100 * time.Millisecond)
	}

	if fired != 0 {
		t.Fatalf("timer fired during burst: %d", fired)
	}

	clock.Advance(2 * time.Second)
	if fired != 1 {
		t.Fatalf("burst must collapse to one fire, got %d", fired)
	}
	if deb.Pending() != 0 {
		t.Fatalf("pending = %d after fire", deb.Pending())
	}
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))
	deb := NewDebouncer(clock, time.Second)

	var order []string
	deb.Arm("a", func() { order = append(order, "a") })
	clock.Advance(500 * time.Millisecond)
	deb.Arm("b", func() { order = append(order, "b") })

	clock.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected fire order: %v", order)
	}
}

func TestDebouncerCancel(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))
	deb := NewDebouncer(clock, time.Second)

	fired := false
	deb.Arm("a", func() { fired = true })
	if !deb.Cancel("a") {
		t.Fatal("cancel should report an armed key")
	}
	clock.Advance(5 * time.Second)
	if fired {
		t.Fatal("cancelled timer fired")
	}
	if deb.Cancel("a") {
		t.Fatal("second cancel should report nothing pending")
	}
}

func TestIntervalRepeats(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))

	ticks := 0
	iv := NewInterval(clock, time.Minute, func() { ticks++ })
	defer iv.Stop()

	clock.Advance(3*time.Minute + time.Second)
	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}

	iv.Stop()
	clock.Advance(10 * time.Minute)
	if ticks != 3 {
		t.Fatalf("interval kept firing after Stop: %d", ticks)
	}
}

func TestManualAdvanceRunsNestedTimers(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))

	var order []int
	clock.AfterFunc(time.Second, func() {
		order = append(order, 1)
		clock.AfterFunc(time.Second, func() { order = append(order, 2) })
	})

	clock.Advance(3 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("nested timers did not fire in order: %v", order)
	}
}
