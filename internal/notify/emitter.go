package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"flow-alerts/internal/model"
	"flow-alerts/internal/scheduler"
)

// EmitterOptions tune the notification guards.
type EmitterOptions struct {
	// Debounce collapses rapid repeat notify calls for the same alert id.
	Debounce time.Duration
	// DismissAfter auto-dismisses a shown notification.
	DismissAfter time.Duration
	// ShownResetEvery clears the rolling shown set, allowing an alert to
	// re-notify after the window rolls over.
	ShownResetEvery time.Duration
	// DeliveryTimeout bounds each Notifier call.
	DeliveryTimeout time.Duration
}

func (o *EmitterOptions) applyDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 100 * time.Millisecond
	}
	if o.DismissAfter <= 0 {
		o.DismissAfter = 8 * time.Second
	}
	if o.ShownResetEvery <= 0 {
		o.ShownResetEvery = 3 * time.Minute
	}
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = 10 * time.Second
	}
}

// Emitter presents alerts, idempotently per alert id within the rolling
// window. Two guards run in sequence: a short per-id debounce timer, then the
// shown set checked when the timer fires.
type Emitter struct {
	logger   zerolog.Logger
	clock    scheduler.Clock
	notifier Notifier
	opts     EmitterOptions

	mu       sync.Mutex
	debounce map[string]scheduler.Timer
	active   map[string]struct{}
	shown    map[string]struct{}
	sound    bool
	reset    *scheduler.Interval
}

// NewEmitter constructs an Emitter and starts the shown-set reset interval.
func NewEmitter(notifier Notifier, clock scheduler.Clock, opts EmitterOptions, logger zerolog.Logger) *Emitter {
	opts.applyDefaults()
	e := &Emitter{
		logger:   logger.With().Str("component", "emitter").Logger(),
		clock:    clock,
		notifier: notifier,
		opts:     opts,
		debounce: make(map[string]scheduler.Timer),
		active:   make(map[string]struct{}),
		shown:    make(map[string]struct{}),
	}
	e.reset = scheduler.NewInterval(clock, opts.ShownResetEvery, e.clearShown)
	return e
}

// SetSound toggles the audio cue on subsequent notifications.
func (e *Emitter) SetSound(on bool) {
	e.mu.Lock()
	e.sound = on
	e.mu.Unlock()
}

// Notify schedules presentation of an alert. Rapid repeat calls for the same
// id collapse into one delivery; an id already active or already shown in the
// current window is skipped.
func (e *Emitter) Notify(alert model.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.debounce[alert.ID]; ok {
		existing.Stop()
	}
	e.debounce[alert.ID] = e.clock.AfterFunc(e.opts.Debounce, func() {
		e.deliver(alert)
	})
}

func (e *Emitter) deliver(alert model.Alert) {
	e.mu.Lock()
	delete(e.debounce, alert.ID)

	if _, ok := e.active[alert.ID]; ok {
		e.mu.Unlock()
		return
	}
	if _, ok := e.shown[alert.ID]; ok {
		e.mu.Unlock()
		return
	}
	e.active[alert.ID] = struct{}{}
	e.shown[alert.ID] = struct{}{}
	sound := e.sound
	e.mu.Unlock()

	e.clock.AfterFunc(e.opts.DismissAfter, func() {
		e.Dismiss(alert.ID)
	})

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.DeliveryTimeout)
	defer cancel()
	if err := e.notifier.Notify(ctx, ViewOf(alert, sound)); err != nil {
		e.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to deliver notification")
	}
}

// Dismiss removes an alert from the active display set. Purely a
// presentation-state transition; the alert store is untouched.
func (e *Emitter) Dismiss(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// Active reports whether an alert is currently displayed.
func (e *Emitter) Active(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[id]
	return ok
}

func (e *Emitter) clearShown() {
	e.mu.Lock()
	e.shown = make(map[string]struct{})
	e.mu.Unlock()
}

// Close stops the reset interval and any pending debounce timers.
func (e *Emitter) Close() {
	e.reset.Stop()
	e.mu.Lock()
	for id, timer := range e.debounce {
		timer.Stop()
		delete(e.debounce, id)
	}
	e.mu.Unlock()
}
