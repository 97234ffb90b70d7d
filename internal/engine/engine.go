// Package engine is the aggregation and decision core. It admits parsed
// records against the user settings, dedupes them through the cache, debounces
// bursts per (symbol, expiry, side) group, and decides when a group's summed
// value crosses the alert threshold.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flow-alerts/internal/cache"
	"flow-alerts/internal/model"
	"flow-alerts/internal/scheduler"
	"flow-alerts/internal/settings"
	"flow-alerts/internal/timeparse"
)

// Admission errors. None of these is fatal to the stream; the service logs
// the drop and moves on to the next row.
var (
	ErrDisabled          = errors.New("engine: alerting disabled")
	ErrDuplicate         = errors.New("engine: duplicate record")
	ErrUnknownSide       = errors.New("engine: unknown side")
	ErrFractionalSize    = errors.New("engine: size is not a whole number")
	ErrStrikeTick        = errors.New("engine: strike off the half-point grid")
	ErrStrikeOutOfRange  = errors.New("engine: strike outside configured bounds")
	ErrExpiryOutOfRange  = errors.New("engine: expiry outside configured window")
	ErrBeforeCutoff      = errors.New("engine: record predates the initial cutoff")
	ErrResolutionPending = errors.New("engine: symbol resolution pending")
)

// Options tune the aggregator.
type Options struct {
	// DebounceDelay is the quiet period before a group is evaluated.
	DebounceDelay time.Duration
	// MinEntries is the minimum number of contributing records required to
	// admit an alert alongside the value threshold.
	MinEntries int
	// PendingTimeout bounds how long a record may wait for late symbol
	// resolution before it is dropped.
	PendingTimeout time.Duration
	// InitialCutoff discards records whose capture time is not after the
	// first time observed, suppressing the backlog present at startup.
	InitialCutoff bool
}

func (o *Options) applyDefaults() {
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = 2 * time.Second
	}
	if o.MinEntries <= 0 {
		o.MinEntries = 2
	}
	if o.PendingTimeout <= 0 {
		o.PendingTimeout = 5 * time.Second
	}
}

// Sinks carry the engine's timer callbacks back to the owning event loop so
// that every state mutation happens on one goroutine.
type Sinks struct {
	// Evaluate is invoked when a group's debounce timer fires.
	Evaluate func(key model.GroupKey)
	// ExpirePending is invoked when a parked record's retry window lapses.
	ExpirePending func(hint string)
}

type pendingRecord struct {
	rec   model.Record
	timer scheduler.Timer
}

// Engine holds the aggregation state. Not safe for concurrent use: Offer,
// Resolve, Evaluate, and the reset methods must all be called from the same
// goroutine (the service event loop).
type Engine struct {
	logger   zerolog.Logger
	clock    scheduler.Clock
	cache    *cache.Cache
	resolver *timeparse.Resolver
	deb      *scheduler.Debouncer
	opts     Options
	sinks    Sinks

	settings settings.Settings
	cutoff   *int
	pending  map[string]pendingRecord
}

// New constructs an Engine around an entry cache and expiry resolver.
func New(c *cache.Cache, resolver *timeparse.Resolver, clock scheduler.Clock, opts Options, sinks Sinks, logger zerolog.Logger) *Engine {
	opts.applyDefaults()
	return &Engine{
		logger:   logger.With().Str("component", "engine").Logger(),
		clock:    clock,
		cache:    c,
		resolver: resolver,
		deb:      scheduler.NewDebouncer(clock, opts.DebounceDelay),
		opts:     opts,
		sinks:    sinks,
		settings: settings.Defaults(),
		pending:  make(map[string]pendingRecord),
	}
}

// Restore reloads the persisted working set so dedup and shown flags survive
// a restart. With the cutoff enabled, the watermark resumes from the highest
// restored capture time; the persisted form drops capture times, so after a
// restart this floors at the session boundary and suppresses carried-over
// rows rather than the exact pre-restart backlog.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.cache.Load(ctx); err != nil {
		return err
	}
	if !e.opts.InitialCutoff {
		return nil
	}
	for _, rec := range e.cache.Snapshot() {
		if e.cutoff == nil || rec.Time > *e.cutoff {
			t := rec.Time
			e.cutoff = &t
		}
	}
	return nil
}

// ApplySettings swaps in updated user settings. The value threshold takes
// effect on the next evaluation; the admission bounds on the next Offer.
func (e *Engine) ApplySettings(s settings.Settings) {
	e.settings = s
}

// Offer runs one record through admission, caching, and debounce arming.
// A nil return means the group timer was (re)armed. ErrResolutionPending
// means the record was cached and parked awaiting symbol resolution; any
// other error means the record was dropped.
func (e *Engine) Offer(ctx context.Context, rec model.Record, hint string) error {
	if err := e.admit(rec); err != nil {
		return err
	}

	if e.opts.InitialCutoff {
		if e.cutoff == nil {
			t := rec.Time
			e.cutoff = &t
		} else if rec.Time <= *e.cutoff {
			return ErrBeforeCutoff
		}
	}

	if e.cache.Seen(rec) {
		return ErrDuplicate
	}
	e.cache.Remember(ctx, rec)
	// Passed the validation pipeline: promote in place.
	e.cache.Promote(ctx, rec.ID)
	rec.Verified = true

	if !rec.HasSymbol() {
		if hint == "" {
			return ErrResolutionPending
		}
		e.park(hint, rec)
		return ErrResolutionPending
	}

	e.arm(rec.Group())
	return nil
}

func (e *Engine) admit(rec model.Record) error {
	if !e.settings.Enabled {
		return ErrDisabled
	}
	if rec.Side == model.SideUnknown {
		return ErrUnknownSide
	}
	if !rec.Size.IsInteger() {
		return ErrFractionalSize
	}
	if !onHalfPointGrid(rec.Strike) {
		return ErrStrikeTick
	}
	if rec.Strike.LessThan(e.settings.MinStrike) || rec.Strike.GreaterThan(e.settings.MaxStrike) {
		return ErrStrikeOutOfRange
	}

	expiry, err := e.resolver.ResolveExpiry(rec.ExpiryDate)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	if expiry.Before(now) {
		return ErrExpiryOutOfRange
	}
	if expiry.Before(now.AddDate(0, 0, e.settings.MinExp)) {
		return ErrExpiryOutOfRange
	}
	if expiry.After(now.AddDate(0, 0, e.settings.MaxExp).Add(24 * time.Hour)) {
		return ErrExpiryOutOfRange
	}
	return nil
}

// onHalfPointGrid reports whether a strike sits on a whole or half point.
func onHalfPointGrid(strike decimal.Decimal) bool {
	doubled := strike.Mul(decimal.NewFromInt(2))
	return doubled.IsInteger()
}

func (e *Engine) park(hint string, rec model.Record) {
	if existing, ok := e.pending[hint]; ok {
		existing.timer.Stop()
	}
	timer := e.clock.AfterFunc(e.opts.PendingTimeout, func() {
		if e.sinks.ExpirePending != nil {
			e.sinks.ExpirePending(hint)
		}
	})
	e.pending[hint] = pendingRecord{rec: rec, timer: timer}
}

// Resolve completes a parked record's late symbol lookup, re-identifying it
// in the cache and arming its group.
func (e *Engine) Resolve(ctx context.Context, hint, symbol string) bool {
	parked, ok := e.pending[hint]
	if !ok {
		return false
	}
	parked.timer.Stop()
	delete(e.pending, hint)

	oldID := parked.rec.ID
	parked.rec.Symbol = symbol
	parked.rec.ID = parked.rec.ComputeID()
	if !e.cache.Replace(ctx, oldID, parked.rec) {
		// Cache reset while parked; re-admit from scratch.
		e.cache.Remember(ctx, parked.rec)
		e.cache.Promote(ctx, parked.rec.ID)
	}

	e.arm(parked.rec.Group())
	return true
}

// ExpirePending drops a parked record whose symbol never resolved.
func (e *Engine) ExpirePending(hint string) bool {
	parked, ok := e.pending[hint]
	if !ok {
		return false
	}
	parked.timer.Stop()
	delete(e.pending, hint)
	e.logger.Debug().Str("hint", hint).Str("record_id", parked.rec.ID).Msg("dropping record: symbol never resolved")
	return true
}

// PendingCount returns the number of parked records.
func (e *Engine) PendingCount() int {
	return len(e.pending)
}

func (e *Engine) arm(key model.GroupKey) {
	e.deb.Arm(key.String(), func() {
		if e.sinks.Evaluate != nil {
			e.sinks.Evaluate(key)
		}
	})
}

// Evaluate recomputes one group after its debounce timer fired. It re-reads
// the cache, keeps verified records only, dedupes by record id (last write
// wins), and matches the exact (symbol, expiry, side) triple among records
// not yet shown in an alert. When the summed value exceeds the threshold and
// the matching set meets the minimum size, every matching record is marked
// shown, written back at its original slot, and the set is returned for
// upsert. A later burst for the same group can fire again on fresh records.
func (e *Engine) Evaluate(ctx context.Context, key model.GroupKey) ([]model.Record, decimal.Decimal, bool) {
	if key.Symbol == model.SymbolUnknown {
		return nil, decimal.Decimal{}, false
	}

	latest := make(map[string]model.Record)
	order := make([]string, 0)
	for _, rec := range e.cache.Snapshot() {
		if !rec.Verified {
			continue
		}
		if _, ok := latest[rec.ID]; !ok {
			order = append(order, rec.ID)
		}
		latest[rec.ID] = rec
	}

	matching := make([]model.Record, 0)
	total := decimal.Decimal{}
	for _, id := range order {
		rec := latest[id]
		if rec.Symbol != key.Symbol || rec.ExpiryDate != key.ExpiryDate || rec.Side != key.Side {
			continue
		}
		if rec.ShownInAlert {
			continue
		}
		matching = append(matching, rec)
		total = total.Add(rec.TotalValue)
	}

	if !total.GreaterThan(e.settings.ValueThreshold) || len(matching) < e.opts.MinEntries {
		return nil, total, false
	}

	for i := range matching {
		matching[i].ShownInAlert = true
		e.cache.Update(ctx, matching[i])
	}

	e.logger.Info().
		Str("symbol", key.Symbol).
		Str("expiry", key.ExpiryDate).
		Str("side", string(key.Side)).
		Str("total_value", total.String()).
		Int("entries", len(matching)).
		Msg("threshold crossed")
	return matching, total, true
}

// ResetCache drops the rolling working set.
func (e *Engine) ResetCache(ctx context.Context) {
	e.cache.ResetAll(ctx)
}

// Reset tears down timers and transient state for shutdown or test isolation.
func (e *Engine) Reset() {
	e.deb.Stop()
	for hint, parked := range e.pending {
		parked.timer.Stop()
		delete(e.pending, hint)
	}
	e.cutoff = nil
}
