// Package service owns the processing loop. All engine, cache, and alert
// store mutations happen on the single Run goroutine; timers and external
// callers feed it through an ordered event queue, which is what makes the
// single-threaded core safe.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"flow-alerts/internal/alertstore"
	"flow-alerts/internal/engine"
	"flow-alerts/internal/feed"
	"flow-alerts/internal/model"
	"flow-alerts/internal/notify"
	"flow-alerts/internal/parser"
	"flow-alerts/internal/scheduler"
	"flow-alerts/internal/settings"
	"flow-alerts/internal/storage"
	"flow-alerts/internal/timeparse"
)

type event interface{ isEvent() }

type evaluateEvent struct{ key model.GroupKey }
type pendingExpireEvent struct{ hint string }
type cacheResetEvent struct{}
type settingsEvent struct{ s settings.Settings }

func (evaluateEvent) isEvent()      {}
func (pendingExpireEvent) isEvent() {}
func (cacheResetEvent) isEvent()    {}
func (settingsEvent) isEvent()      {}

// Options tune the service loop.
type Options struct {
	// CacheResetEvery is the period of the full entry-cache reset;
	// defaults to 4 minutes.
	CacheResetEvery time.Duration
	// QueueDepth bounds the internal event queue; defaults to 256.
	QueueDepth int
}

func (o *Options) applyDefaults() {
	if o.CacheResetEvery <= 0 {
		o.CacheResetEvery = 4 * time.Minute
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 256
	}
}

// Service wires the feed, engine, alert store, and emitter together.
type Service struct {
	logger  zerolog.Logger
	clock   scheduler.Clock
	source  feed.Source
	engine  *engine.Engine
	alerts  *alertstore.Store
	emitter *notify.Emitter
	kv      storage.KV
	opts    Options

	events chan event
}

// New constructs the service without its engine: build the engine with the
// sinks from Sinks, then attach it with Bind before calling Run.
func New(source feed.Source, alerts *alertstore.Store, emitter *notify.Emitter, kv storage.KV, clock scheduler.Clock, opts Options, logger zerolog.Logger) *Service {
	opts.applyDefaults()
	return &Service{
		logger:  logger.With().Str("component", "service").Logger(),
		clock:   clock,
		source:  source,
		alerts:  alerts,
		emitter: emitter,
		kv:      kv,
		opts:    opts,
		events:  make(chan event, opts.QueueDepth),
	}
}

// Bind attaches the engine. Must be called before Run.
func (s *Service) Bind(eng *engine.Engine) {
	s.engine = eng
}

// Sinks returns the timer callbacks the engine needs. They enqueue work;
// the Run loop performs it.
func (s *Service) Sinks() engine.Sinks {
	return engine.Sinks{
		Evaluate:      func(key model.GroupKey) { s.post(evaluateEvent{key: key}) },
		ExpirePending: func(hint string) { s.post(pendingExpireEvent{hint: hint}) },
	}
}

// UpdateSettings persists new settings and applies them on the loop.
func (s *Service) UpdateSettings(ctx context.Context, next settings.Settings) error {
	if err := settings.Save(ctx, s.kv, next); err != nil {
		return err
	}
	s.post(settingsEvent{s: next})
	return nil
}

func (s *Service) post(ev event) {
	select {
	case s.events <- ev:
	default:
		// The loop is wedged or gone; dropping is better than deadlocking
		// a timer goroutine.
		s.logger.Warn().Msgf("event queue full, dropping %T", ev)
	}
}

// Run restores persisted state, starts the feed, and drains events until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.engine == nil {
		return errors.New("service: engine not bound")
	}

	loaded, err := settings.Load(ctx, s.kv)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not load settings, using defaults")
		loaded = settings.Defaults()
	}
	s.applySettings(loaded)

	if err := s.alerts.Load(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("could not restore alert history")
	}
	if err := s.engine.Restore(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("could not restore entry cache")
	}

	sourceDone := make(chan error, 1)
	go func() { sourceDone <- s.source.Run(ctx) }()

	reset := scheduler.NewInterval(s.clock, s.opts.CacheResetEvery, func() {
		s.post(cacheResetEvent{})
	})
	defer reset.Stop()
	defer s.engine.Reset()

	s.logger.Info().Dur("cache_reset_every", s.opts.CacheResetEvery).Msg("service started")

	rows := s.source.Rows()
	symbols := s.source.Symbols()
	for {
		select {
		case <-ctx.Done():
			<-sourceDone
			return ctx.Err()
		case err := <-sourceDone:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case row, ok := <-rows:
			if !ok {
				rows = nil
				continue
			}
			s.handleRow(ctx, row)
		case hint, ok := <-symbols:
			if !ok {
				symbols = nil
				continue
			}
			if s.engine.Resolve(ctx, hint.Hint, hint.Symbol) {
				s.logger.Debug().Str("hint", hint.Hint).Str("symbol", hint.Symbol).Msg("late symbol resolved")
			}
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Service) handleRow(ctx context.Context, row feed.RawRow) {
	rec, err := parser.Parse(row.Fields, row.Symbol)
	if err != nil {
		var ferr *timeparse.FormatError
		if errors.As(err, &ferr) {
			s.logger.Debug().Str("input", ferr.Input).Str("reason", ferr.Reason).Msg("dropping malformed row")
			return
		}
		s.logger.Warn().Err(err).Msg("dropping unparseable row")
		return
	}

	switch err := s.engine.Offer(ctx, rec, row.Hint); {
	case err == nil:
	case errors.Is(err, engine.ErrResolutionPending):
		s.logger.Debug().Str("hint", row.Hint).Msg("row parked awaiting symbol")
	default:
		s.logger.Debug().Err(err).Str("record_id", rec.ID).Msg("row not admitted")
	}
}

func (s *Service) handleEvent(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case evaluateEvent:
		matching, total, fired := s.engine.Evaluate(ctx, ev.key)
		if !fired {
			return
		}
		alert := s.alerts.Upsert(ctx, ev.key, matching, total)
		s.emitter.Notify(alert)
	case pendingExpireEvent:
		s.engine.ExpirePending(ev.hint)
	case cacheResetEvent:
		s.engine.ResetCache(ctx)
		s.logger.Debug().Msg("entry cache reset")
	case settingsEvent:
		s.applySettings(ev.s)
	}
}

func (s *Service) applySettings(next settings.Settings) {
	s.engine.ApplySettings(next)
	s.emitter.SetSound(next.AlertSound)
	s.logger.Info().
		Bool("enabled", next.Enabled).
		Str("threshold", next.ValueThreshold.String()).
		Msg("settings applied")
}
