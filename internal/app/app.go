package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"flow-alerts/internal/alertstore"
	"flow-alerts/internal/cache"
	"flow-alerts/internal/config"
	"flow-alerts/internal/engine"
	"flow-alerts/internal/feed"
	"flow-alerts/internal/model"
	"flow-alerts/internal/notify"
	"flow-alerts/internal/scheduler"
	"flow-alerts/internal/service"
	"flow-alerts/internal/storage"
	"flow-alerts/internal/timeparse"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openKV opens the persistence layer. Without a DSN the in-memory store is
// used and state does not survive restarts.
func (a *App) openKV(ctx context.Context) (storage.KV, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; state is in-memory only")
		return storage.NewMemory(), nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewPgStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Notify.Telegram.Enabled {
		cfg := a.Config.Notify.Telegram
		return notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return notify.NewLogNotifier(a.Logger)
}

func (a *App) newSource() feed.Source {
	if a.Config.Feed.Mock {
		return feed.NewMockSource(feed.MockOptions{
			Interval: a.Config.Feed.MockInterval,
			Seed:     a.Config.Feed.MockSeed,
		}, a.Logger)
	}
	return feed.NewWSSource(feed.WSOptions{URL: a.Config.Feed.URL}, a.Logger)
}

func (a *App) newResolver() *timeparse.Resolver {
	return timeparse.NewResolver(timeparse.ResolverOptions{
		TodayHour:      a.Config.Reference.TodayHour,
		UTCOffsetHours: a.Config.Reference.UTCOffsetHours,
	})
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv, closeKV, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	if closeKV != nil {
		defer closeKV()
	}

	return a.runPipeline(ctx, kv, a.newSource(), a.newNotifier())
}

// runPipeline wires the pipeline onto a source and notifier and drives it
// until ctx is cancelled. Shared by Run and Simulate.
func (a *App) runPipeline(ctx context.Context, kv storage.KV, source feed.Source, notifier notify.Notifier) error {
	clock := scheduler.Real()

	emitter := notify.NewEmitter(notifier, clock, notify.EmitterOptions{
		Debounce:        a.Config.Notify.Debounce,
		DismissAfter:    a.Config.Notify.DismissAfter,
		ShownResetEvery: a.Config.Notify.ShownResetEvery,
	}, a.Logger)
	defer emitter.Close()

	alerts := alertstore.New(kv, a.Logger, time.Now)

	svc := service.New(source, alerts, emitter, kv, clock, service.Options{
		CacheResetEvery: a.Config.Engine.CacheResetEvery,
	}, a.Logger)

	eng := engine.New(cache.New(kv, a.Logger), a.newResolver(), clock, engine.Options{
		DebounceDelay:  a.Config.Engine.DebounceDelay,
		MinEntries:     a.Config.Engine.MinEntries,
		PendingTimeout: a.Config.Engine.PendingTimeout,
		InitialCutoff:  a.Config.Engine.InitialCutoff,
	}, svc.Sinks(), a.Logger)
	svc.Bind(eng)

	a.Logger.Info().Msg("starting watcher service")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher service stopped")
	return nil
}

// openAlerts loads the persisted alert history for read-side commands.
func (a *App) openAlerts(ctx context.Context) (*alertstore.Store, func(), error) {
	kv, closeKV, err := a.openKV(ctx)
	if err != nil {
		return nil, nil, err
	}

	alerts := alertstore.New(kv, a.Logger, time.Now)
	if err := alerts.Load(ctx); err != nil {
		if closeKV != nil {
			closeKV()
		}
		return nil, nil, err
	}
	return alerts, closeKV, nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	Side  model.Side
	Text  string
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	MaxAlerts int
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	Duration time.Duration
	Seed     int64
}
