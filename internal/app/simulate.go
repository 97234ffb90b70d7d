package app

import (
	"context"
	"time"

	"flow-alerts/internal/feed"
	"flow-alerts/internal/storage"
)

// Simulate 使用内置的模拟行情源驱动完整的处理链路，便于验证告警配置。
// Output goes to the configured notifier, or the log notifier by default.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Duration <= 0 {
		opts.Duration = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	source := feed.NewMockSource(feed.MockOptions{
		Interval:    a.Config.Feed.MockInterval,
		Seed:        opts.Seed,
		BurstChance: 0.4,
	}, a.Logger)

	a.Logger.Info().Dur("duration", opts.Duration).Msg("simulation started")
	return a.runPipeline(ctx, storage.NewMemory(), source, a.newNotifier())
}
