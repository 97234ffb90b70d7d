package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"flow-alerts/internal/settings"
)

// SettingsUpdate carries the optional overrides for the settings command.
// Nil fields are left unchanged.
type SettingsUpdate struct {
	Enabled        *bool
	AlertSound     *bool
	ValueThreshold *float64
	MinStrike      *float64
	MaxStrike      *float64
	MinExp         *int
	MaxExp         *int
}

func (u SettingsUpdate) empty() bool {
	return u.Enabled == nil && u.AlertSound == nil && u.ValueThreshold == nil &&
		u.MinStrike == nil && u.MaxStrike == nil && u.MinExp == nil && u.MaxExp == nil
}

// Settings prints the persisted settings, applying any overrides first.
// A running watcher picks changes up on its next start; live updates travel
// through the service update signal instead.
func (a *App) Settings(ctx context.Context, update SettingsUpdate) error {
	kv, closeKV, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	if closeKV != nil {
		defer closeKV()
	}

	current, err := settings.Load(ctx, kv)
	if err != nil {
		return err
	}

	if !update.empty() {
		if update.Enabled != nil {
			current.Enabled = *update.Enabled
		}
		if update.AlertSound != nil {
			current.AlertSound = *update.AlertSound
		}
		if update.ValueThreshold != nil {
			current.ValueThreshold = decimal.NewFromFloat(*update.ValueThreshold)
		}
		if update.MinStrike != nil {
			current.MinStrike = decimal.NewFromFloat(*update.MinStrike)
		}
		if update.MaxStrike != nil {
			current.MaxStrike = decimal.NewFromFloat(*update.MaxStrike)
		}
		if update.MinExp != nil {
			current.MinExp = *update.MinExp
		}
		if update.MaxExp != nil {
			current.MaxExp = *update.MaxExp
		}
		if current.MinStrike.GreaterThan(current.MaxStrike) {
			return fmt.Errorf("min strike %s exceeds max strike %s", current.MinStrike, current.MaxStrike)
		}
		if current.MinExp > current.MaxExp {
			return fmt.Errorf("min expiry %d exceeds max expiry %d", current.MinExp, current.MaxExp)
		}
		if err := settings.Save(ctx, kv, current); err != nil {
			return err
		}
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "enabled\t%v\n", current.Enabled)
	fmt.Fprintf(writer, "alert sound\t%v\n", current.AlertSound)
	fmt.Fprintf(writer, "value threshold\t%s\n", current.ValueThreshold)
	fmt.Fprintf(writer, "strike range\t%s-%s\n", current.MinStrike, current.MaxStrike)
	fmt.Fprintf(writer, "expiry window (days)\t%d-%d\n", current.MinExp, current.MaxExp)
	writer.Flush()
	return nil
}
