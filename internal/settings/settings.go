// Package settings holds the user configuration consumed read-only by the
// engine. It persists under the "settings" key and is re-applied to a running
// service on an external update signal.
package settings

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"flow-alerts/internal/storage"
)

// Settings gate which records enter the pipeline and when alerts fire.
type Settings struct {
	Enabled        bool            `json:"enabled"`
	AlertSound     bool            `json:"alertSound"`
	ValueThreshold decimal.Decimal `json:"valueThreshold"`
	MinStrike      decimal.Decimal `json:"minStrike"`
	MaxStrike      decimal.Decimal `json:"maxStrike"`
	// MinExp and MaxExp bound the admitted expiry window in days from now.
	MinExp int `json:"minExp"`
	MaxExp int `json:"maxExp"`
}

// Defaults returns the stock configuration.
func Defaults() Settings {
	return Settings{
		Enabled:        true,
		AlertSound:     false,
		ValueThreshold: decimal.NewFromInt(800000),
		MinStrike:      decimal.NewFromInt(100),
		MaxStrike:      decimal.NewFromInt(800),
		MinExp:         0,
		MaxExp:         365,
	}
}

// Load reads persisted settings, falling back to defaults when absent.
func Load(ctx context.Context, kv storage.KV) (Settings, error) {
	s := Defaults()
	found, err := kv.Get(ctx, storage.KeySettings, &s)
	if err != nil {
		return Defaults(), fmt.Errorf("load settings: %w", err)
	}
	if !found {
		return Defaults(), nil
	}
	return s, nil
}

// Save persists settings.
func Save(ctx context.Context, kv storage.KV, s Settings) error {
	if err := kv.Write(ctx, storage.KeySettings, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
