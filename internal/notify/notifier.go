// Package notify presents alerts. The Emitter applies the per-alert debounce
// and rolling shown-set guards; Notifier implementations deliver the
// resulting view data out of process.
package notify

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flow-alerts/internal/model"
)

// Notification is the view data handed to a presentation surface.
type Notification struct {
	Alert     model.Alert
	MinStrike decimal.Decimal
	MaxStrike decimal.Decimal
	Entries   int
	Direction string
	// Sound requests an audio cue alongside the visual notification.
	Sound bool
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ViewOf builds the presentation view for an alert.
func ViewOf(alert model.Alert, sound bool) Notification {
	min, max := alert.StrikeRange()
	direction := "Bullish"
	if alert.Side == model.SidePut {
		direction = "Bearish"
	}
	return Notification{
		Alert:     alert,
		MinStrike: min,
		MaxStrike: max,
		Entries:   len(alert.Entries),
		Direction: direction,
		Sound:     sound,
	}
}

func formatValue(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 0)
}

// LogNotifier writes notifications to the structured log. Used when no
// external channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	n.logger.Info().
		Str("alert_id", note.Alert.ID).
		Str("symbol", note.Alert.Symbol).
		Str("side", string(note.Alert.Side)).
		Str("expiry", note.Alert.ExpiryDate).
		Str("total_value", formatValue(note.Alert.TotalValue)).
		Int("entries", note.Entries).
		Str("direction", note.Direction).
		Bool("sound", note.Sound).
		Msg("flow alert")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
