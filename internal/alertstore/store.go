// Package alertstore maintains the persisted alert collection. Alerts are
// keyed by their deterministic (expiry, side, symbol) identity, so repeated
// aggregation passes for the same group merge in place instead of appending
// duplicates.
package alertstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flow-alerts/internal/model"
	"flow-alerts/internal/storage"
)

// Store is the alert collection. Not safe for concurrent use; the service
// loop is the only writer.
type Store struct {
	logger zerolog.Logger
	kv     storage.KV
	now    func() time.Time
	alerts []model.Alert
}

// New constructs a Store writing through to kv.
func New(kv storage.KV, logger zerolog.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		logger: logger.With().Str("component", "alert_store").Logger(),
		kv:     kv,
		now:    now,
	}
}

// Load reads the persisted collection, replacing in-memory state.
func (s *Store) Load(ctx context.Context) error {
	alerts := make([]model.Alert, 0)
	if _, err := s.kv.Get(ctx, storage.KeyAlerts, &alerts); err != nil {
		return err
	}
	s.alerts = alerts
	return nil
}

// Upsert merges an aggregation result into the collection. An existing alert
// with the same id has its entries, totalValue, and timestamp replaced in
// place, preserving its position; otherwise a new alert is appended. The full
// collection is written through after every upsert. Persistence failures are
// logged and abandoned without rolling back in-memory state.
func (s *Store) Upsert(ctx context.Context, key model.GroupKey, entries []model.Record, total decimal.Decimal) model.Alert {
	id := model.AlertID(key)
	stamp := s.now()

	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		s.alerts[i].Entries = entries
		s.alerts[i].TotalValue = total
		s.alerts[i].Timestamp = stamp
		s.persist(ctx)
		return s.alerts[i]
	}

	alert := model.Alert{
		ID:         id,
		ExpiryDate: key.ExpiryDate,
		Side:       key.Side,
		Symbol:     key.Symbol,
		TotalValue: total,
		Entries:    entries,
		Timestamp:  stamp,
	}
	s.alerts = append(s.alerts, alert)
	s.persist(ctx)
	return alert
}

// List returns the collection in insertion order.
func (s *Store) List() []model.Alert {
	out := make([]model.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Query filters the read surface consumed by the popup-style views.
type Query struct {
	// Side restricts to calls or puts; empty means all.
	Side model.Side
	// Text is matched case-insensitively across the textual alert fields.
	Text string
	// Limit caps the result count; zero means unlimited.
	Limit int
}

// Recent returns alerts most-recent-first, applying the query.
func (s *Store) Recent(q Query) []model.Alert {
	out := make([]model.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if q.Side != "" && alert.Side != q.Side {
			continue
		}
		if q.Text != "" && !matchesText(alert, q.Text) {
			continue
		}
		out = append(out, alert)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesText(alert model.Alert, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	haystack := strings.ToLower(strings.Join([]string{
		alert.ID,
		alert.Symbol,
		alert.ExpiryDate,
		string(alert.Side),
	}, " "))
	if strings.Contains(haystack, needle) {
		return true
	}
	for _, entry := range alert.Entries {
		if strings.Contains(strings.ToLower(entry.Reason), needle) {
			return true
		}
	}
	return false
}

// Clear drops the collection and persists the empty set. Previously used ids
// may be reused by later bursts.
func (s *Store) Clear(ctx context.Context) error {
	s.alerts = nil
	return s.kv.Write(ctx, storage.KeyAlerts, []model.Alert{})
}

func (s *Store) persist(ctx context.Context) {
	if err := s.kv.Write(ctx, storage.KeyAlerts, s.alerts); err != nil {
		s.logger.Error().Err(err).Int("alerts", len(s.alerts)).Msg("failed to persist alerts")
	}
}
