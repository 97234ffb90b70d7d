// Package cache holds the rolling working set of observed records. Slots keep
// their position for the cache's lifetime so a record can be promoted or
// rewritten in place; the whole set is dropped on a periodic reset rather
// than per item.
package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"flow-alerts/internal/model"
	"flow-alerts/internal/storage"
)

// Cache is the dedup working set. Not safe for concurrent use; the service
// loop is the only caller.
type Cache struct {
	logger  zerolog.Logger
	kv      storage.KV
	entries []model.Record
	byID    map[string]int
}

// New constructs an empty cache writing through to kv.
func New(kv storage.KV, logger zerolog.Logger) *Cache {
	return &Cache{
		logger: logger.With().Str("component", "entry_cache").Logger(),
		kv:     kv,
		byID:   make(map[string]int),
	}
}

// Load replaces the working set with the persisted slice, restoring the
// dedup index and shown flags after a restart. Entries that fail to decode
// are skipped with a warning.
func (c *Cache) Load(ctx context.Context) error {
	var serialized []string
	if _, err := c.kv.Get(ctx, storage.KeyEntryCache, &serialized); err != nil {
		return fmt.Errorf("load entry cache: %w", err)
	}

	c.entries = nil
	c.byID = make(map[string]int)
	for _, raw := range serialized {
		rec, err := model.Deserialize(raw)
		if err != nil {
			c.logger.Warn().Err(err).Msg("skipping undecodable cache entry")
			continue
		}
		if _, ok := c.byID[rec.ID]; ok {
			continue
		}
		c.entries = append(c.entries, rec)
		c.byID[rec.ID] = len(c.entries) - 1
	}
	return nil
}

// Seen reports whether an economically identical record is already cached.
// Identity is the deterministic record id, so a re-observation at a different
// capture time still matches.
func (c *Cache) Seen(rec model.Record) bool {
	_, ok := c.byID[rec.ID]
	return ok
}

// Remember appends a record to the cache and persists the working set.
func (c *Cache) Remember(ctx context.Context, rec model.Record) {
	if _, ok := c.byID[rec.ID]; ok {
		return
	}
	c.entries = append(c.entries, rec)
	c.byID[rec.ID] = len(c.entries) - 1
	c.persist(ctx)
}

// Promote marks a cached record verified in its existing slot, reporting
// whether the record was present. The slot index does not change, so a row
// moving through the validation pipeline never grows the cache.
func (c *Cache) Promote(ctx context.Context, id string) bool {
	slot, ok := c.byID[id]
	if !ok {
		return false
	}
	c.entries[slot].Verified = true
	c.persist(ctx)
	return true
}

// Update rewrites the slot holding the record with the same id, reporting
// whether a slot matched. Used by the aggregator to write flag flips back at
// their original positions.
func (c *Cache) Update(ctx context.Context, rec model.Record) bool {
	slot, ok := c.byID[rec.ID]
	if !ok {
		return false
	}
	c.entries[slot] = rec
	c.persist(ctx)
	return true
}

// Replace swaps the record stored under oldID for rec, reindexing under the
// new id but keeping the slot. Used when late symbol resolution changes a
// record's identity.
func (c *Cache) Replace(ctx context.Context, oldID string, rec model.Record) bool {
	slot, ok := c.byID[oldID]
	if !ok {
		return false
	}
	delete(c.byID, oldID)
	c.entries[slot] = rec
	c.byID[rec.ID] = slot
	c.persist(ctx)
	return true
}

// Snapshot returns a copy of the working set in slot order.
func (c *Cache) Snapshot() []model.Record {
	out := make([]model.Record, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return len(c.entries)
}

// ResetAll drops the entire working set. Called on a fixed wall-clock
// interval; a record forgotten here may be reprocessed later, which the
// alert store's stable ids absorb.
func (c *Cache) ResetAll(ctx context.Context) {
	c.entries = nil
	c.byID = make(map[string]int)
	c.persist(ctx)
}

// persist writes the serialized working set through to storage. Failures are
// logged and abandoned; in-memory state stays authoritative until the next
// successful write.
func (c *Cache) persist(ctx context.Context) {
	serialized := make([]string, len(c.entries))
	for i, rec := range c.entries {
		serialized[i] = model.Serialize(rec)
	}
	if err := c.kv.Write(ctx, storage.KeyEntryCache, serialized); err != nil {
		c.logger.Warn().Err(err).Int("entries", len(serialized)).Msg("failed to persist entry cache")
	}
}
