// Package storage provides the key-value persistence used by the engine for
// the entry cache, the alert collection, and user settings. Values are
// JSON-serialisable; callers treat write failures as logged-and-abandoned.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// Keys used by the core pipeline.
const (
	KeyEntryCache = "entry-cache"
	KeyAlerts     = "alerts"
	KeySettings   = "settings"
)

// KV is the opaque key-value persistence interface.
type KV interface {
	// Get unmarshals the stored value for key into out. The boolean reports
	// whether the key was present.
	Get(ctx context.Context, key string, out any) (bool, error)
	// Write stores a JSON-serialisable value under key.
	Write(ctx context.Context, key string, value any) error
	// Remove deletes key and its value.
	Remove(ctx context.Context, key string) error
}
