package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flow-alerts/internal/config"
)

const (
	createKVTableSQL = `CREATE TABLE IF NOT EXISTS kv_entries (
        key        TEXT PRIMARY KEY,
        value      JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	getKVSQL = `SELECT value FROM kv_entries WHERE key = $1;`

	upsertKVSQL = `INSERT INTO kv_entries (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        updated_at = now();`

	deleteKVSQL = `DELETE FROM kv_entries WHERE key = $1;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PgStore is the PostgreSQL-backed KV implementation.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wires a pgx pool into a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the kv table when missing.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createKVTableSQL); execErr != nil {
		return fmt.Errorf("ensure kv schema: %w", execErr)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PgStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PgStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Get implements KV.
func (s *PgStore) Get(ctx context.Context, key string, out any) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var raw json.RawMessage
	if scanErr := pool.QueryRow(ctx, getKVSQL, key).Scan(&raw); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get %q: %w", key, scanErr)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode stored value for %q: %w", key, err)
	}
	return true, nil
}

// Write implements KV.
func (s *PgStore) Write(ctx context.Context, key string, value any) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	if _, execErr := pool.Exec(ctx, upsertKVSQL, key, raw); execErr != nil {
		return fmt.Errorf("write %q: %w", key, execErr)
	}
	return nil
}

// Remove implements KV.
func (s *PgStore) Remove(ctx context.Context, key string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteKVSQL, key); execErr != nil {
		return fmt.Errorf("remove %q: %w", key, execErr)
	}
	return nil
}

var _ KV = (*PgStore)(nil)
