package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"syncgate/internal/core"
)

// SQLiteStore persists cache entries and the expiry registry in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the cache tables and indexes if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			timestamp INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			last_accessed INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_registry (
			key TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_registry table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_cache_registry_expires_at ON cache_registry(expires_at)"); err != nil {
		return nil, fmt.Errorf("failed to create cache_registry index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Set stores data under key, keeping entry and registry in one transaction.
func (s *SQLiteStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}

	payload, err := encodePayload(data)
	if err != nil {
		return core.NewStorageError("encode cache payload", err)
	}
	meta := newMeta(time.Now(), ttl)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin cache write", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_entries (key, data, timestamp, expires_at, last_accessed, ttl_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			timestamp = excluded.timestamp,
			expires_at = excluded.expires_at,
			last_accessed = excluded.last_accessed,
			ttl_ms = excluded.ttl_ms
	`, key, payload, meta.Timestamp.UnixMilli(), meta.ExpiresAt.UnixMilli(), meta.LastAccessed.UnixMilli(), meta.TTL.Milliseconds())
	if err != nil {
		return core.NewStorageError("insert cache entry", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_registry (key, expires_at) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at
	`, key, meta.ExpiresAt.UnixMilli())
	if err != nil {
		return core.NewStorageError("update cache registry", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit cache write", err)
	}
	return nil
}

// Get returns a fresh entry, lazily expiring stale ones.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := s.load(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}

	now := time.Now()
	if entry.Meta.Expired(now) {
		if err := s.Remove(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE cache_entries SET last_accessed = ? WHERE key = ?", now.UnixMilli(), key); err != nil {
		return nil, core.NewStorageError("update last_accessed", err)
	}
	entry.Meta.LastAccessed = now
	return entry, nil
}

// GetAny returns the entry even if expired, without touching it.
func (s *SQLiteStore) GetAny(ctx context.Context, key string) (*Entry, error) {
	return s.load(ctx, key)
}

func (s *SQLiteStore) load(ctx context.Context, key string) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var payload []byte
	var timestamp, expiresAt, lastAccess, ttlMillis int64
	err := s.db.QueryRowContext(ctx, `
		SELECT data, timestamp, expires_at, last_accessed, ttl_ms
		FROM cache_entries WHERE key = ?
	`, key).Scan(&payload, &timestamp, &expiresAt, &lastAccess, &ttlMillis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, core.NewStorageError("query cache entry", err)
	}

	data, err := decodePayload(payload)
	if err != nil {
		return nil, core.NewStorageError("decode cache payload", err)
	}

	return &Entry{
		Key:  key,
		Data: data,
		Meta: Meta{
			Timestamp:    time.UnixMilli(timestamp),
			ExpiresAt:    time.UnixMilli(expiresAt),
			LastAccessed: time.UnixMilli(lastAccess),
			TTL:          time.Duration(ttlMillis) * time.Millisecond,
		},
	}, nil
}

// Remove deletes one entry and its registry record.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin cache delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return core.NewStorageError("delete cache entry", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_registry WHERE key = ?", key); err != nil {
		return core.NewStorageError("delete cache registry record", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit cache delete", err)
	}
	return nil
}

// Clear deletes all entries and the whole registry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin cache clear", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries"); err != nil {
		return core.NewStorageError("clear cache entries", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_registry"); err != nil {
		return core.NewStorageError("clear cache registry", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit cache clear", err)
	}
	return nil
}

// UpdateTTL recomputes the expiry from now.
func (s *SQLiteStore) UpdateTTL(ctx context.Context, key string, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ttl = normalizeTTL(ttl)
	expiresAt := time.Now().Add(ttl)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin ttl update", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE cache_entries SET expires_at = ?, ttl_ms = ? WHERE key = ?",
		expiresAt.UnixMilli(), ttl.Milliseconds(), key)
	if err != nil {
		return core.NewStorageError("update cache entry ttl", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("read ttl update rows affected", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "UPDATE cache_registry SET expires_at = ? WHERE key = ?",
		expiresAt.UnixMilli(), key); err != nil {
		return core.NewStorageError("update cache registry ttl", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit ttl update", err)
	}
	return nil
}

// Registry returns the key -> expiry index.
func (s *SQLiteStore) Registry(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, expires_at FROM cache_registry")
	if err != nil {
		return nil, core.NewStorageError("query cache registry", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var key string
		var expiresAt int64
		if err := rows.Scan(&key, &expiresAt); err != nil {
			return nil, core.NewStorageError("scan cache registry row", err)
		}
		out[key] = time.UnixMilli(expiresAt)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterate cache registry rows", err)
	}
	return out, nil
}

// CleanupExpired removes all entries past their registry expiry.
func (s *SQLiteStore) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.NewStorageError("begin cache sweep", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cache_entries
		WHERE key IN (SELECT key FROM cache_registry WHERE expires_at < ?)
	`, now); err != nil {
		return 0, core.NewStorageError("sweep cache entries", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM cache_registry WHERE expires_at < ?", now)
	if err != nil {
		return 0, core.NewStorageError("sweep cache registry", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewStorageError("read sweep rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, core.NewStorageError("commit cache sweep", err)
	}
	return int(removed), nil
}

// Stats reports entry and expiry counts plus approximate payload size.
func (s *SQLiteStore) Stats(ctx context.Context) (*core.CacheStats, error) {
	stats := &core.CacheStats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&stats.Entries); err != nil {
		return nil, core.NewStorageError("count cache entries", err)
	}

	now := time.Now().UnixMilli()
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_registry WHERE expires_at < ?", now).Scan(&stats.Expired); err != nil {
		return nil, core.NewStorageError("count expired cache entries", err)
	}

	// Size estimation is best-effort only.
	var size sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT SUM(LENGTH(data)) FROM cache_entries").Scan(&size); err != nil {
		slog.Warn("cache size estimation failed", "error", err)
	} else if size.Valid {
		stats.ApproxSizeBytes = size.Int64
	}

	return stats, nil
}

// Close is a no-op; DB lifecycle is managed by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
