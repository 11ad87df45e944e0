// Package cache persists read-query results keyed by deterministic
// fingerprint, with TTL-based lazy expiry and an auxiliary expiry registry
// used to sweep expired entries without a full scan.
//
// Backends are in-memory, SQLite, MongoDB, and Redis. All of them keep the
// registry exactly consistent with the stored entries: an entry and its
// registry record are created, updated, and removed together.
package cache

import (
	"context"
	"time"

	"syncgate/internal/core"
)

// DefaultTTL is the entry lifetime used when the caller supplies none.
const DefaultTTL = time.Hour

// Meta carries per-entry cache bookkeeping.
type Meta struct {
	// Timestamp is the creation time. ExpiresAt == Timestamp + TTL at
	// creation; it is recomputed only by an explicit UpdateTTL.
	Timestamp    time.Time     `json:"timestamp"`
	ExpiresAt    time.Time     `json:"expires_at"`
	LastAccessed time.Time     `json:"last_accessed"`
	TTL          time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its expiry at the given instant.
func (m Meta) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// Entry is a cached read result.
type Entry struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
	Meta Meta   `json:"metadata"`
}

// Store is the cache persistence contract. Implementations must be safe for
// concurrent use; the expiry sweeper runs alongside foreground reads and
// writes, with last-writer-wins semantics on the registry.
type Store interface {
	// Set stores data under key with the given TTL (DefaultTTL if zero) and
	// records the expiry in the registry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Get returns the entry, or (nil, nil) when absent. An expired entry is
	// deleted together with its registry record and reported as a miss.
	// On a hit, LastAccessed is updated.
	Get(ctx context.Context, key string) (*Entry, error)

	// GetAny returns the entry regardless of expiry, or (nil, nil) when
	// absent. Neither the entry nor LastAccessed is modified. This is the
	// degraded offline read path: a stale result beats a hard failure.
	GetAny(ctx context.Context, key string) (*Entry, error)

	// Remove deletes one entry and its registry record. Removing an absent
	// key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes all entries and the whole registry.
	Clear(ctx context.Context) error

	// UpdateTTL recomputes ExpiresAt as now + ttl and persists both the
	// entry and its registry record. Returns core.ErrNotFound if absent.
	UpdateTTL(ctx context.Context, key string, ttl time.Duration) error

	// Registry returns the key -> expiry index.
	Registry(ctx context.Context) (map[string]time.Time, error)

	// CleanupExpired removes every entry whose registry expiry is in the
	// past and returns how many were removed.
	CleanupExpired(ctx context.Context) (int, error)

	// Stats returns entry count, expired count, and approximate payload
	// size. Size estimation failures are skipped, never fatal; QueueLength
	// is filled in by the caller.
	Stats(ctx context.Context) (*core.CacheStats, error)

	// Close releases resources held by the store.
	Close() error
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

func newMeta(now time.Time, ttl time.Duration) Meta {
	ttl = normalizeTTL(ttl)
	return Meta{
		Timestamp:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
		TTL:          ttl,
	}
}

func validateKey(key string) error {
	if key == "" {
		return core.NewValidationError("cache key is required")
	}
	return nil
}
