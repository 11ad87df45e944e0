package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"syncgate/internal/core"
)

const (
	// redisKeyPrefix namespaces entry keys so the store can share a database.
	redisKeyPrefix = "syncgate:cache:"
	// redisRegistryKey is the sorted set holding key -> expiry (unix ms score).
	redisRegistryKey = "syncgate:cache-registry"
)

// redisEnvelope is the stored JSON wrapper around a payload and its metadata.
type redisEnvelope struct {
	Data []byte `json:"data"`
	Meta Meta   `json:"metadata"`
}

// RedisStore persists cache entries in Redis with the expiry registry kept in
// a sorted set. Expiry stays lazy rather than native so stale entries remain
// readable for the degraded offline path.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Set stores data under key and scores it in the registry set.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}

	payload, err := encodePayload(data)
	if err != nil {
		return core.NewStorageError("encode cache payload", err)
	}
	meta := newMeta(time.Now(), ttl)

	raw, err := json.Marshal(redisEnvelope{Data: payload, Meta: meta})
	if err != nil {
		return core.NewStorageError("marshal cache envelope", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, raw, 0)
	pipe.ZAdd(ctx, redisRegistryKey, redis.Z{Score: float64(meta.ExpiresAt.UnixMilli()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewStorageError("write cache entry", err)
	}
	return nil
}

// Get returns a fresh entry, lazily expiring stale ones.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
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

	entry.Meta.LastAccessed = now
	if err := s.persist(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetAny returns the entry even if expired, without touching it.
func (s *RedisStore) GetAny(ctx context.Context, key string) (*Entry, error) {
	return s.load(ctx, key)
}

func (s *RedisStore) load(ctx context.Context, key string) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, core.NewStorageError("query cache entry", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, core.NewStorageError("unmarshal cache envelope", err)
	}
	data, err := decodePayload(env.Data)
	if err != nil {
		return nil, core.NewStorageError("decode cache payload", err)
	}

	return &Entry{Key: key, Data: data, Meta: env.Meta}, nil
}

func (s *RedisStore) persist(ctx context.Context, entry *Entry) error {
	payload, err := encodePayload(entry.Data)
	if err != nil {
		return core.NewStorageError("encode cache payload", err)
	}
	raw, err := json.Marshal(redisEnvelope{Data: payload, Meta: entry.Meta})
	if err != nil {
		return core.NewStorageError("marshal cache envelope", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+entry.Key, raw, 0).Err(); err != nil {
		return core.NewStorageError("write cache entry", err)
	}
	return nil
}

// Remove deletes one entry and its registry score.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+key)
	pipe.ZRem(ctx, redisRegistryKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewStorageError("delete cache entry", err)
	}
	return nil
}

// Clear deletes all entries and the registry set.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.client.ZRange(ctx, redisRegistryKey, 0, -1).Result()
	if err != nil {
		return core.NewStorageError("list cache keys", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, redisKeyPrefix+key)
	}
	pipe.Del(ctx, redisRegistryKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewStorageError("clear cache", err)
	}
	return nil
}

// UpdateTTL recomputes the expiry from now.
func (s *RedisStore) UpdateTTL(ctx context.Context, key string, ttl time.Duration) error {
	entry, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if entry == nil {
		return core.ErrNotFound
	}

	ttl = normalizeTTL(ttl)
	entry.Meta.ExpiresAt = time.Now().Add(ttl)
	entry.Meta.TTL = ttl
	if err := s.persist(ctx, entry); err != nil {
		return err
	}

	err = s.client.ZAdd(ctx, redisRegistryKey, redis.Z{
		Score:  float64(entry.Meta.ExpiresAt.UnixMilli()),
		Member: key,
	}).Err()
	if err != nil {
		return core.NewStorageError("update cache registry ttl", err)
	}
	return nil
}

// Registry returns the key -> expiry index.
func (s *RedisStore) Registry(ctx context.Context) (map[string]time.Time, error) {
	members, err := s.client.ZRangeWithScores(ctx, redisRegistryKey, 0, -1).Result()
	if err != nil {
		return nil, core.NewStorageError("query cache registry", err)
	}

	out := make(map[string]time.Time, len(members))
	for _, m := range members {
		key, ok := m.Member.(string)
		if !ok {
			continue
		}
		out[key] = time.UnixMilli(int64(m.Score))
	}
	return out, nil
}

// CleanupExpired removes all entries past their registry expiry.
func (s *RedisStore) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := fmt.Sprintf("(%d", time.Now().UnixMilli())
	keys, err := s.client.ZRangeByScore(ctx, redisRegistryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return 0, core.NewStorageError("query expired cache keys", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	members := make([]interface{}, len(keys))
	for i, key := range keys {
		pipe.Del(ctx, redisKeyPrefix+key)
		members[i] = key
	}
	pipe.ZRem(ctx, redisRegistryKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, core.NewStorageError("sweep cache entries", err)
	}
	return len(keys), nil
}

// Stats reports entry and expiry counts plus approximate payload size.
func (s *RedisStore) Stats(ctx context.Context) (*core.CacheStats, error) {
	stats := &core.CacheStats{}

	entries, err := s.client.ZCard(ctx, redisRegistryKey).Result()
	if err != nil {
		return nil, core.NewStorageError("count cache entries", err)
	}
	stats.Entries = int(entries)

	cutoff := fmt.Sprintf("(%d", time.Now().UnixMilli())
	expired, err := s.client.ZCount(ctx, redisRegistryKey, "-inf", cutoff).Result()
	if err != nil {
		return nil, core.NewStorageError("count expired cache entries", err)
	}
	stats.Expired = int(expired)

	// Size estimation is best-effort only.
	keys, err := s.client.ZRange(ctx, redisRegistryKey, 0, -1).Result()
	if err != nil {
		slog.Warn("cache size estimation failed", "error", err)
		return stats, nil
	}
	for _, key := range keys {
		size, err := s.client.StrLen(ctx, redisKeyPrefix+key).Result()
		if err != nil {
			continue
		}
		stats.ApproxSizeBytes += size
	}

	return stats, nil
}

// Close is a no-op; client lifecycle is managed by the storage layer.
func (s *RedisStore) Close() error {
	return nil
}
