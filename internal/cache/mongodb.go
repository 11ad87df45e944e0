package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"syncgate/internal/core"
)

type mongoCacheDocument struct {
	Key          string `bson:"_id"`
	Data         []byte `bson:"data"`
	Timestamp    int64  `bson:"timestamp"`
	ExpiresAt    int64  `bson:"expires_at"`
	LastAccessed int64  `bson:"last_accessed"`
	TTLMillis    int64  `bson:"ttl_ms"`
}

type mongoRegistryDocument struct {
	Key       string `bson:"_id"`
	ExpiresAt int64  `bson:"expires_at"`
}

// MongoDBStore persists cache entries and the expiry registry in MongoDB.
type MongoDBStore struct {
	entries  *mongo.Collection
	registry *mongo.Collection
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	entries := database.Collection("cache_entries")
	registry := database.Collection("cache_registry")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	index := mongo.IndexModel{Keys: bson.D{{Key: "expires_at", Value: 1}}}
	if _, err := registry.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("create cache_registry index: %w", err)
	}

	return &MongoDBStore{entries: entries, registry: registry}, nil
}

// Set stores data under key and updates the registry record.
func (s *MongoDBStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}

	payload, err := encodePayload(data)
	if err != nil {
		return core.NewStorageError("encode cache payload", err)
	}
	meta := newMeta(time.Now(), ttl)

	doc := mongoCacheDocument{
		Key:          key,
		Data:         payload,
		Timestamp:    meta.Timestamp.UnixMilli(),
		ExpiresAt:    meta.ExpiresAt.UnixMilli(),
		LastAccessed: meta.LastAccessed.UnixMilli(),
		TTLMillis:    meta.TTL.Milliseconds(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.entries.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return core.NewStorageError("upsert cache entry", err)
	}

	regDoc := mongoRegistryDocument{Key: key, ExpiresAt: meta.ExpiresAt.UnixMilli()}
	if _, err := s.registry.ReplaceOne(ctx, bson.M{"_id": key}, regDoc, opts); err != nil {
		return core.NewStorageError("upsert cache registry record", err)
	}
	return nil
}

// Get returns a fresh entry, lazily expiring stale ones.
func (s *MongoDBStore) Get(ctx context.Context, key string) (*Entry, error) {
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

	_, err = s.entries.UpdateOne(ctx, bson.M{"_id": key},
		bson.M{"$set": bson.M{"last_accessed": now.UnixMilli()}})
	if err != nil {
		return nil, core.NewStorageError("update last_accessed", err)
	}
	entry.Meta.LastAccessed = now
	return entry, nil
}

// GetAny returns the entry even if expired, without touching it.
func (s *MongoDBStore) GetAny(ctx context.Context, key string) (*Entry, error) {
	return s.load(ctx, key)
}

func (s *MongoDBStore) load(ctx context.Context, key string) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var doc mongoCacheDocument
	err := s.entries.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, core.NewStorageError("query cache entry", err)
	}

	data, err := decodePayload(doc.Data)
	if err != nil {
		return nil, core.NewStorageError("decode cache payload", err)
	}

	return &Entry{
		Key:  key,
		Data: data,
		Meta: Meta{
			Timestamp:    time.UnixMilli(doc.Timestamp),
			ExpiresAt:    time.UnixMilli(doc.ExpiresAt),
			LastAccessed: time.UnixMilli(doc.LastAccessed),
			TTL:          time.Duration(doc.TTLMillis) * time.Millisecond,
		},
	}, nil
}

// Remove deletes one entry and its registry record.
func (s *MongoDBStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.entries.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return core.NewStorageError("delete cache entry", err)
	}
	if _, err := s.registry.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return core.NewStorageError("delete cache registry record", err)
	}
	return nil
}

// Clear deletes all entries and the whole registry.
func (s *MongoDBStore) Clear(ctx context.Context) error {
	if _, err := s.entries.DeleteMany(ctx, bson.M{}); err != nil {
		return core.NewStorageError("clear cache entries", err)
	}
	if _, err := s.registry.DeleteMany(ctx, bson.M{}); err != nil {
		return core.NewStorageError("clear cache registry", err)
	}
	return nil
}

// UpdateTTL recomputes the expiry from now.
func (s *MongoDBStore) UpdateTTL(ctx context.Context, key string, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ttl = normalizeTTL(ttl)
	expiresAt := time.Now().Add(ttl).UnixMilli()

	res, err := s.entries.UpdateOne(ctx, bson.M{"_id": key},
		bson.M{"$set": bson.M{"expires_at": expiresAt, "ttl_ms": ttl.Milliseconds()}})
	if err != nil {
		return core.NewStorageError("update cache entry ttl", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}

	_, err = s.registry.UpdateOne(ctx, bson.M{"_id": key},
		bson.M{"$set": bson.M{"expires_at": expiresAt}})
	if err != nil {
		return core.NewStorageError("update cache registry ttl", err)
	}
	return nil
}

// Registry returns the key -> expiry index.
func (s *MongoDBStore) Registry(ctx context.Context) (map[string]time.Time, error) {
	cursor, err := s.registry.Find(ctx, bson.M{})
	if err != nil {
		return nil, core.NewStorageError("query cache registry", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]time.Time)
	for cursor.Next(ctx) {
		var doc mongoRegistryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, core.NewStorageError("decode cache registry record", err)
		}
		out[doc.Key] = time.UnixMilli(doc.ExpiresAt)
	}
	if err := cursor.Err(); err != nil {
		return nil, core.NewStorageError("iterate cache registry", err)
	}
	return out, nil
}

// CleanupExpired removes all entries past their registry expiry.
func (s *MongoDBStore) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now().UnixMilli()
	filter := bson.M{"expires_at": bson.M{"$lt": now}}

	cursor, err := s.registry.Find(ctx, filter)
	if err != nil {
		return 0, core.NewStorageError("query expired registry records", err)
	}
	keys := make([]string, 0)
	for cursor.Next(ctx) {
		var doc mongoRegistryDocument
		if err := cursor.Decode(&doc); err != nil {
			cursor.Close(ctx)
			return 0, core.NewStorageError("decode expired registry record", err)
		}
		keys = append(keys, doc.Key)
	}
	cursor.Close(ctx)
	if len(keys) == 0 {
		return 0, nil
	}

	if _, err := s.entries.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}}); err != nil {
		return 0, core.NewStorageError("sweep cache entries", err)
	}
	res, err := s.registry.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return 0, core.NewStorageError("sweep cache registry", err)
	}
	return int(res.DeletedCount), nil
}

// Stats reports entry and expiry counts plus approximate payload size.
func (s *MongoDBStore) Stats(ctx context.Context) (*core.CacheStats, error) {
	stats := &core.CacheStats{}

	entries, err := s.entries.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, core.NewStorageError("count cache entries", err)
	}
	stats.Entries = int(entries)

	now := time.Now().UnixMilli()
	expired, err := s.registry.CountDocuments(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return nil, core.NewStorageError("count expired cache entries", err)
	}
	stats.Expired = int(expired)

	// Size estimation is best-effort only.
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "size": bson.M{"$sum": bson.M{"$bsonSize": "$$ROOT"}}}}},
	}
	cursor, err := s.entries.Aggregate(ctx, pipeline)
	if err != nil {
		slog.Warn("cache size estimation failed", "error", err)
		return stats, nil
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		var agg struct {
			Size int64 `bson:"size"`
		}
		if err := cursor.Decode(&agg); err == nil {
			stats.ApproxSizeBytes = agg.Size
		}
	}

	return stats, nil
}

// Close is a no-op; client lifecycle is managed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
