package cache

import (
	"context"
	"sync"
	"time"

	"syncgate/internal/core"
)

// MemoryStore keeps cache entries in process memory.
// Data survives across requests but not process restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]*Entry
	registry map[string]time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*Entry),
		registry: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Set stores data under key.
func (s *MemoryStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}

	meta := newMeta(s.clock(), ttl)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &Entry{Key: key, Data: cp, Meta: meta}
	s.registry[key] = meta.ExpiresAt
	return nil
}

// Get returns a fresh entry, lazily expiring stale ones.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	now := s.clock()
	if entry.Meta.Expired(now) {
		delete(s.items, key)
		delete(s.registry, key)
		return nil, nil
	}

	entry.Meta.LastAccessed = now
	return cloneEntry(entry), nil
}

// GetAny returns the entry even if expired, without touching it.
func (s *MemoryStore) GetAny(_ context.Context, key string) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

// Remove deletes one entry.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	delete(s.registry, key)
	return nil
}

// Clear deletes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*Entry)
	s.registry = make(map[string]time.Time)
	return nil
}

// UpdateTTL recomputes the expiry from now.
func (s *MemoryStore) UpdateTTL(_ context.Context, key string, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ttl = normalizeTTL(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[key]
	if !ok {
		return core.ErrNotFound
	}
	expiresAt := s.clock().Add(ttl)
	entry.Meta.ExpiresAt = expiresAt
	entry.Meta.TTL = ttl
	s.registry[key] = expiresAt
	return nil
}

// Registry returns a copy of the expiry index.
func (s *MemoryStore) Registry(_ context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.registry))
	for k, v := range s.registry {
		out[k] = v
	}
	return out, nil
}

// CleanupExpired removes all entries past their registry expiry.
func (s *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, expiresAt := range s.registry {
		if now.After(expiresAt) {
			delete(s.items, key)
			delete(s.registry, key)
			removed++
		}
	}
	return removed, nil
}

// Stats reports entry and expiry counts plus approximate payload size.
func (s *MemoryStore) Stats(_ context.Context) (*core.CacheStats, error) {
	now := s.clock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &core.CacheStats{Entries: len(s.items)}
	for _, entry := range s.items {
		if entry.Meta.Expired(now) {
			stats.Expired++
		}
		stats.ApproxSizeBytes += int64(len(entry.Data))
	}
	return stats, nil
}

// Close releases resources (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func cloneEntry(e *Entry) *Entry {
	cp := *e
	cp.Data = make([]byte, len(e.Data))
	copy(cp.Data, e.Data)
	return &cp
}
