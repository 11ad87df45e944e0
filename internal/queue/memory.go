package queue

import (
	"context"
	"sync"
	"time"

	"syncgate/internal/core"
)

// MemoryStore keeps queued operations in process memory.
// Data survives across requests but not process restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*core.QueuedOperation
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory queue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*core.QueuedOperation),
		now:   time.Now,
	}
}

// Enqueue persists an operation, overwriting any duplicate id.
func (s *MemoryStore) Enqueue(_ context.Context, id string, op core.Operation) error {
	if err := validateEnqueue(id, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = newQueuedOperation(id, op, s.now())
	return nil
}

// Pending returns queued operations in replay order.
func (s *MemoryStore) Pending(_ context.Context, filter Filter) ([]*core.QueuedOperation, error) {
	s.mu.RLock()
	ops := make([]*core.QueuedOperation, 0, len(s.items))
	for _, item := range s.items {
		if filter.Status != "" && item.Meta.Status != filter.Status {
			continue
		}
		cp := *item
		ops = append(ops, &cp)
	}
	s.mu.RUnlock()

	sortOperations(ops, filter.ByTimestamp)
	return ops, nil
}

// PatchMeta merges the patch into stored metadata.
func (s *MemoryStore) PatchMeta(_ context.Context, id string, patch core.MetaPatch) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return core.ErrNotFound
	}
	patch.Apply(&item.Meta)
	return nil
}

// Remove deletes one operation.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Clear empties the queue.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*core.QueuedOperation)
	return nil
}

// Len returns the number of queued operations.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Close releases resources (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}
