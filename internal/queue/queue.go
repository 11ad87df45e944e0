// Package queue persists pending write operations with priority and
// timestamp ordering. The ordering returned by Pending is the authoritative
// replay order for sync: priority descending, then timestamp ascending, so
// operations within a priority band replay first-in first-out.
package queue

import (
	"context"
	"sort"
	"time"

	"syncgate/internal/core"
)

// Filter narrows and orders the pending set.
type Filter struct {
	// Status restricts results to one status when non-empty.
	Status core.OperationStatus
	// ByTimestamp orders purely by timestamp, ignoring priority. The zero
	// value keeps the default priority-then-timestamp replay order.
	ByTimestamp bool
}

// Store is the operation-queue persistence contract. Implementations must be
// safe for concurrent use.
type Store interface {
	// Enqueue persists op under id with pending status, zero retries, and
	// default priority. A duplicate id overwrites the stored operation.
	Enqueue(ctx context.Context, id string, op core.Operation) error

	// Pending returns queued operations in replay order.
	Pending(ctx context.Context, filter Filter) ([]*core.QueuedOperation, error)

	// PatchMeta merges the patch into the stored metadata.
	// Returns core.ErrNotFound if the operation is absent.
	PatchMeta(ctx context.Context, id string, patch core.MetaPatch) error

	// Remove deletes the operation after confirmed remote acceptance.
	// Returns core.ErrNotFound if the operation is absent.
	Remove(ctx context.Context, id string) error

	// Clear empties the queue. Manual reset only; nothing calls it
	// automatically.
	Clear(ctx context.Context) error

	// Len returns the number of queued operations.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

func validateEnqueue(id string, op core.Operation) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}
	if op.Type == "" {
		return core.NewValidationError("operation type is required")
	}
	if op.Query == "" {
		return core.NewValidationError("operation query is required")
	}
	return nil
}

func newQueuedOperation(id string, op core.Operation, now time.Time) *core.QueuedOperation {
	return &core.QueuedOperation{
		ID: id,
		Op: op,
		Meta: core.OperationMeta{
			Timestamp:  now,
			Status:     core.StatusPending,
			RetryCount: 0,
			Priority:   core.DefaultPriority,
		},
	}
}

// sortOperations applies the replay order in place.
func sortOperations(ops []*core.QueuedOperation, byTimestamp bool) {
	sort.SliceStable(ops, func(i, j int) bool {
		if !byTimestamp && ops[i].Meta.Priority != ops[j].Meta.Priority {
			return ops[i].Meta.Priority > ops[j].Meta.Priority
		}
		return ops[i].Meta.Timestamp.Before(ops[j].Meta.Timestamp)
	})
}
