// Package core provides core types and interfaces shared across the offline
// gateway, cache, queue, and sync components.
package core

import (
	"encoding/json"
	"time"
)

// OperationKind identifies the write verb of a command.
type OperationKind string

const (
	OpInsert  OperationKind = "INSERT"
	OpUpsert  OperationKind = "UPSERT"
	OpDelete  OperationKind = "DELETE"
	OpUpdate  OperationKind = "UPDATE"
	OpCreate  OperationKind = "CREATE"
	OpDrop    OperationKind = "DROP"
	OpLoad    OperationKind = "LOAD"
	OpSet     OperationKind = "SET"
	OpUnknown OperationKind = "UNKNOWN"
)

// OperationStatus tracks the lifecycle of a queued operation.
type OperationStatus string

const (
	// StatusPending marks an operation waiting for a sync pass.
	StatusPending OperationStatus = "pending"
	// StatusFailed marks an operation a sync pass could not replay.
	// It stays queued for a later pass or manual resolution.
	StatusFailed OperationStatus = "failed"
)

// DefaultPriority is assigned to operations queued without an explicit priority.
const DefaultPriority = 1

// Operation is a write command captured for deferred replay.
type Operation struct {
	Type  OperationKind   `json:"type"`
	Query string          `json:"query"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OperationMeta carries queue bookkeeping for an operation.
type OperationMeta struct {
	Timestamp  time.Time       `json:"timestamp"`
	Status     OperationStatus `json:"status"`
	RetryCount int             `json:"retry_count"`
	Priority   int             `json:"priority"`
}

// QueuedOperation is an operation plus its queue metadata.
type QueuedOperation struct {
	ID   string        `json:"operation_id"`
	Op   Operation     `json:"operation"`
	Meta OperationMeta `json:"metadata"`
}

// MetaPatch is a partial update merged into stored operation metadata.
// Nil fields are left untouched.
type MetaPatch struct {
	Status     *OperationStatus `json:"status,omitempty"`
	RetryCount *int             `json:"retry_count,omitempty"`
	Priority   *int             `json:"priority,omitempty"`
}

// Apply merges the patch into meta.
func (p MetaPatch) Apply(meta *OperationMeta) {
	if p.Status != nil {
		meta.Status = *p.Status
	}
	if p.RetryCount != nil {
		meta.RetryCount = *p.RetryCount
	}
	if p.Priority != nil {
		meta.Priority = *p.Priority
	}
}

// StatusSuccess is the sole remote-acceptance oracle value.
const StatusSuccess = "success"

// StatusQueued marks the synthetic acknowledgement for an offline write.
const StatusQueued = "queued"

// Result is the outcome of executing a command through the gateway.
type Result struct {
	// Status is the remote acceptance oracle; "success" is the only value
	// that counts as acceptance.
	Status  string          `json:"status,omitempty"`
	Results json.RawMessage `json:"results,omitempty"`
	Metrics json.RawMessage `json:"metrics,omitempty"`

	// FromCache and CachedAt flag a result served from the local cache
	// instead of the remote store.
	FromCache bool      `json:"from_cache,omitempty"`
	CachedAt  time.Time `json:"cached_at,omitempty"`

	// OperationID is set on the synthetic "queued" acknowledgement returned
	// for writes captured while offline.
	OperationID string `json:"operation_id,omitempty"`
}

// Accepted reports whether the remote store confirmed the command.
func (r *Result) Accepted() bool {
	return r != nil && r.Status == StatusSuccess
}

// CacheStats is a read-only aggregate over the cache and queue namespaces.
type CacheStats struct {
	Entries         int   `json:"entries"`
	Expired         int   `json:"expired"`
	ApproxSizeBytes int64 `json:"approx_size_bytes"`
	QueueLength     int   `json:"queue_length"`
}
