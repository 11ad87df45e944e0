// Package events defines the typed lifecycle events emitted by the sync
// coordinator and the bus that delivers them to subscribers.
package events

import "syncgate/internal/core"

// Event is implemented by all coordinator lifecycle events.
type Event interface {
	Name() string
}

// Online signals that connectivity was regained.
type Online struct{}

// Offline signals that connectivity was lost.
type Offline struct{}

// SyncStarted opens a reconciliation pass.
type SyncStarted struct{}

// SyncProgress reports per-operation progress within a pass.
type SyncProgress struct {
	Total       int
	Completed   int
	OperationID string
}

// SyncCompleted closes a reconciliation pass.
type SyncCompleted struct {
	OperationsSynced int
}

// SyncFailed reports a pass aborted by a top-level failure, such as the
// pending set being unreadable.
type SyncFailed struct {
	Err error
}

// SyncSkipped reports a pass that did not run, with the reason.
type SyncSkipped struct {
	Reason string
}

// SyncConflict reports a single operation the remote store did not accept.
// The operation stays queued untouched.
type SyncConflict struct {
	OperationID string
	Op          core.Operation
	Meta        core.OperationMeta
	Err         error
}

// OperationQueued reports a write captured for deferred replay.
type OperationQueued struct {
	OperationID string
	Op          core.Operation
}

func (Online) Name() string          { return "online" }
func (Offline) Name() string         { return "offline" }
func (SyncStarted) Name() string     { return "syncStart" }
func (SyncProgress) Name() string    { return "syncProgress" }
func (SyncCompleted) Name() string   { return "syncComplete" }
func (SyncFailed) Name() string      { return "syncError" }
func (SyncSkipped) Name() string     { return "syncSkipped" }
func (SyncConflict) Name() string    { return "syncConflict" }
func (OperationQueued) Name() string { return "operationQueued" }
