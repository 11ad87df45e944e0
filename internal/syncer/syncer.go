// Package syncer reconciles queued write operations against the remote store.
// At most one reconciliation pass runs per coordinator instance; per-operation
// failures are isolated as conflict events so one bad operation never blocks
// the rest of the pass.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"syncgate/internal/connectivity"
	"syncgate/internal/core"
	"syncgate/internal/events"
	"syncgate/internal/queue"
	"syncgate/internal/remote"
)

// DefaultInterval is the periodic sync cadence when none is configured.
const DefaultInterval = 5 * time.Second

// replayable lists the operation kinds the coordinator can replay remotely.
var replayable = map[core.OperationKind]bool{
	core.OpInsert: true,
	core.OpUpdate: true,
	core.OpDelete: true,
}

// Coordinator drains the operation queue against the remote store.
type Coordinator struct {
	queue  queue.Store
	exec   remote.Executor
	conn   connectivity.Provider
	bus    *events.Bus
	logger *slog.Logger

	syncing atomic.Bool

	mu         sync.Mutex
	interval   time.Duration
	timer      *timerHandle
	connCancel func()
}

// timerHandle tracks one generation of the ticker goroutine, so a stop waits
// only on the generation it cancelled even if a new timer starts concurrently.
type timerHandle struct {
	done    chan struct{}
	stopped chan struct{}
}

// New wires a coordinator over the queue, executor, connectivity provider,
// and event bus. Connectivity transitions start and stop the periodic timer
// until Close is called.
func New(q queue.Store, exec remote.Executor, conn connectivity.Provider, bus *events.Bus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		queue:    q,
		exec:     exec,
		conn:     conn,
		bus:      bus,
		logger:   logger,
		interval: DefaultInterval,
	}

	c.connCancel = conn.Subscribe(func(online bool) {
		if online {
			c.bus.Publish(events.Online{})
			c.startTimer()
			// Flush immediately rather than wait for the first tick.
			go c.syncBestEffort()
		} else {
			c.bus.Publish(events.Offline{})
			c.stopTimer()
		}
	})

	return c
}

// Queue persists a write for deferred replay and, when online, fires one
// best-effort sync pass to flush it immediately.
func (c *Coordinator) Queue(ctx context.Context, id string, op core.Operation) error {
	if err := c.queue.Enqueue(ctx, id, op); err != nil {
		return err
	}
	c.bus.Publish(events.OperationQueued{OperationID: id, Op: op})

	if c.conn.Online() {
		c.syncBestEffort()
	}
	return nil
}

// Sync runs one reconciliation pass. Returns nil when the pass is skipped
// because the coordinator is offline or a pass is already running.
func (c *Coordinator) Sync(ctx context.Context) error {
	if !c.conn.Online() {
		c.bus.Publish(events.SyncSkipped{Reason: "offline"})
		return nil
	}
	if !c.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.syncing.Store(false)

	c.bus.Publish(events.SyncStarted{})

	pending, err := c.queue.Pending(ctx, queue.Filter{})
	if err != nil {
		err = fmt.Errorf("read pending operations: %w", err)
		c.bus.Publish(events.SyncFailed{Err: err})
		return err
	}
	if len(pending) == 0 {
		c.bus.Publish(events.SyncCompleted{OperationsSynced: 0})
		return nil
	}

	total := len(pending)
	completed := 0
	c.bus.Publish(events.SyncProgress{Total: total, Completed: 0})

	for _, item := range pending {
		if err := c.replay(ctx, item); err != nil {
			// The operation stays queued untouched for a future pass.
			c.bus.Publish(events.SyncConflict{
				OperationID: item.ID,
				Op:          item.Op,
				Meta:        item.Meta,
				Err:         err,
			})
			c.logger.Warn("sync conflict", "operation_id", item.ID, "error", err)
			continue
		}

		if err := c.queue.Remove(ctx, item.ID); err != nil {
			c.bus.Publish(events.SyncConflict{
				OperationID: item.ID,
				Op:          item.Op,
				Meta:        item.Meta,
				Err:         fmt.Errorf("remove synced operation: %w", err),
			})
			continue
		}
		completed++
		c.bus.Publish(events.SyncProgress{Total: total, Completed: completed, OperationID: item.ID})
	}

	c.bus.Publish(events.SyncCompleted{OperationsSynced: completed})
	return nil
}

// replay executes one queued operation against the remote store.
func (c *Coordinator) replay(ctx context.Context, item *core.QueuedOperation) error {
	if item.Op.Type == "" || item.Op.Query == "" {
		return fmt.Errorf("malformed operation: missing type or query")
	}
	if !replayable[item.Op.Type] {
		return fmt.Errorf("unsupported operation type: %s", item.Op.Type)
	}

	result, err := c.exec.Execute(ctx, item.Op.Query)
	if err != nil {
		return err
	}
	if !result.Accepted() {
		return fmt.Errorf("remote rejected operation: status %q", result.Status)
	}
	return nil
}

// Start begins the periodic sync timer. A non-positive interval keeps the
// previously configured cadence.
func (c *Coordinator) Start(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if interval > 0 {
		c.interval = interval
	}
	c.startTimerLocked()
}

// startTimer acquires the lock before starting the timer.
func (c *Coordinator) startTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTimerLocked()
}

// startTimerLocked launches the ticker loop. Caller holds c.mu.
func (c *Coordinator) startTimerLocked() {
	if c.timer != nil {
		return
	}
	t := &timerHandle{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	c.timer = t
	interval := c.interval

	go func() {
		defer close(t.stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.syncBestEffort()
			case <-t.done:
				return
			}
		}
	}()
}

// Stop cancels the periodic timer. An in-flight pass runs to completion.
func (c *Coordinator) Stop() {
	c.stopTimer()
}

func (c *Coordinator) stopTimer() {
	c.mu.Lock()
	t := c.timer
	c.timer = nil
	c.mu.Unlock()
	if t == nil {
		return
	}
	close(t.done)
	<-t.stopped
}

// syncBestEffort runs one pass, swallowing errors. Failures are already
// reported through the event bus.
func (c *Coordinator) syncBestEffort() {
	if err := c.Sync(context.Background()); err != nil {
		c.logger.Debug("background sync failed", "error", err)
	}
}

// Close stops the timer and detaches from connectivity notifications.
func (c *Coordinator) Close() {
	if c.connCancel != nil {
		c.connCancel()
	}
	c.stopTimer()
}
