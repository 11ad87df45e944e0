package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"syncgate/internal/cache"
	"syncgate/internal/connectivity"
	"syncgate/internal/core"
	"syncgate/internal/events"
	"syncgate/internal/queue"
	"syncgate/internal/syncer"
)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	execute func(query string) (*core.Result, error)
}

func (f *fakeExecutor) Execute(_ context.Context, query string) (*core.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(query)
	}
	return &core.Result{Status: core.StatusSuccess, Results: []byte(`[{"id":1}]`)}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	gateway *Gateway
	cache   cache.Store
	queue   queue.Store
	conn    *connectivity.Manual
	coord   *syncer.Coordinator
	bus     *events.Bus
	exec    *fakeExecutor
}

func newFixture(t *testing.T, cfg Config, online bool, exec *fakeExecutor) *fixture {
	t.Helper()

	cacheStore := cache.NewMemoryStore()
	queueStore := queue.NewMemoryStore()
	conn := connectivity.NewManual(online)
	bus := events.NewBus()
	coord := syncer.New(queueStore, exec, conn, bus, nil)
	t.Cleanup(coord.Close)

	g, err := New(cfg, cacheStore, queueStore, coord, exec, conn.Online, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return &fixture{gateway: g, cache: cacheStore, queue: queueStore, conn: conn, coord: coord, bus: bus, exec: exec}
}

func TestReadOnlineCachesResult(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: time.Minute}, true, exec)
	ctx := context.Background()

	result, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Accepted() {
		t.Fatalf("status = %q", result.Status)
	}
	if result.FromCache {
		t.Error("online read must not be flagged from cache")
	}

	key := core.Fingerprint("query", "FOR o IN orders RETURN o", nil)
	entry, err := f.cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if entry == nil {
		t.Fatal("read result not written through to the cache")
	}
}

func TestReadOnlineCacheFailureDoesNotFailRead(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true}, true, exec)

	brokenCache := &failingCache{Store: f.cache}
	g, err := New(Config{CacheEnabled: true}, brokenCache, f.queue, f.coord, exec, f.conn.Online, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	result, err := g.Execute(context.Background(), "FOR o IN orders RETURN o", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Accepted() {
		t.Fatalf("status = %q", result.Status)
	}
}

type failingCache struct {
	cache.Store
}

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return core.NewStorageError("set", errors.New("disk full"))
}

func TestReadOfflineFreshHit(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: time.Minute}, true, exec)
	ctx := context.Background()

	if _, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	remoteCalls := exec.callCount()

	f.conn.Set(false)
	result, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil)
	if err != nil {
		t.Fatalf("offline read: %v", err)
	}
	if string(result.Results) != `[{"id":1}]` {
		t.Errorf("results = %s", result.Results)
	}
	if exec.callCount() != remoteCalls {
		t.Error("offline read must not call the remote store")
	}
}

func TestReadOfflineExpiredHitIsFlagged(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: 10 * time.Millisecond}, true, exec)
	ctx := context.Background()

	if _, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	f.conn.Set(false)
	result, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil)
	if err != nil {
		t.Fatalf("offline stale read: %v", err)
	}
	if !result.FromCache {
		t.Error("expired entry must be flagged FromCache")
	}
	if result.CachedAt.IsZero() {
		t.Error("expired entry must carry its cache timestamp")
	}
}

func TestReadOfflineMiss(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true}, false, exec)

	_, err := f.gateway.Execute(context.Background(), "FOR o IN orders RETURN o", nil)
	if !core.IsKind(err, core.KindOfflineNoCache) {
		t.Fatalf("expected offline-no-cache error, got %v", err)
	}
	if exec.callCount() != 0 {
		t.Error("offline miss must not call the remote store")
	}
}

func TestReadOfflineCachingDisabled(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: false}, false, exec)

	_, err := f.gateway.Execute(context.Background(), "FOR o IN orders RETURN o", nil)
	if !core.IsKind(err, core.KindNonCacheableOffline) {
		t.Fatalf("expected non-cacheable-offline error, got %v", err)
	}
}

func TestReadOnlineRemoteFailurePropagates(t *testing.T) {
	exec := &fakeExecutor{
		execute: func(string) (*core.Result, error) {
			return nil, core.NewRemoteError(errors.New("gateway timeout"))
		},
	}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: time.Minute}, true, exec)
	ctx := context.Background()

	// A stale entry exists, but online failures never fall back to it.
	key := core.Fingerprint("query", "FOR o IN orders RETURN o", nil)
	if err := f.cache.Set(ctx, key, []byte(`{"status":"success"}`), time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	_, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil)
	if !core.IsKind(err, core.KindRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestWriteOnlineNotCached(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: time.Minute}, true, exec)
	ctx := context.Background()

	result, err := f.gateway.Execute(ctx, "INSERT INTO orders VALUES (1)", nil)
	if err != nil {
		t.Fatalf("execute write: %v", err)
	}
	if !result.Accepted() {
		t.Fatalf("status = %q", result.Status)
	}

	stats, err := f.gateway.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("write result was cached: %d entries", stats.Entries)
	}
}

func TestWriteOfflineQueues(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true}, false, exec)
	ctx := context.Background()

	result, err := f.gateway.Execute(ctx, "INSERT INTO orders VALUES (1)", map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("execute offline write: %v", err)
	}
	if result.Status != core.StatusQueued {
		t.Fatalf("status = %q, want %q", result.Status, core.StatusQueued)
	}
	if result.OperationID == "" {
		t.Fatal("queued acknowledgement must carry an operation id")
	}

	pending, err := f.queue.Pending(ctx, queue.Filter{})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued operation, got %d", len(pending))
	}
	got := pending[0]
	if got.ID != result.OperationID {
		t.Errorf("queued id %s != acknowledged id %s", got.ID, result.OperationID)
	}
	if got.Op.Type != core.OpInsert {
		t.Errorf("type = %q, want INSERT", got.Op.Type)
	}
	if string(got.Op.Data) != `{"id":1}` {
		t.Errorf("data = %s", got.Op.Data)
	}
	if exec.callCount() != 0 {
		t.Error("offline write must not call the remote store")
	}
}

func TestExecuteValidation(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{}, true, exec)

	if _, err := f.gateway.Execute(context.Background(), "", nil); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var zero Gateway
	if _, err := zero.Execute(context.Background(), "FOR o IN t RETURN o", nil); !errors.Is(err, core.ErrNotReady) {
		t.Fatalf("expected ErrNotReady from zero-value gateway, got %v", err)
	}
}

func TestStatsAggregatesQueueLength(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: time.Minute}, true, exec)
	ctx := context.Background()

	if _, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil); err != nil {
		t.Fatalf("read: %v", err)
	}
	f.conn.Set(false)
	if _, err := f.gateway.Execute(ctx, "INSERT INTO orders VALUES (1)", nil); err != nil {
		t.Fatalf("offline write: %v", err)
	}

	stats, err := f.gateway.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("entries = %d, want 1", stats.Entries)
	}
	if stats.QueueLength != 1 {
		t.Errorf("queue length = %d, want 1", stats.QueueLength)
	}
}

// TestOfflineRoundTrip walks the full degradation and recovery path: cache a
// read online, serve it offline, capture a write offline, then reconcile once
// connectivity returns.
func TestOfflineRoundTrip(t *testing.T) {
	exec := &fakeExecutor{}
	f := newFixture(t, Config{CacheEnabled: true, CacheTTL: time.Minute}, true, exec)
	ctx := context.Background()

	var completions []int
	var mu sync.Mutex
	f.bus.Subscribe(func(ev events.Event) {
		if done, ok := ev.(events.SyncCompleted); ok {
			mu.Lock()
			completions = append(completions, done.OperationsSynced)
			mu.Unlock()
		}
	})

	// 1. Online read lands in the cache under its fingerprint.
	if _, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil); err != nil {
		t.Fatalf("online read: %v", err)
	}
	key := core.Fingerprint("query", "FOR o IN orders RETURN o", nil)
	if entry, _ := f.cache.Get(ctx, key); entry == nil {
		t.Fatal("read not cached under fingerprint key")
	}

	// 2-3. Offline, the same read is served from cache with no remote call.
	f.conn.Set(false)
	remoteCalls := exec.callCount()
	cached, err := f.gateway.Execute(ctx, "FOR o IN orders RETURN o", nil)
	if err != nil {
		t.Fatalf("offline read: %v", err)
	}
	if string(cached.Results) != `[{"id":1}]` {
		t.Errorf("cached results = %s", cached.Results)
	}
	if exec.callCount() != remoteCalls {
		t.Fatal("offline read reached the remote store")
	}

	// 4. An offline write is acknowledged as queued.
	ack, err := f.gateway.Execute(ctx, "INSERT INTO orders VALUES (2)", nil)
	if err != nil {
		t.Fatalf("offline write: %v", err)
	}
	if ack.Status != core.StatusQueued {
		t.Fatalf("ack status = %q", ack.Status)
	}
	if n, _ := f.queue.Len(ctx); n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	// 5. Back online, one sync pass replays the write and drains the queue.
	f.conn.Set(true)
	deadline := time.After(2 * time.Second)
	for {
		if n, _ := f.queue.Len(ctx); n == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue never drained after reconnect")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, n := range completions {
		if n == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a sync pass with one synced operation, got %v", completions)
	}
}
