// Package gateway routes incoming commands between the remote store, the
// local cache, and the offline operation queue. Classification of a command
// as read or write uses one classifier instance for both routing and cache
// eligibility, so the two can never disagree.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"syncgate/internal/cache"
	"syncgate/internal/core"
	"syncgate/internal/query"
	"syncgate/internal/queue"
	"syncgate/internal/syncer"
)

// cacheNamespace prefixes every gateway cache key.
const cacheNamespace = "query"

// Config controls gateway behavior.
type Config struct {
	// CacheEnabled enables read caching and the offline cache fallback.
	CacheEnabled bool

	// CacheTTL is the lifetime of cached read results. Zero means the cache
	// store default.
	CacheTTL time.Duration
}

// Gateway executes commands with offline awareness.
type Gateway struct {
	cfg        Config
	cache      cache.Store
	queue      queue.Store
	coord      *syncer.Coordinator
	exec       Executor
	online     func() bool
	classifier query.Classifier
	logger     *slog.Logger
	hooks      Hooks
	flight     singleflight.Group
	ready      bool
}

// Executor mirrors remote.Executor; declared locally so tests inject fakes
// without importing the remote package.
type Executor interface {
	Execute(ctx context.Context, query string) (*core.Result, error)
}

// Hooks receives cache outcome notifications for metrics collection.
// Implementations must be cheap and non-blocking.
type Hooks interface {
	CacheHit(stale bool)
	CacheMiss()
}

// SetHooks installs metrics hooks. Call before serving traffic.
func (g *Gateway) SetHooks(h Hooks) {
	g.hooks = h
}

// New wires a gateway. All collaborators are required.
func New(cfg Config, cacheStore cache.Store, queueStore queue.Store, coord *syncer.Coordinator, exec Executor, online func() bool, logger *slog.Logger) (*Gateway, error) {
	if cacheStore == nil || queueStore == nil || coord == nil || exec == nil || online == nil {
		return nil, core.NewValidationError("gateway requires cache, queue, coordinator, executor, and connectivity")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:        cfg,
		cache:      cacheStore,
		queue:      queueStore,
		coord:      coord,
		exec:       exec,
		online:     online,
		classifier: query.NewClassifier(),
		logger:     logger,
		ready:      true,
	}, nil
}

// Execute routes one command. Reads are served remotely when online and from
// the cache when offline; writes are executed remotely when online and queued
// for later replay when offline.
func (g *Gateway) Execute(ctx context.Context, queryText string, params map[string]any) (*core.Result, error) {
	if !g.ready {
		return nil, core.ErrNotReady
	}
	if queryText == "" {
		return nil, core.NewValidationError("query is required")
	}

	if g.classifier.IsReadOnly(queryText) {
		return g.executeRead(ctx, queryText, params)
	}
	return g.executeWrite(ctx, queryText, params)
}

func (g *Gateway) executeRead(ctx context.Context, queryText string, params map[string]any) (*core.Result, error) {
	key := core.Fingerprint(cacheNamespace, queryText, params)

	if g.online() {
		// Identical concurrent reads share one remote call.
		v, err, _ := g.flight.Do(key, func() (any, error) {
			result, err := g.exec.Execute(ctx, queryText)
			if err != nil {
				// No cache fallback while online.
				return nil, err
			}
			if g.cfg.CacheEnabled {
				g.writeThrough(ctx, key, result)
			}
			return result, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(*core.Result), nil
	}

	if !g.cfg.CacheEnabled {
		return nil, core.NewNonCacheableOfflineError()
	}

	entry, err := g.cache.GetAny(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		if g.hooks != nil {
			g.hooks.CacheMiss()
		}
		return nil, core.NewOfflineNoCacheError(key)
	}

	var result core.Result
	if err := json.Unmarshal(entry.Data, &result); err != nil {
		return nil, core.NewStorageError("decode cached result", err)
	}
	stale := entry.Meta.Expired(time.Now())
	if stale {
		// Stale data beats a hard failure while offline.
		result.FromCache = true
		result.CachedAt = entry.Meta.Timestamp
	}
	if g.hooks != nil {
		g.hooks.CacheHit(stale)
	}
	return &result, nil
}

// writeThrough caches a fresh read result. Failure to cache never fails the
// read.
func (g *Gateway) writeThrough(ctx context.Context, key string, result *core.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		g.logger.Warn("encode result for cache", "key", key, "error", err)
		return
	}
	if err := g.cache.Set(ctx, key, data, g.cfg.CacheTTL); err != nil {
		g.logger.Warn("cache write-through failed", "key", key, "error", err)
	}
}

func (g *Gateway) executeWrite(ctx context.Context, queryText string, params map[string]any) (*core.Result, error) {
	if g.online() {
		// Write results are never cached.
		return g.exec.Execute(ctx, queryText)
	}

	op := core.Operation{
		Type:  g.classifier.OperationType(queryText),
		Query: queryText,
	}
	if len(params) > 0 {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, core.NewValidationError(fmt.Sprintf("encode operation data: %v", err))
		}
		op.Data = data
	}

	id := uuid.NewString()
	if err := g.coord.Queue(ctx, id, op); err != nil {
		return nil, err
	}

	// The true outcome is unknown until a later sync pass.
	return &core.Result{Status: core.StatusQueued, OperationID: id}, nil
}

// Stats aggregates cache and queue counters.
func (g *Gateway) Stats(ctx context.Context) (core.CacheStats, error) {
	if !g.ready {
		return core.CacheStats{}, core.ErrNotReady
	}

	stats, err := g.cache.Stats(ctx)
	if err != nil {
		return core.CacheStats{}, err
	}
	n, err := g.queue.Len(ctx)
	if err != nil {
		return core.CacheStats{}, err
	}
	out := *stats
	out.QueueLength = n
	return out, nil
}

// ClearCache drops every cached entry.
func (g *Gateway) ClearCache(ctx context.Context) error {
	if !g.ready {
		return core.ErrNotReady
	}
	return g.cache.Clear(ctx)
}

// ClearQueue drops every queued operation. Manual reset only.
func (g *Gateway) ClearQueue(ctx context.Context) error {
	if !g.ready {
		return core.ErrNotReady
	}
	return g.queue.Clear(ctx)
}
