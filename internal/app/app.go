// Package app provides centralized dependency wiring and lifecycle control
// for the syncgate server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"syncgate/config"
	"syncgate/internal/cache"
	"syncgate/internal/connectivity"
	"syncgate/internal/events"
	"syncgate/internal/gateway"
	"syncgate/internal/observability"
	"syncgate/internal/queue"
	"syncgate/internal/remote"
	"syncgate/internal/server"
	"syncgate/internal/storage"
	"syncgate/internal/syncer"
)

// App holds every component of the running server. The caller must call
// Shutdown to release resources.
type App struct {
	config       *config.Config
	cacheStorage storage.Storage
	queueStorage storage.Storage
	cache        cache.Store
	queue        queue.Store
	sweeper      *cache.Sweeper
	prober       *connectivity.Prober
	coord        *syncer.Coordinator
	gateway      *gateway.Gateway
	server       *server.Server
	metrics      func()
	logger       *slog.Logger
}

// New wires the application from configuration. Components are constructed
// bottom-up: storage, stores, event bus, connectivity, coordinator, gateway,
// server. On failure everything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{config: cfg, logger: logger}

	cacheRuntime := cfg.Storage.CacheRuntime()
	cacheSt, err := storage.Open(ctx, cacheRuntime)
	if err != nil {
		return nil, fmt.Errorf("open cache storage: %w", err)
	}
	app.cacheStorage = cacheSt

	// The queue shares the cache connection unless configured onto a
	// different backend type.
	queueSt := cacheSt
	if queueRuntime := cfg.Storage.QueueRuntime(); queueRuntime.Type != cacheRuntime.Type {
		queueSt, err = storage.Open(ctx, queueRuntime)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open queue storage: %w", err), app.Shutdown(ctx))
		}
	}
	app.queueStorage = queueSt

	cacheStore, err := cache.NewStore(cacheSt)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create cache store: %w", err), app.Shutdown(ctx))
	}
	app.cache = cacheStore

	queueStore, err := queue.NewStore(queueSt)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create queue store: %w", err), app.Shutdown(ctx))
	}
	app.queue = queueStore

	exec, err := remote.NewHTTPExecutor(remote.Config{
		URL:     cfg.Remote.URL,
		Timeout: cfg.Remote.Timeout.Std(),
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create remote executor: %w", err), app.Shutdown(ctx))
	}

	bus := events.NewBus()

	// Connectivity is derived from reachability of the remote endpoint.
	app.prober = connectivity.NewProber(func(ctx context.Context) error {
		_, err := exec.Execute(ctx, "RETURN 1")
		return err
	}, cfg.Gateway.SyncInterval.Std())

	app.coord = syncer.New(queueStore, exec, app.prober, bus, logger)

	gw, err := gateway.New(gateway.Config{
		CacheEnabled: cfg.Gateway.CacheEnabled,
		CacheTTL:     cfg.Gateway.CacheTTL.Std(),
	}, cacheStore, queueStore, app.coord, exec, app.prober.Online, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create gateway: %w", err), app.Shutdown(ctx))
	}
	app.gateway = gw

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
		app.metrics = metrics.Observe(bus)
		gw.SetHooks(metrics)
	}

	app.sweeper = cache.NewSweeper(cacheStore, cfg.Gateway.CleanupInterval.Std())

	app.server = server.New(gw, app.coord, &server.Config{
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
	})

	return app, nil
}

// Start launches the background loops and the HTTP listener. It blocks until
// the listener stops.
func (a *App) Start() error {
	a.sweeper.Start()
	a.prober.Start()
	a.coord.Start(a.config.Gateway.SyncInterval.Std())

	addr := ":" + a.config.Server.Port
	a.logger.Info("server listening", "addr", addr)
	if err := a.server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Gateway exposes the wired gateway for embedding callers.
func (a *App) Gateway() *gateway.Gateway {
	return a.gateway
}

// Shutdown stops components in reverse construction order, joining errors.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
		a.server = nil
	}
	if a.metrics != nil {
		a.metrics()
		a.metrics = nil
	}
	if a.coord != nil {
		a.coord.Close()
		a.coord = nil
	}
	if a.prober != nil {
		a.prober.Stop()
		a.prober = nil
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
		a.sweeper = nil
	}
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue store: %w", err))
		}
		a.queue = nil
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache store: %w", err))
		}
		a.cache = nil
	}
	if a.queueStorage != nil && a.queueStorage != a.cacheStorage {
		if err := a.queueStorage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue storage: %w", err))
		}
	}
	a.queueStorage = nil
	if a.cacheStorage != nil {
		if err := a.cacheStorage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache storage: %w", err))
		}
		a.cacheStorage = nil
	}

	return errors.Join(errs...)
}
