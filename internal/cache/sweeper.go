package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweep removes entries the
// registry marks as expired.
const DefaultSweepInterval = time.Hour

// Sweeper periodically removes expired entries using the registry, so
// foreground reads never pay for a full scan. Sweep errors are logged and
// never propagated; the next tick simply tries again.
type Sweeper struct {
	store    Store
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. A sweep runs immediately, then at the
// configured interval until Stop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sweep()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit. Idempotent.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.store.CleanupExpired(ctx)
	if err != nil {
		slog.Warn("cache expiry sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Debug("cache expiry sweep", "removed", removed)
	}
}
