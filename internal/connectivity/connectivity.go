// Package connectivity provides the injected connectivity capability.
// The core never probes the network itself; it consumes a Provider that is
// driven externally, by polling, or by a test double.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Provider reports the current connectivity state and notifies subscribers on
// state edges. Implementations must be safe for concurrent use.
type Provider interface {
	// Online returns the current state.
	Online() bool
	// Subscribe registers fn for edge-triggered notifications and returns a
	// cancel function. fn is called with the new state only when it changes.
	Subscribe(fn func(online bool)) (cancel func())
}

// Manual is a Provider driven entirely by Set calls. It is the default for
// embedding applications that track connectivity themselves, and for tests.
type Manual struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// NewManual creates a Manual provider with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{online: online, subs: make(map[int]func(bool))}
}

// Online returns the current state.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the state. Subscribers are notified only on an edge.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe registers an edge-triggered callback.
func (m *Manual) Subscribe(fn func(bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// ProbeFunc checks reachability of the remote store.
type ProbeFunc func(ctx context.Context) error

// Prober is a poll-based Provider that derives connectivity from a probe.
// A nil probe error means online.
type Prober struct {
	*Manual
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewProber creates a poll-based provider. It starts offline until the first
// probe succeeds; call Start to begin polling.
func NewProber(probe ProbeFunc, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Prober{
		Manual:   NewManual(false),
		probe:    probe,
		interval: interval,
		timeout:  interval,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. A probe runs immediately, then at the
// configured interval until Stop.
func (p *Prober) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.runProbe()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.runProbe()
			case <-p.done:
				return
			}
		}
	}()
}

// Stop terminates the polling loop and waits for it to exit.
func (p *Prober) Stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Prober) runProbe() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.probe(ctx)
	online := err == nil
	if !online && p.Online() {
		slog.Debug("connectivity probe failed", "error", err)
	}
	p.Set(online)
}
