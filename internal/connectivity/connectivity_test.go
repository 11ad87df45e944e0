package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManualEdgeTriggered(t *testing.T) {
	m := NewManual(false)

	var edges []bool
	m.Subscribe(func(online bool) { edges = append(edges, online) })

	m.Set(false) // no edge
	m.Set(true)
	m.Set(true) // no edge
	m.Set(false)

	if len(edges) != 2 || edges[0] != true || edges[1] != false {
		t.Fatalf("edges = %v, want [true false]", edges)
	}
	if m.Online() {
		t.Fatal("expected offline after final Set(false)")
	}
}

func TestManualSubscribeCancel(t *testing.T) {
	m := NewManual(false)

	var count int
	cancel := m.Subscribe(func(bool) { count++ })
	m.Set(true)
	cancel()
	m.Set(false)

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestProberFlipsOnProbeResults(t *testing.T) {
	var mu sync.Mutex
	fail := false
	probe := func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("unreachable")
		}
		return nil
	}

	p := NewProber(probe, 10*time.Millisecond)

	online := make(chan bool, 16)
	p.Subscribe(func(state bool) { online <- state })

	p.Start()
	defer p.Stop()

	select {
	case state := <-online:
		if !state {
			t.Fatalf("first edge = offline, want online")
		}
	case <-time.After(time.Second):
		t.Fatal("no online edge after successful probes")
	}

	mu.Lock()
	fail = true
	mu.Unlock()

	select {
	case state := <-online:
		if state {
			t.Fatalf("second edge = online, want offline")
		}
	case <-time.After(time.Second):
		t.Fatal("no offline edge after failing probes")
	}
}

func TestProberStopIdempotent(t *testing.T) {
	p := NewProber(func(context.Context) error { return nil }, 10*time.Millisecond)
	p.Start()
	p.Stop()
	p.Stop()
}
