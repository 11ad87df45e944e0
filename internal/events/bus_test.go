package events

import (
	"sync"
	"testing"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var got1, got2 []string
	bus.Subscribe(func(ev Event) { got1 = append(got1, ev.Name()) })
	bus.Subscribe(func(ev Event) { got2 = append(got2, ev.Name()) })

	bus.Publish(SyncStarted{})
	bus.Publish(SyncCompleted{OperationsSynced: 2})

	want := []string{"syncStart", "syncComplete"}
	for i, events := range [][]string{got1, got2} {
		if len(events) != len(want) {
			t.Fatalf("subscriber %d: got %d events, want %d", i, len(events), len(want))
		}
		for j := range want {
			if events[j] != want[j] {
				t.Errorf("subscriber %d event %d = %q, want %q", i, j, events[j], want[j])
			}
		}
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus()

	var count int
	cancel := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Online{})
	cancel()
	cancel() // idempotent
	bus.Publish(Offline{})

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestBusExactlyOncePerEmission(t *testing.T) {
	bus := NewBus()

	counts := make(map[string]int)
	bus.Subscribe(func(ev Event) { counts[ev.Name()]++ })

	bus.Publish(SyncProgress{Total: 3, Completed: 1, OperationID: "op-1"})
	bus.Publish(SyncSkipped{Reason: "offline"})

	if counts["syncProgress"] != 1 || counts["syncSkipped"] != 1 {
		t.Fatalf("counts = %v, want exactly one of each", counts)
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var count int
	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(SyncStarted{})
		}()
	}
	wg.Wait()

	if count != 10 {
		t.Fatalf("count = %d, want 10", count)
	}
}
