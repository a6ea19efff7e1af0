package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/store"
)

// fakeConn records every written event and signals each write.
type fakeConn struct {
	mu     sync.Mutex
	events []Event
	wrote  chan struct{}
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{wrote: make(chan struct{}, 64)}
}

func (c *fakeConn) WriteJSON(v any) error {
	event, ok := v.(Event)
	if !ok {
		return errors.New("unexpected payload type")
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.wrote <- struct{}{}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) waitWrite(t *testing.T) Event {
	t.Helper()
	select {
	case <-c.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

// failingConn rejects every write.
type failingConn struct{}

func (failingConn) WriteJSON(v any) error { return errors.New("broken pipe") }
func (failingConn) Close() error          { return nil }

func snapshotOf(devices ...store.Device) SnapshotFunc {
	return func() []store.Device { return devices }
}

func TestSubscribeDeliversInitialStateFirst(t *testing.T) {
	hub := NewHub(snapshotOf(store.Device{DeviceID: "machine-1"}), 16, zerolog.Nop())
	defer hub.Stop()

	conn := newFakeConn()
	hub.Subscribe(conn)

	event := conn.waitWrite(t)
	if event.Type != EventInitialState {
		t.Fatalf("first event = %q, want %q", event.Type, EventInitialState)
	}
	if len(event.Devices) != 1 || event.Devices[0].DeviceID != "machine-1" {
		t.Fatalf("initial state devices = %+v", event.Devices)
	}
}

func TestPublishFanOut(t *testing.T) {
	hub := NewHub(snapshotOf(), 16, zerolog.Nop())
	defer hub.Stop()

	connA := newFakeConn()
	connB := newFakeConn()
	hub.Subscribe(connA)
	hub.Subscribe(connB)
	connA.waitWrite(t)
	connB.waitWrite(t)

	hub.Publish(Event{Type: EventTelemetryUpdate, DeviceID: "machine-1"})

	for _, conn := range []*fakeConn{connA, connB} {
		event := conn.waitWrite(t)
		if event.Type != EventTelemetryUpdate || event.DeviceID != "machine-1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub(snapshotOf(), 16, zerolog.Nop())
	defer hub.Stop()

	conn := newFakeConn()
	sub := hub.Subscribe(conn)
	conn.waitWrite(t)

	hub.Unsubscribe(sub.ID)
	hub.Unsubscribe(sub.ID)

	if count := hub.SubscriberCount(); count != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", count)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Fatal("connection not closed on unsubscribe")
	}
}

func TestWriteFailureDropsSubscriber(t *testing.T) {
	hub := NewHub(snapshotOf(), 16, zerolog.Nop())
	defer hub.Stop()

	hub.Subscribe(failingConn{})

	// The initial_state write fails and the serve loop unsubscribes.
	deadline := time.After(2 * time.Second)
	for hub.SubscriberCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("failing subscriber was not dropped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPublishContinuesAfterDrop(t *testing.T) {
	hub := NewHub(snapshotOf(), 16, zerolog.Nop())
	defer hub.Stop()

	hub.Subscribe(failingConn{})
	healthy := newFakeConn()
	hub.Subscribe(healthy)
	healthy.waitWrite(t)

	hub.Publish(Event{Type: EventDeviceStatus, DeviceID: "machine-1", Status: "offline"})

	event := healthy.waitWrite(t)
	if event.Type != EventDeviceStatus || event.Status != "offline" {
		t.Fatalf("unexpected event: %+v", event)
	}
}
