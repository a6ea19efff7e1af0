package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/metrics"
	"github.com/fleet-monitor/fmc/internal/store"
)

// Event types pushed to subscribers.
const (
	EventTelemetryUpdate = "telemetry_update"
	EventDeviceStatus    = "device_status"
	EventInitialState    = "initial_state"
)

// Event is one message on the live stream.
type Event struct {
	Type      string         `json:"type"`
	DeviceID  string         `json:"device_id,omitempty"`
	Telemetry map[string]any `json:"telemetry,omitempty"`
	Status    string         `json:"status,omitempty"`
	Devices   []store.Device `json:"devices,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Conn is the transport a subscriber is served over. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Subscriber is one live observer registered with the hub.
type Subscriber struct {
	ID     string
	conn   Conn
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// SnapshotFunc supplies the device snapshot for initial_state messages.
type SnapshotFunc func() []store.Device

// Hub manages the subscriber registry and broadcasts.
//
// Lock ordering: h.mu guards the subscriber map only. Delivery happens
// outside the lock over a stable slice taken at broadcast time, so a slow
// subscriber never blocks registration or other deliveries.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	snapshot   SnapshotFunc
	bufferSize int
	log        zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a hub. snapshot is invoked under the registration lock so a
// subscriber's initial_state is consistent with every update it will see.
func NewHub(snapshot SnapshotFunc, bufferSize int, log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		snapshot:    snapshot,
		bufferSize:  bufferSize,
		log:         log.With().Str("component", "bus").Logger(),
		done:        make(chan struct{}),
	}
}

// Subscribe registers a connection and queues its initial_state snapshot
// before any concurrent broadcast can be delivered to it.
func (h *Hub) Subscribe(conn Conn) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		conn:   conn,
		events: make(chan Event, h.bufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	sub.events <- Event{Type: EventInitialState, Devices: h.snapshot()}
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	h.wg.Add(1)
	go h.serve(sub)

	h.log.Debug().Str("subscriber", sub.ID).Msg("subscriber connected")

	return sub
}

// Unsubscribe removes a subscriber. Idempotent.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, exists := h.subscribers[id]
	if exists {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if !exists {
		return
	}

	sub.once.Do(func() { close(sub.done) })
	_ = sub.conn.Close()

	h.log.Debug().Str("subscriber", id).Msg("subscriber disconnected")
}

// Publish delivers an event to every current subscriber. A subscriber whose
// buffer is full is treated as disconnected and dropped; delivery to the
// remaining subscribers continues.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-h.done:
			return
		case <-sub.done:
			continue
		case sub.events <- event:
		default:
			h.log.Warn().Str("subscriber", sub.ID).Msg("subscriber stalled, dropping")
			metrics.SubscriberDrops.Inc()
			h.Unsubscribe(sub.ID)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Stop disconnects all subscribers and waits for their writers to exit.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.done) })
		_ = sub.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		// Writers stuck on a dead peer; their connections are already closed.
	}
}

// serve drains a subscriber's event channel onto its connection. A write
// error counts as a disconnect.
func (h *Hub) serve(sub *Subscriber) {
	defer h.wg.Done()

	for {
		select {
		case <-sub.done:
			return
		case <-h.done:
			return
		case event := <-sub.events:
			if err := sub.conn.WriteJSON(event); err != nil {
				h.log.Debug().Str("subscriber", sub.ID).Err(err).Msg("write failed")
				metrics.SubscriberDrops.Inc()
				h.Unsubscribe(sub.ID)
				return
			}
		}
	}
}
