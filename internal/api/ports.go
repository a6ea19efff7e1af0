// Ports (interfaces) for API server dependencies.
package api

import (
	"context"

	"github.com/fleet-monitor/fmc/internal/bus"
	"github.com/fleet-monitor/fmc/internal/inference"
	"github.com/fleet-monitor/fmc/internal/ingest"
	"github.com/fleet-monitor/fmc/internal/store"
)

// IngestPort accepts telemetry events for processing.
type IngestPort interface {
	Ingest(ctx context.Context, req ingest.Request) error
}

// DeviceReadPort serves the registry and telemetry series queries.
type DeviceReadPort interface {
	Device(deviceID string) (store.Device, error)
	SnapshotDevices() []store.Device
	Latest(deviceID string) map[string]store.Sample
	History(deviceID, key string) []store.Sample
}

// StateReadPort serves the inferred machine state queries.
type StateReadPort interface {
	Record(deviceID string) (inference.Record, bool)
	AllRecords() map[string]inference.Record
}

// StreamPort registers live observers on the broadcast hub.
type StreamPort interface {
	Subscribe(conn bus.Conn) *bus.Subscriber
	Unsubscribe(id string)
	SubscriberCount() int
}

// Compile-time assertions for port conformance
var (
	_ IngestPort     = (*ingest.Coordinator)(nil)
	_ DeviceReadPort = (*store.Store)(nil)
	_ StateReadPort  = (*inference.Engine)(nil)
	_ StreamPort     = (*bus.Hub)(nil)
)
