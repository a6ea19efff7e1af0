// Ports (interfaces) for coordinator dependencies.
package ingest

import (
	"errors"
	"time"

	"github.com/fleet-monitor/fmc/internal/audit"
	"github.com/fleet-monitor/fmc/internal/bus"
)

// Publisher is the minimal interface the coordinator needs from the hub.
type Publisher interface {
	Publish(event bus.Event)
}

// AuditLogger records ingest outcomes.
type AuditLogger interface {
	LogIngest(deviceID, source, outcome string, latency time.Duration)
}

// Compile-time assertions for port conformance
var _ Publisher = (*bus.Hub)(nil)
var _ AuditLogger = (*audit.Logger)(nil)

// ErrMissingDeviceID indicates a request without a device identity.
var ErrMissingDeviceID = errors.New("BAD_REQUEST")

// ErrBusy indicates the ingest queue is full.
var ErrBusy = errors.New("BUSY")

// ErrShuttingDown indicates the coordinator is no longer accepting work.
var ErrShuttingDown = errors.New("UNAVAILABLE")
