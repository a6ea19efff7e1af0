// Package watchdog implements the liveness watchdog for the fleet monitor
// container.
//
// The watchdog periodically scans the device registry and demotes devices
// that have been silent past the offline threshold. Demotion happens at most
// once per silence: the store reports whether the transition occurred, and
// only a real transition publishes a device_status event. Devices come back
// online only through a new telemetry event.
package watchdog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/audit"
	"github.com/fleet-monitor/fmc/internal/bus"
	"github.com/fleet-monitor/fmc/internal/metrics"
	"github.com/fleet-monitor/fmc/internal/store"
)

// Publisher is the minimal interface the watchdog needs from the hub.
type Publisher interface {
	Publish(event bus.Event)
}

// StatusLogger records status transitions in the audit trail.
type StatusLogger interface {
	LogStatusChange(deviceID, outcome string)
}

// Compile-time assertions for port conformance
var _ Publisher = (*bus.Hub)(nil)
var _ StatusLogger = (*audit.Logger)(nil)

// Watchdog demotes silent devices to offline.
type Watchdog struct {
	store        *store.Store
	hub          Publisher
	audit        StatusLogger
	period       time.Duration
	offlineAfter time.Duration
	log          zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watchdog scanning every period and demoting devices silent
// for longer than offlineAfter.
func New(st *store.Store, hub Publisher, period, offlineAfter time.Duration, log zerolog.Logger) *Watchdog {
	return &Watchdog{
		store:        st,
		hub:          hub,
		period:       period,
		offlineAfter: offlineAfter,
		log:          log.With().Str("component", "watchdog").Logger(),
		done:         make(chan struct{}),
	}
}

// SetStatusLogger sets the audit logger for status transitions.
func (w *Watchdog) SetStatusLogger(logger StatusLogger) {
	w.audit = logger
}

// Start launches the scan loop.
func (w *Watchdog) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop terminates the scan loop and waits for it to exit.
func (w *Watchdog) Stop() {
	close(w.done)
	w.wg.Wait()
}

func (w *Watchdog) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.Sweep(time.Now().UTC())
		}
	}
}

// Sweep runs one scan over a consistent registry snapshot, demoting every
// online device whose last_seen is older than the offline threshold.
func (w *Watchdog) Sweep(now time.Time) {
	cutoff := now.Add(-w.offlineAfter)

	for _, device := range w.store.SnapshotDevices() {
		if device.Status != store.StatusOnline || !device.LastSeen.Before(cutoff) {
			continue
		}

		// MarkOffline re-checks under the store lock; a telemetry event
		// racing this sweep wins and the demotion is skipped.
		if !w.store.MarkOffline(device.DeviceID, cutoff) {
			continue
		}

		w.log.Info().
			Str("device", device.DeviceID).
			Time("last_seen", device.LastSeen).
			Msg("device offline")
		metrics.OfflineTransitions.Inc()

		if w.audit != nil {
			w.audit.LogStatusChange(device.DeviceID, audit.OutcomeOffline)
		}

		w.hub.Publish(bus.Event{
			Type:     bus.EventDeviceStatus,
			DeviceID: device.DeviceID,
			Status:   string(store.StatusOffline),
		})
	}
}
