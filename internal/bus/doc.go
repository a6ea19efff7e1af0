// Package bus implements the live-update hub for the fleet monitor
// container.
//
// The hub fans out telemetry and device-status events to all connected
// subscribers. A new subscriber atomically receives an initial_state snapshot
// before any later update, and delivery is best-effort per subscriber: a
// failed or stalled subscriber is dropped without affecting the rest.
package bus
