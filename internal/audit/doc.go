// Package audit implements the append-only audit trail for the fleet
// monitor container.
//
// Every ingest and every watchdog status transition is recorded as one JSON
// line. The audit file is a durable operational artifact, separate from the
// structured process log.
package audit
