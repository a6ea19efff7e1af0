// Package api implements the HTTP surface of the fleet monitor container.
//
// It exposes the telemetry ingest endpoint, the read-only device and state
// queries, the websocket live stream, health, and Prometheus metrics. All
// JSON responses use the unified envelope with a correlation ID. The API
// layer holds no state of its own; it translates requests into calls on the
// ingest coordinator, the store, the inference engine, and the broadcast
// hub.
package api
