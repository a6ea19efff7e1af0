// Package ingress implements the broker-side telemetry listener.
//
// The listener subscribes to a NATS subject and forwards every decoded
// telemetry message to the ingress coordinator. It is the bridge between the
// broker's delivery goroutines and the single goroutine that owns the shared
// state: the listener never touches the store directly.
package ingress
