// Package ingest implements the ingress coordinator for the fleet monitor
// container.
//
// Every telemetry event, whether it arrives over HTTP or from the broker
// listener, is handed off to a single owner goroutine that applies it to the
// store and the inference engine and then publishes the composed update.
// The single consumer gives each device a total order of mutations and
// guarantees no subscriber sees an update before the store reflects it.
package ingest
