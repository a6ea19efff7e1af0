package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/audit"
	"github.com/fleet-monitor/fmc/internal/bus"
	"github.com/fleet-monitor/fmc/internal/inference"
	"github.com/fleet-monitor/fmc/internal/metrics"
	"github.com/fleet-monitor/fmc/internal/store"
)

// Reserved keys the coordinator injects into outgoing telemetry payloads.
// Device-supplied values under these names are overwritten.
const (
	KeyMachineState    = "_machine_state"
	KeyStateConfidence = "_state_confidence"
	KeyStateReasons    = "_state_reasons"
)

// Request is one telemetry event handed to the coordinator.
type Request struct {
	DeviceID  string
	Telemetry map[string]any
	// Timestamp is the producer's RFC3339 timestamp, echoed on the outgoing
	// update when valid. The store always records coordinator arrival time.
	Timestamp string
	// Source names the producing transport for audit and metrics.
	Source string
}

type job struct {
	req   Request
	reply chan error
}

// Coordinator serializes all telemetry mutations through one owner
// goroutine.
type Coordinator struct {
	store  *store.Store
	engine *inference.Engine
	hub    Publisher
	audit  AuditLogger
	log    zerolog.Logger

	jobs chan job
	done chan struct{}
	wg   sync.WaitGroup
}

// NewCoordinator creates a coordinator with the given queue depth.
func NewCoordinator(st *store.Store, engine *inference.Engine, hub Publisher, queueSize int, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:  st,
		engine: engine,
		hub:    hub,
		log:    log.With().Str("component", "ingest").Logger(),
		jobs:   make(chan job, queueSize),
		done:   make(chan struct{}),
	}
}

// SetAuditLogger sets the audit logger.
func (c *Coordinator) SetAuditLogger(logger AuditLogger) {
	c.audit = logger
}

// Start launches the owner goroutine.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop stops accepting work and waits for the owner goroutine to exit.
// Queued jobs are answered with ErrShuttingDown.
func (c *Coordinator) Stop() {
	close(c.done)
	c.wg.Wait()
}

// Ingest validates and enqueues one telemetry event, then waits for the
// owner goroutine to apply it. There is no cancellation once a job is
// queued: the event either fully applies or the caller gets an error.
func (c *Coordinator) Ingest(ctx context.Context, req Request) error {
	if req.DeviceID == "" {
		metrics.IngestsTotal.WithLabelValues(req.Source, "rejected").Inc()
		return ErrMissingDeviceID
	}
	if req.Telemetry == nil {
		req.Telemetry = map[string]any{}
	}

	j := job{req: req, reply: make(chan error, 1)}

	select {
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	case c.jobs <- j:
	default:
		metrics.IngestsTotal.WithLabelValues(req.Source, "rejected").Inc()
		c.auditIngest(req, audit.OutcomeQueueRejected, 0)
		return ErrBusy
	}

	select {
	case <-c.done:
		return ErrShuttingDown
	case err := <-j.reply:
		return err
	}
}

// run is the owner loop. It is the only goroutine that mutates the store
// and the engine.
func (c *Coordinator) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case j := <-c.jobs:
			j.reply <- c.apply(j.req)
		}
	}
}

// apply performs register, store update, classification, reserved-key merge
// and publish, in that order.
func (c *Coordinator) apply(req Request) error {
	start := time.Now()
	now := start.UTC()

	if created := c.store.RegisterIfAbsent(req.DeviceID, now); created {
		c.log.Info().Str("device", req.DeviceID).Msg("device discovered")
	}

	if err := c.store.ApplyTelemetry(req.DeviceID, req.Telemetry, now); err != nil {
		// Unreachable after RegisterIfAbsent; surfaced for completeness.
		metrics.IngestsTotal.WithLabelValues(req.Source, "error").Inc()
		return err
	}

	payload := make(map[string]any, len(req.Telemetry)+3)
	for key, value := range req.Telemetry {
		payload[key] = value
	}

	record, err := c.engine.Classify(req.DeviceID, req.Telemetry, now)
	if err != nil {
		// A bad classifier input must never block storage or broadcast.
		c.log.Warn().Str("device", req.DeviceID).Err(err).Msg("classification skipped")
		metrics.ClassificationFailures.Inc()
		c.auditIngest(req, audit.OutcomeClassifySkip, time.Since(start))
	} else {
		payload[KeyMachineState] = string(record.State)
		payload[KeyStateConfidence] = record.Confidence
		payload[KeyStateReasons] = record.Reasons
		c.auditIngest(req, audit.OutcomeSuccess, time.Since(start))
	}

	c.hub.Publish(bus.Event{
		Type:      bus.EventTelemetryUpdate,
		DeviceID:  req.DeviceID,
		Telemetry: payload,
		Timestamp: c.echoTimestamp(req.Timestamp, now),
	})

	metrics.IngestsTotal.WithLabelValues(req.Source, "success").Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	return nil
}

// echoTimestamp returns the producer timestamp when it is valid RFC3339,
// arrival time otherwise.
func (c *Coordinator) echoTimestamp(producer string, arrival time.Time) string {
	if producer != "" {
		if _, err := time.Parse(time.RFC3339, producer); err == nil {
			return producer
		}
		c.log.Debug().Str("timestamp", producer).Msg("ignoring unparseable producer timestamp")
	}
	return arrival.Format(time.RFC3339Nano)
}

func (c *Coordinator) auditIngest(req Request, outcome string, latency time.Duration) {
	if c.audit != nil {
		c.audit.LogIngest(req.DeviceID, req.Source, outcome, latency)
	}
}
