package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/ingest"
)

// Ingester is the minimal interface the listener needs from the
// coordinator.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) error
}

// Compile-time assertion for port conformance
var _ Ingester = (*ingest.Coordinator)(nil)

// ingestTimeout bounds how long a broker delivery waits on the coordinator.
const ingestTimeout = 5 * time.Second

// envelope is the wire payload expected on the telemetry subject.
type envelope struct {
	DeviceID  string         `json:"device_id"`
	Telemetry map[string]any `json:"telemetry"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Options configures the listener connection.
type Options struct {
	URL           string
	Subject       string
	ReconnectWait time.Duration
}

// Listener bridges broker deliveries into the coordinator.
type Listener struct {
	coordinator Ingester
	opts        Options
	log         zerolog.Logger

	conn *nats.Conn
	sub  *nats.Subscription
}

// NewListener creates a listener; Start establishes the connection.
func NewListener(coordinator Ingester, opts Options, log zerolog.Logger) *Listener {
	return &Listener{
		coordinator: coordinator,
		opts:        opts,
		log:         log.With().Str("component", "ingress").Logger(),
	}
}

// Start connects to the broker and subscribes to the telemetry subject.
func (l *Listener) Start() error {
	conn, err := nats.Connect(l.opts.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(l.opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.log.Warn().Err(err).Msg("broker disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.log.Info().Str("url", c.ConnectedUrl()).Msg("broker reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to broker at %s: %w", l.opts.URL, err)
	}

	sub, err := conn.Subscribe(l.opts.Subject, l.handleMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", l.opts.Subject, err)
	}

	l.conn = conn
	l.sub = sub
	l.log.Info().Str("url", l.opts.URL).Str("subject", l.opts.Subject).Msg("broker listener started")

	return nil
}

// Stop drains the subscription and closes the connection.
func (l *Listener) Stop() {
	if l.sub != nil {
		_ = l.sub.Drain()
	}
	if l.conn != nil {
		l.conn.Close()
	}
}

// handleMessage decodes one broker delivery and hands it to the
// coordinator. Malformed payloads are logged and dropped; a bad producer
// must not wedge the bridge.
func (l *Listener) handleMessage(msg *nats.Msg) {
	var payload envelope
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		l.log.Warn().Str("subject", msg.Subject).Err(err).Msg("dropping malformed telemetry message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	err := l.coordinator.Ingest(ctx, ingest.Request{
		DeviceID:  payload.DeviceID,
		Telemetry: payload.Telemetry,
		Timestamp: payload.Timestamp,
		Source:    "nats",
	})
	if err != nil {
		l.log.Warn().Str("device", payload.DeviceID).Err(err).Msg("broker ingest failed")
	}
}
