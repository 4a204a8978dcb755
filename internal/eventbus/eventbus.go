// Package eventbus is cmd/ingestd's fire-and-forget publish point: a
// DeviceRiskChanged domain event per processed payload, adapted from
// packages/go-core/natsclient/client.go and stream.go (NewClient,
// ProvisionStreams) into this module so future alerting/notification
// consumers can subscribe without the Trust Engine knowing they exist.
package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamDomainEvents is the durable JetStream stream capturing every
	// domain event this service publishes.
	StreamDomainEvents = "DOMAIN_EVENTS"
	// SubjectDeviceRiskChanged is the routing subject for score updates.
	SubjectDeviceRiskChanged = "DOMAIN_EVENTS.device_risk_changed"
)

// DeviceRiskChanged is published after every processed payload (spec.md
// §4.7/§4.8): an ingest call carrying an array of payloads publishes one
// event per payload, even when several share a device.
type DeviceRiskChanged struct {
	DeviceID   string    `json:"device_id"`
	TrustScore float64   `json:"trust_score"`
	Feedback   string    `json:"feedback"`
	Severity   string    `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is the narrow capability the ingest handler needs.
type Publisher interface {
	PublishDeviceRiskChanged(event DeviceRiskChanged) error
}

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *zap.Logger
}

// NewClient connects to url and initializes a JetStream context.
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("eventbus: jetstream: %w", err)
	}

	logger.Info("eventbus connected", zap.String("url", url))
	return &Client{conn: nc, js: js, log: logger}, nil
}

// ProvisionStream idempotently ensures the DOMAIN_EVENTS stream exists.
func (c *Client) ProvisionStream() error {
	if _, err := c.js.StreamInfo(StreamDomainEvents); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("eventbus: stream info: %w", err)
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:      StreamDomainEvents,
		Subjects:  []string{"DOMAIN_EVENTS.>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("eventbus: create stream: %w", err)
	}
	c.log.Info("eventbus stream provisioned", zap.String("stream", StreamDomainEvents))
	return nil
}

// PublishDeviceRiskChanged marshals and publishes event. A publish
// failure is logged, not fatal — the Trust Engine's score update has
// already committed; the event stream is a secondary signal, not the
// system of record (spec.md §1 scopes messaging as out of the core).
func (c *Client) PublishDeviceRiskChanged(event DeviceRiskChanged) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal: %w", err)
	}
	if _, err := c.js.Publish(SubjectDeviceRiskChanged, body); err != nil {
		return fmt.Errorf("eventbus: publish: %w", err)
	}
	return nil
}

// Close drains the connection so in-flight publishes flush before exit.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// Noop discards every event, used when cmd/ingestd runs without a
// configured NATS URL (local dev, tests).
type Noop struct{}

func (Noop) PublishDeviceRiskChanged(DeviceRiskChanged) error { return nil }
