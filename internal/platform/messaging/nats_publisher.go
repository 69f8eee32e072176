package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher is the outbound messaging interface used by domain services.
type Publisher interface {
	Publish(ctx context.Context, subject string, envelope *EventEnvelope) error
	Close() error
}

// NatsPublisher publishes event envelopes to NATS subjects.
type NatsPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNatsPublisher(conn *nats.Conn, logger *slog.Logger) *NatsPublisher {
	return &NatsPublisher{
		conn:   conn,
		logger: logger.With("component", "natsPublisher"),
	}
}

// Publish validates and serializes the envelope, then publishes it.
func (p *NatsPublisher) Publish(ctx context.Context, subject string, envelope *EventEnvelope) error {
	if err := envelope.Validate(); err != nil {
		return fmt.Errorf("invalid event envelope: %w", err)
	}

	message, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.conn.Publish(subject, message); err != nil {
		return fmt.Errorf("failed to publish message to subject '%s': %w", subject, err)
	}

	p.logger.Debug("message published",
		"subject", subject,
		"event_type", envelope.EventType,
		"tenant_id", envelope.TenantID,
	)

	return nil
}

// Close drains the connection so buffered messages are flushed first.
func (p *NatsPublisher) Close() error {
	if p.conn != nil && !p.conn.IsClosed() {
		p.logger.Info("draining and closing NATS connection")
		return p.conn.Drain()
	}
	return nil
}
