package messaging

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NatsSubscriber consumes messages from a subject as part of a queue group
// and hands them to a MessageHandler (usually a MessageRouter).
type NatsSubscriber struct {
	conn       *nats.Conn
	handler    MessageHandler
	subject    string
	queueGroup string
	logger     *slog.Logger
}

func NewNatsSubscriber(
	conn *nats.Conn,
	handler MessageHandler,
	subject string,
	queueGroup string,
	logger *slog.Logger,
) *NatsSubscriber {
	return &NatsSubscriber{
		conn:       conn,
		handler:    handler,
		subject:    subject,
		queueGroup: queueGroup,
		logger:     logger.With("component", "natsSubscriber", "subject", subject),
	}
}

// StartListening subscribes and blocks delivery handling on the NATS
// dispatch goroutine. Handler errors are logged; messages are not redelivered.
func (s *NatsSubscriber) StartListening() {
	_, err := s.conn.QueueSubscribe(s.subject, s.queueGroup, func(msg *nats.Msg) {
		ctx := context.Background()
		if err := s.handler.HandleMessage(ctx, msg.Subject, msg.Data); err != nil {
			s.logger.Error("message handling failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		s.logger.Error("failed to subscribe", "error", err)
		return
	}

	s.logger.Info("listening for messages", "queueGroup", s.queueGroup)
}
