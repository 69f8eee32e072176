package messaging

import (
	"context"
	"log/slog"
	"strings"
)

// MessageRouter routes incoming messages to handlers by subject pattern.
type MessageRouter struct {
	handlers map[string]MessageHandler
	logger   *slog.Logger
}

func NewMessageRouter(logger *slog.Logger) *MessageRouter {
	return &MessageRouter{
		handlers: make(map[string]MessageHandler),
		logger:   logger.With("component", "messageRouter"),
	}
}

// RegisterHandler registers a handler for a subject pattern.
func (r *MessageRouter) RegisterHandler(subjectPattern string, handler MessageHandler) {
	r.handlers[subjectPattern] = handler
	r.logger.Info("registered message handler", "pattern", subjectPattern)
}

// HandleMessage implements MessageHandler and dispatches to the matching
// registered handler. Unroutable messages are logged and dropped.
func (r *MessageRouter) HandleMessage(ctx context.Context, subject string, payload []byte) error {
	handler, found := r.findHandler(subject)
	if !found {
		r.logger.Warn("no handler found for subject", "subject", subject)
		return nil
	}

	return handler.HandleMessage(ctx, subject, payload)
}

func (r *MessageRouter) findHandler(subject string) (MessageHandler, bool) {
	if handler, exists := r.handlers[subject]; exists {
		return handler, true
	}
	for pattern, handler := range r.handlers {
		if strings.EqualFold(subject, pattern) {
			return handler, true
		}
	}
	return nil, false
}
