package messaging

import "context"

// MessageHandler processes a raw message delivered on a subject. Returning
// an error signals the subscriber that processing failed; handlers should
// return nil for malformed messages that must not be retried.
type MessageHandler interface {
	HandleMessage(ctx context.Context, subject string, payload []byte) error
}
