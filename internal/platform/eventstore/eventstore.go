package eventstore

import (
	"context"
	"errors"
)

var (
	// ErrConcurrencyConflict is returned when the expected aggregate version
	// does not match the current version, or when an insert collides with an
	// existing (aggregate_id, event_version) pair.
	ErrConcurrencyConflict = errors.New("concurrency conflict: aggregate version mismatch")

	// ErrInvalidEvent is returned when an event in a batch fails validation.
	// Validation runs before anything is written.
	ErrInvalidEvent = errors.New("invalid event")
)

// DomainEvent is an immutable fact recorded against one aggregate stream.
// Every event in an append batch must carry the batch's aggregate id and
// the single tenant id shared by the whole batch.
type DomainEvent struct {
	AggregateID   string
	AggregateType string
	EventType     string
	EventData     map[string]any
	TenantID      string
	Metadata      map[string]any
}

// Store is the interface for appending events to an aggregate stream.
type Store interface {
	// AppendEvents appends events to the stream for aggregateID under the
	// precondition that the stream's current version equals expectedVersion.
	// Versions expectedVersion+1..expectedVersion+len(events) are assigned
	// in list order. An empty batch is a no-op.
	AppendEvents(ctx context.Context, aggregateID string, events []DomainEvent, expectedVersion int) error
}
