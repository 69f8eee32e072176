package command

import "context"

// Source records where a command originated from.
type Source string

const (
	SourceREST  Source = "rest"  // From the REST API
	SourceEvent Source = "event" // From a NATS message
)

type contextKey string

const sourceKey contextKey = "command_source"

// WithSource adds the command source to the context.
func WithSource(ctx context.Context, source Source) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// GetSource retrieves the command source, defaulting to REST.
func GetSource(ctx context.Context) Source {
	if source, ok := ctx.Value(sourceKey).(Source); ok {
		return source
	}
	return SourceREST
}

// IsFromREST reports whether the command came in over the REST API.
func IsFromREST(ctx context.Context) bool {
	return GetSource(ctx) == SourceREST
}

// IsFromEvent reports whether the command came from a message handler.
func IsFromEvent(ctx context.Context) bool {
	return GetSource(ctx) == SourceEvent
}
