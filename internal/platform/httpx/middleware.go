package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string
type ctxKeyLogger struct{}

const (
	ctxKeyEnv     ctxKey = "env"
	ctxKeyVersion ctxKey = "version"
)

func RecoverPanic(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("%s", rec)

					span := trace.SpanFromContext(r.Context())
					span.RecordError(err)
					span.SetStatus(codes.Error, "panic recovered")

					w.Header().Set("Connection", "close")
					InternalError(w, r, err)
					logger.Error("panic recovered", "panic", rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestLoggerMiddleware injects a per-request logger carrying request_id
// and trace identifiers, and opens a server span for the request path.
func RequestLoggerMiddleware(baseLogger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()

			// The global propagator links this span to an incoming parent
			// trace if the request carries trace headers.
			ctx, span := otel.Tracer("orchestrahq/platform-api").Start(r.Context(), r.URL.Path)
			defer span.End()

			logger := baseLogger.With(
				"request_id", requestID,
				"trace_id", span.SpanContext().TraceID().String(),
				"span_id", span.SpanContext().SpanID().String(),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx = context.WithValue(ctx, ctxKeyLogger{}, logger)
			r = r.WithContext(ctx)

			logger.Info("request started")

			rw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Info("request finished", "status", rw.status)
		})
	}
}

// GetLogger extracts the request-scoped logger from the context, falling
// back to slog.Default() if none is present.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxKeyLogger{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger{}, logger)
}

func SystemContextMiddleware(env, version string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxKeyEnv, env)
			ctx = context.WithValue(ctx, ctxKeyVersion, version)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SystemEnv(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyEnv).(string); ok {
		return v
	}
	return "unknown"
}

func SystemVersion(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyVersion).(string); ok {
		return v
	}
	return "unknown"
}
