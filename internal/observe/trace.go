package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for all vox spans.
const tracerName = "github.com/Jas0nOW/Vox-Voice"

// Tracer returns the process-wide [trace.Tracer] from the globally
// registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSession opens the span covering one pipeline session, tagged with
// the session id. The caller must End the returned span after the manifest
// is written so the span covers artifact persistence too.
func StartSession(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "session",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
}

// Logger returns an [slog.Logger] carrying trace_id and span_id from the
// span in ctx, so process logs can be joined against exported spans. With
// no active span it returns the default logger unchanged.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
