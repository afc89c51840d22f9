package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sentinel"

// StartCheckSpan starts a span for one gate check.
func StartCheckSpan(ctx context.Context, sessionID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gate.check",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("action.kind", kind),
		),
	)
}

// StartReportSpan starts a span for one outcome report.
func StartReportSpan(ctx context.Context, sessionID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gate.report",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("action.kind", kind),
		),
	)
}
