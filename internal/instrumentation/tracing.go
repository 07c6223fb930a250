package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/mvgmail/internal/logging"
)

// TracerName is the tracer name used for all mvgmail spans.
const TracerName = "github.com/teemow/mvgmail"

// Span attribute keys.
const (
	SpanAttrOperation = "gmail.operation"
	SpanAttrMessageID = "gmail.message_id"
	SpanAttrUserHash  = "mvgmail.user_hash"
	SpanAttrOAuthStep = "oauth.step"
)

// UserHash returns the hashed account attribute.
func UserHash(email string) attribute.KeyValue {
	return attribute.String(SpanAttrUserHash, logging.AnonymizeEmail(email))
}

// MessageID returns the message id attribute.
func MessageID(id string) attribute.KeyValue {
	return attribute.String(SpanAttrMessageID, id)
}

// StartSpan starts a new internal span.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartAPISpan starts a client span for a Gmail REST operation.
func StartAPISpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attribute.String(SpanAttrOperation, operation))
	all = append(all, attrs...)

	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "gmail."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartOAuthSpan starts a span for one step of the OAuth flow.
func StartOAuthSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attribute.String(SpanAttrOAuthStep, step))
	all = append(all, attrs...)

	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "oauth."+step,
		trace.WithAttributes(all...),
	)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Status maps err to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// GetTraceID returns the trace ID of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
