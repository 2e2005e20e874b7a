package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name used for all spans of this module.
const TracerName = "github.com/teemow/mcp-gmail"

// Span attribute keys.
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrReadOnly  = "mcp.read_only"
	SpanAttrMutating  = "mcp.mutating"
	SpanAttrService   = "google.service"
	SpanAttrOperation = "google.operation"
	SpanAttrAttempts  = "google.attempts"
	SpanAttrAccount   = "gmail.account"
	SpanAttrMessageID = "gmail.message_id"
	SpanAttrThreadID  = "gmail.thread_id"
)

// ToolSpan describes a tool call. Empty string fields are not recorded.
type ToolSpan struct {
	Tool      string
	Account   string
	MessageID string
	ThreadID  string
	ReadOnly  bool
	Mutating  bool
}

func (s ToolSpan) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SpanAttrTool, s.Tool),
		attribute.Bool(SpanAttrReadOnly, s.ReadOnly),
		attribute.Bool(SpanAttrMutating, s.Mutating),
	}
	for _, kv := range []struct{ key, value string }{
		{SpanAttrAccount, s.Account},
		{SpanAttrMessageID, s.MessageID},
		{SpanAttrThreadID, s.ThreadID},
	} {
		if kv.value != "" {
			attrs = append(attrs, attribute.String(kv.key, kv.value))
		}
	}
	return attrs
}

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartToolSpan starts the server span "tool.<name>" of an MCP tool call.
func StartToolSpan(ctx context.Context, s ToolSpan) (context.Context, trace.Span) {
	return tracer().Start(ctx, "tool."+s.Tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(s.attributes()...),
	)
}

// StartGmailSpan starts the client span "google.gmail.<operation>" that
// covers one invoker call, retries included.
func StartGmailSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "google."+ServiceGmail+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(SpanAttrService, ServiceGmail),
			attribute.String(SpanAttrOperation, operation),
		),
	)
}

// EndSpan sets the span status from err, adds attrs and ends the span.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
