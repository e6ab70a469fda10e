package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	tracesdk "go.opentelemetry.io/otel/trace"
)

// TracerName identifies GenFlow's spans in any configured exporter.
const TracerName = "github.com/mocraimer/genflow"

// NewTracerProvider builds a trace.TracerProvider with no exporter attached,
// suitable for in-process span creation whose value is the context
// propagation (parent/child linking across task attempts and tool calls)
// rather than off-box collection. Callers that want real export register a
// processor with provider.RegisterSpanProcessor before use.
func NewTracerProvider() *trace.TracerProvider {
	return trace.NewTracerProvider()
}

// Tracer returns the package-wide tracer registered with otel's global
// TracerProvider (a no-op provider until one is installed via
// otel.SetTracerProvider).
func Tracer() tracesdk.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span named name as a child of any span in ctx.
func StartSpan(ctx context.Context, name string, attrs ...tracesdk.SpanStartOption) (context.Context, tracesdk.Span) {
	return Tracer().Start(ctx, name, attrs...)
}
