package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("quotaguard")

// GetTracer returns the service tracer for spans opened outside the
// HTTP middleware, such as sweeper runs.
func GetTracer() trace.Tracer {
	return tracer
}
