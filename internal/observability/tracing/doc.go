// Package tracing provides OpenTelemetry tracing integration.
//
// The HTTP middleware creates a span per request, propagates incoming
// trace context (W3C traceparent), and echoes the trace ID back to the
// client via the X-Trace-Id header so enforcement decisions can be
// correlated with distributed traces.
//
// Example usage:
//
//	import "quotaguard/internal/observability/tracing"
//
//	mux := http.NewServeMux()
//	handler := tracing.Middleware(mux)
//
//	func (s *Service) Sweep(ctx context.Context) error {
//	    ctx, span := tracing.GetTracer().Start(ctx, "retention-sweep")
//	    defer span.End()
//	    // ... delete expired rows ...
//	}
package tracing
