// Package requestid tags every request with a correlation ID so an
// enforcement decision can be traced from access log to violation record.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// maxInboundLength caps client-supplied IDs; anything longer is replaced
// so a caller cannot stuff arbitrary content into the logs.
const maxInboundLength = 128

type ctxKey struct{}

// FromContext returns the request ID, or "" when the middleware did not run.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithRequestID returns a context carrying the given ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware reuses a sane inbound X-Request-ID or mints a fresh UUID,
// stores the ID on the request context, and echoes it on the response so
// clients can quote it when reporting a rejected call.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxInboundLength {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
