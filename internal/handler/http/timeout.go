package http

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout returns middleware that bounds each request to d. When the
// handler does not finish in time the client gets a 504 with a JSON body,
// and whatever the handler writes afterwards is discarded. The handler's
// context is cancelled at the deadline so store calls unwind instead of
// piling up behind a slow database.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}
			done := make(chan struct{})

			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				gw.timeout()
			}
		})
	}
}

// guardedWriter serializes the handler goroutine and the timeout path.
// Once timeout() wins, handler writes report http.ErrHandlerTimeout.
type guardedWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	wrote    bool
	timedOut bool
}

func (g *guardedWriter) WriteHeader(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timedOut || g.wrote {
		return
	}
	g.wrote = true
	g.ResponseWriter.WriteHeader(status)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !g.wrote {
		g.wrote = true
		g.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return g.ResponseWriter.Write(b)
}

// timeout writes the 504 response unless the handler already responded.
func (g *guardedWriter) timeout() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.timedOut = true
	if g.wrote {
		return
	}
	g.wrote = true
	g.ResponseWriter.Header().Set("Content-Type", "application/json")
	g.ResponseWriter.WriteHeader(http.StatusGatewayTimeout)
	_, _ = g.ResponseWriter.Write([]byte(`{"error":"request timeout"}`))
}
