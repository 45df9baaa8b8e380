package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthServer exposes the sweeper's probe and metrics endpoints on a
// side port. The sweeper serves no tenant traffic of its own, so this
// is the only way the kubelet or an operator can observe it.
//
//	GET /health        liveness, always 200
//	GET /health/ready  readiness, 503 until the scheduler runs
//	GET /metrics       Prometheus exposition
type HealthServer struct {
	addr   string
	logger *slog.Logger
	ready  atomic.Bool
}

func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	return &HealthServer{addr: addr, logger: logger}
}

// SetReady flips the readiness probe. The sweeper marks itself ready
// once the cron scheduler is running, and not ready again at shutdown
// before the in-flight sweep drains.
func (h *HealthServer) SetReady(ready bool) {
	h.ready.Store(ready)
	h.logger.Info("sweeper readiness changed", slog.Bool("ready", ready))
}

// Start serves until ctx is cancelled, then shuts down with a 5 second
// deadline. Returns http.ErrServerClosed after a clean shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         h.addr,
		Handler:      h.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server listening", slog.String("addr", h.addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

func (h *HealthServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h.writeStatus(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if h.ready.Load() {
			h.writeStatus(w, http.StatusOK, "ok")
			return
		}
		h.writeStatus(w, http.StatusServiceUnavailable, "not ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (h *HealthServer) writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
