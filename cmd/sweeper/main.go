package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	pgRepo "quotaguard/internal/infra/adapter/persistence/postgres"
	"quotaguard/internal/infra/db"
	"quotaguard/internal/infra/worker"
	"quotaguard/internal/observability/logging"
	"quotaguard/internal/observability/metrics"
	"quotaguard/internal/usecase/sweep"
)

func main() {
	logger := logging.WithFields(logging.NewLogger(), map[string]any{"service": "quotaguard-sweeper"})
	slog.SetDefault(logger)

	sweeperMetrics := worker.NewSweeperMetrics()
	cfg := worker.LoadSweeperConfigFromEnv(logger, sweeperMetrics)

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	svc := &sweep.Service{
		Windows:            pgRepo.NewWindowRepo(database),
		Violations:         pgRepo.NewViolationRepo(database),
		WindowRetention:    cfg.WindowRetention,
		ViolationRetention: cfg.ViolationRetention,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthServer := worker.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler, err := startScheduler(ctx, cfg, svc, sweeperMetrics, logger)
	if err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	healthServer.SetReady(true)

	logger.Info("sweeper started",
		slog.String("schedule", cfg.Schedule),
		slog.String("timezone", cfg.Timezone),
		slog.Duration("window_retention", cfg.WindowRetention),
		slog.Duration("violation_retention", cfg.ViolationRetention),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down sweeper...")

	healthServer.SetReady(false)
	cancel()

	// Wait for an in-flight sweep to finish
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.SweepTimeout):
		logger.Warn("sweep still running at shutdown deadline, exiting")
	}
	logger.Info("sweeper stopped")
}

// startScheduler creates the cron scheduler and registers the sweep job.
func startScheduler(
	ctx context.Context,
	cfg worker.SweeperConfig,
	svc *sweep.Service,
	sweeperMetrics *worker.SweeperMetrics,
	logger *slog.Logger,
) (*cron.Cron, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	scheduler := cron.New(cron.WithLocation(location))
	_, err = scheduler.AddFunc(cfg.Schedule, func() {
		runSweep(ctx, cfg, svc, sweeperMetrics, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("register sweep job: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}

// runSweep executes one sweep with a timeout and records its outcome.
func runSweep(
	ctx context.Context,
	cfg worker.SweeperConfig,
	svc *sweep.Service,
	sweeperMetrics *worker.SweeperMetrics,
	logger *slog.Logger,
) {
	sweepCtx, cancel := context.WithTimeout(ctx, cfg.SweepTimeout)
	defer cancel()

	start := time.Now()
	stats, err := svc.Sweep(sweepCtx)
	duration := time.Since(start)

	if err != nil {
		sweeperMetrics.RecordJobRun("failure")
		metrics.RecordSweepError()
		logger.Error("sweep failed",
			slog.Any("error", err),
			slog.Int64("windows_deleted", stats.WindowsDeleted),
			slog.Int64("violations_deleted", stats.ViolationsDeleted),
			slog.Duration("duration", duration),
		)
		return
	}

	sweeperMetrics.RecordJobRun("success")
	sweeperMetrics.RecordLastSuccess()
	metrics.RecordSweep(stats.WindowsDeleted, stats.ViolationsDeleted, duration)

	logger.Info("sweep completed",
		slog.Int64("windows_deleted", stats.WindowsDeleted),
		slog.Int64("violations_deleted", stats.ViolationsDeleted),
		slog.Duration("duration", duration),
	)
}
