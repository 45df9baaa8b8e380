package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	pgRepo "quotaguard/internal/infra/adapter/persistence/postgres"
	"quotaguard/internal/infra/db"
	"quotaguard/internal/observability/logging"
	"quotaguard/internal/observability/slo"
	"quotaguard/internal/observability/tracing"
	"quotaguard/pkg/config"
	"quotaguard/pkg/ratelimit"

	quotaUC "quotaguard/internal/usecase/quota"
	violationUC "quotaguard/internal/usecase/violation"

	hhttp "quotaguard/internal/handler/http"
	hauth "quotaguard/internal/handler/http/auth"
	"quotaguard/internal/handler/http/middleware"
	hquota "quotaguard/internal/handler/http/quota"
	"quotaguard/internal/handler/http/requestid"
	hviolation "quotaguard/internal/handler/http/violation"
)

func main() {
	logger := initLogger()
	validateJWTSecret(logger)
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	version := getVersion()
	components := setupServer(logger, database, version)
	defer components.Recorder.Close()

	runServer(ctx, cancel, logger, components, version)
}

// initLogger initializes the structured JSON logger and installs it as
// the process default.
func initLogger() *slog.Logger {
	logger := logging.WithFields(logging.NewLogger(), map[string]any{"service": "quotaguard-api"})
	slog.SetDefault(logger)
	return logger
}

// validateJWTSecret validates the JWT_SECRET environment variable for security requirements.
func validateJWTSecret(logger *slog.Logger) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}
	// Enforce a minimum of 32 characters (256 bits)
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	// Reject well-known weak secrets
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler  http.Handler
	Recorder *violationUC.Recorder
}

// setupServer configures and returns the HTTP handler with all routes
// and middleware: the IP limiter in front of authentication, the user
// limiter and quota enforcer behind it.
func setupServer(logger *slog.Logger, database *sql.DB, version string) *ServerComponents {
	cfg, err := config.LoadEnforcementConfig()
	if err != nil {
		logger.Error("failed to load enforcement configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Load trusted proxy configuration for IP extraction
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("enforcement: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("enforcement: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	// Repositories over the shared connection pool
	windowRepo := pgRepo.NewWindowRepo(database)
	quotaRepo := pgRepo.NewQuotaRepo(database)
	violationRepo := pgRepo.NewViolationRepo(database)

	// Fire-and-forget violation logging; enforcement never waits on it.
	// The worker runs on its own context, not the server's: shutdown
	// cancels the server context while requests are still draining, and
	// violations queued by those requests must survive until Close.
	recorder := violationUC.NewRecorder(violationRepo, 1024)
	recorder.Start(context.Background())

	// Rate limiting core: one window store, two limiters, separate
	// circuit breakers so an IP-side outage does not blind the user side
	rlMetrics := ratelimit.NewPrometheusMetrics()

	ipBreaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreakerResetTimeout,
		Metrics:          rlMetrics,
		LimiterType:      "ip",
	})
	userBreaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreakerResetTimeout,
		Metrics:          rlMetrics,
		LimiterType:      "user",
	})

	ipLimiter := ratelimit.NewFixedWindowLimiter(ratelimit.FixedWindowLimiterConfig{
		Store:       windowRepo,
		Kind:        "IP",
		LimiterType: "ip",
		Metrics:     rlMetrics,
		Breaker:     ipBreaker,
	})
	userLimiter := ratelimit.NewFixedWindowLimiter(ratelimit.FixedWindowLimiterConfig{
		Store:       windowRepo,
		Kind:        "USER",
		LimiterType: "user",
		Metrics:     rlMetrics,
		Breaker:     userBreaker,
	})

	ipRateLimiter := middleware.NewIPRateLimiter(
		middleware.IPRateLimiterConfig{
			Limit:   cfg.IPLimit,
			Window:  cfg.Window,
			Enabled: cfg.Enabled,
		},
		ipExtractor,
		ipLimiter,
		recorder,
	)

	userRateLimiter := middleware.NewUserRateLimiter(
		middleware.UserRateLimiterConfig{
			RoleLimits:    cfg.RoleLimits,
			FallbackLimit: cfg.RoleLimit(config.RoleUser),
			Window:        cfg.Window,
			Enabled:       cfg.Enabled,
		},
		userLimiter,
		recorder,
	)

	quotaSvc := &quotaUC.Service{
		Repo:  quotaRepo,
		Plans: cfg.PlanQuotas,
	}
	quotaConfig := middleware.DefaultQuotaEnforcerConfig()
	quotaConfig.Enabled = cfg.Enabled
	quotaEnforcer := middleware.NewQuotaEnforcer(quotaConfig, quotaSvc, recorder)

	violationSvc := &violationUC.Service{Repo: violationRepo}

	logger.Info("enforcement initialized",
		slog.Bool("enabled", cfg.Enabled),
		slog.Int("ip_limit", cfg.IPLimit),
		slog.Duration("window", cfg.Window),
		slog.Any("role_limits", cfg.RoleLimits),
		slog.Any("plan_quotas", cfg.PlanQuotas),
	)

	rootMux := setupRoutes(
		database, version, cfg,
		quotaSvc, violationSvc,
		userRateLimiter, quotaEnforcer,
		ipBreaker, userBreaker,
		rlMetrics,
	)
	handler := applyMiddleware(logger, rootMux, ipRateLimiter)

	return &ServerComponents{
		Handler:  handler,
		Recorder: recorder,
	}
}

// setupRoutes registers all HTTP routes (public and protected).
func setupRoutes(
	database *sql.DB,
	version string,
	cfg *config.EnforcementConfig,
	quotaSvc *quotaUC.Service,
	violationSvc *violationUC.Service,
	userRateLimiter *middleware.UserRateLimiter,
	quotaEnforcer *middleware.QuotaEnforcer,
	ipBreaker, userBreaker *ratelimit.CircuitBreaker,
	rlMetrics *ratelimit.PrometheusMetrics,
) *http.ServeMux {
	// Health and metrics endpoints bypass authentication and enforcement
	publicMux := http.NewServeMux()
	publicMux.Handle("/health", &hhttp.HealthHandler{
		DB:                 database,
		Version:            version,
		IPCircuitBreaker:   ipBreaker,
		UserCircuitBreaker: userBreaker,
		RateLimiterEnabled: cfg.Enabled,
	})
	publicMux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	publicMux.Handle("/live", &hhttp.LiveHandler{})
	publicMux.Handle("/metrics", hhttp.MetricsHandler(rlMetrics.Registry()))

	privateMux := http.NewServeMux()
	hquota.Register(privateMux, quotaSvc)

	// Violation analytics are admin-only
	adminMux := http.NewServeMux()
	hviolation.Register(adminMux, violationSvc)
	privateMux.Handle("/admin/", hauth.RequireRole(config.RoleAdmin, config.RoleSuperadmin)(adminMux))

	// Protected chain, outermost first: authentication, then the user
	// rate limit, then the quota. The quota must run last so a request
	// rejected by a rate limit never consumes quota.
	protected := quotaEnforcer.Middleware()(privateMux)
	protected = userRateLimiter.Middleware()(protected)
	protected = hauth.Authn(protected)

	rootMux := http.NewServeMux()
	rootMux.Handle("/health", publicMux)
	rootMux.Handle("/ready", publicMux)
	rootMux.Handle("/live", publicMux)
	rootMux.Handle("/metrics", publicMux)
	rootMux.Handle("/", protected)

	return rootMux
}

// applyMiddleware wraps the handler with the ambient middleware chain.
// Order (outermost first): Input Validation → Request ID → Tracing →
// IP Rate Limit → Recovery → Logging → Timeout → Body Limit → Metrics.
// The IP limiter sits before authentication so anonymous abuse is
// stopped without a claims lookup.
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	chain := handler

	// Apply in reverse order (innermost to outermost)
	chain = hhttp.MetricsMiddleware(chain)
	chain = hhttp.LimitRequestBody(1 << 20)(chain) // 1MB limit
	chain = hhttp.Timeout(30 * time.Second)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = ipRateLimiter.Middleware()(chain)
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)
	chain = hhttp.InputValidation()(chain)

	return chain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, components *ServerComponents, version string) {
	// Periodically recompute the SLO gauges from the gathered HTTP metrics
	go slo.NewUpdater(prometheus.DefaultGatherer, time.Minute, logger).Start(ctx)

	addr := config.GetEnvString("HTTP_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Stop the SLO updater and other context-bound goroutines. The
	// violation recorder is not tied to this context; it drains when
	// Close runs after Shutdown returns.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
