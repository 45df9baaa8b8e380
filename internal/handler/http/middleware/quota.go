package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/handler/http/auth"
	"quotaguard/internal/observability/metrics"
	quotaUC "quotaguard/internal/usecase/quota"
	"quotaguard/pkg/ratelimit"
)

// QuotaEnforcerConfig holds configuration for the quota middleware.
type QuotaEnforcerConfig struct {
	// MeteredPrefixes lists the path prefixes that consume quota. A
	// request whose path matches none of them passes through without
	// touching the quota store. Empty means every request is metered.
	MeteredPrefixes []string

	// ExemptPaths lists exact paths that never consume quota even when
	// they fall under a metered prefix. The quota status endpoint lives
	// here: checking your remaining quota must not spend it.
	ExemptPaths []string

	// Enabled controls whether quota enforcement is active.
	// Default: true
	Enabled bool

	// FailOpenLogEvery throttles the operational error log emitted when
	// the quota store is unreachable and requests are admitted anyway.
	// Default: one log per 10 seconds
	FailOpenLogEvery time.Duration
}

// DefaultQuotaEnforcerConfig returns the default quota middleware
// configuration: everything under /api/ is metered except the quota
// status endpoint.
func DefaultQuotaEnforcerConfig() QuotaEnforcerConfig {
	return QuotaEnforcerConfig{
		MeteredPrefixes: []string{"/api/"},
		ExemptPaths:     []string{"/api/quota"},
		Enabled:         true,
	}
}

// QuotaEnforcer implements HTTP middleware for monthly usage quotas.
//
// Each metered request consumes one unit of the caller organization's
// quota for the current UTC month. Users without an organization are
// never metered. When the quota store fails, the request is admitted
// and the fault is logged at a throttled rate: quota outages degrade
// billing accuracy, never availability.
type QuotaEnforcer struct {
	config      QuotaEnforcerConfig
	quota       *quotaUC.Service
	violations  ViolationRecorder
	clock       ratelimit.Clock
	failOpenLog *rate.Limiter
}

// NewQuotaEnforcer creates a new quota enforcement middleware.
func NewQuotaEnforcer(
	config QuotaEnforcerConfig,
	quota *quotaUC.Service,
	violations ViolationRecorder,
) *QuotaEnforcer {
	logEvery := config.FailOpenLogEvery
	if logEvery <= 0 {
		logEvery = 10 * time.Second
	}
	if violations == nil {
		violations = noopViolationRecorder{}
	}

	return &QuotaEnforcer{
		config:      config,
		quota:       quota,
		violations:  violations,
		clock:       &ratelimit.SystemClock{},
		failOpenLog: rate.NewLimiter(rate.Every(logEvery), 1),
	}
}

// Middleware returns an HTTP middleware function that enforces monthly
// usage quotas.
//
// Request Flow:
//  1. Check if quota enforcement is enabled (skip if disabled)
//  2. Check if the path is metered (skip if not)
//  3. Read the caller's claims (skip org-less callers)
//  4. Consume one unit of the organization's quota
//  5. Set quota headers (X-Quota-*)
//  6. If the quota is exhausted, record a violation and return 429
//
// HTTP Response Headers:
//   - X-Quota-Limit: Monthly quota snapshotted on the current period
//   - X-Quota-Remaining: Units left this month
//   - X-Quota-Reset: Unix timestamp of the next period start
//
// HTTP Status Codes:
//   - 429 Too Many Requests: Quota exhausted ("quota_exceeded" body)
//
// A quota store failure admits the request without quota headers; the
// client cannot tell the difference and the fault is visible only in
// logs and metrics. The middleware never returns a 500 of its own.
func (qe *QuotaEnforcer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !qe.config.Enabled || !qe.metered(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			claims := auth.FromContext(r.Context())
			if claims == nil || claims.OrganizationID == "" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			decision, err := qe.quota.CheckAndReserve(r.Context(), claims.OrganizationID, claims.Plan)
			elapsed := time.Since(start)

			if err != nil {
				metrics.RecordQuotaCheck(metrics.QuotaResultFailOpen, elapsed)
				qe.failOpen(r, claims.OrganizationID, err)
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordQuotaCheck(quotaResult(decision), elapsed)
			setQuotaHeaders(w, decision)

			if !decision.Allowed {
				qe.reject(w, r, claims, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// quotaResult maps a quota decision to its metrics label.
func quotaResult(d *quotaUC.Decision) string {
	switch {
	case d == nil:
		return metrics.QuotaResultFailOpen
	case d.Unlimited:
		return metrics.QuotaResultUnlimited
	case d.Allowed:
		return metrics.QuotaResultAllowed
	default:
		return metrics.QuotaResultDenied
	}
}

func (qe *QuotaEnforcer) metered(path string) bool {
	for _, exempt := range qe.config.ExemptPaths {
		if path == exempt {
			return false
		}
	}
	if len(qe.config.MeteredPrefixes) == 0 {
		return true
	}
	for _, prefix := range qe.config.MeteredPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// failOpen admits a request past a broken quota store and logs the
// fault at a throttled rate.
func (qe *QuotaEnforcer) failOpen(r *http.Request, orgID string, err error) {
	if qe.failOpenLog.Allow() {
		slog.Error("quota store unavailable, failing open",
			slog.String("organization_id", orgID),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
}

// reject records the violation and writes the 429 response.
func (qe *QuotaEnforcer) reject(w http.ResponseWriter, r *http.Request, claims *auth.Claims, decision *quotaUC.Decision) {
	qe.violations.Record(entity.NewViolationRecord(
		claims.OrganizationID,
		entity.KindOrganization,
		entity.ViolationQuota,
		decision.Used+1,
		decision.Limit,
		r.URL.Path,
		r.UserAgent(),
		qe.clock.Now(),
	))

	writeQuotaExceeded(w, r, claims.Plan, decision)
}

// setQuotaHeaders sets the quota HTTP headers on the response.
func setQuotaHeaders(w http.ResponseWriter, decision *quotaUC.Decision) {
	if decision == nil || decision.Unlimited {
		return
	}

	w.Header().Set("X-Quota-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-Quota-Remaining", strconv.FormatInt(decision.Remaining(), 10))
	w.Header().Set("X-Quota-Reset", strconv.FormatInt(decision.ResetsAt.Unix(), 10))
}

// writeQuotaExceeded writes a 429 Too Many Requests response for an
// exhausted quota.
//
// Response format:
//
//	{
//	  "error": "quota_exceeded",
//	  "message": "Monthly usage quota exhausted",
//	  "quota_limit": 1000,
//	  "quota_used": 1000,
//	  "reset_at": "2025-07-01T00:00:00Z",
//	  "plan": "pro",
//	  "upgrade": "Upgrade your plan to raise the monthly quota"
//	}
func writeQuotaExceeded(w http.ResponseWriter, r *http.Request, plan string, decision *quotaUC.Decision) {
	retryAfter := int64(time.Until(decision.ResetsAt).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":       "quota_exceeded",
		"message":     "Monthly usage quota exhausted",
		"quota_limit": decision.Limit,
		"quota_used":  decision.Used,
		"reset_at":    decision.ResetsAt.UTC().Format(time.RFC3339),
		"plan":        plan,
		"upgrade":     "Upgrade your plan to raise the monthly quota",
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("quota enforcer: failed to encode JSON response",
			slog.String("error", err.Error()),
		)
	}

	slog.Warn("quota exceeded",
		slog.Int64("quota_limit", decision.Limit),
		slog.Int64("quota_used", decision.Used),
		slog.String("plan", plan),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)
}
