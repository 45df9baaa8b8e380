package middleware

import (
	"net/http"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/handler/http/auth"
	"quotaguard/pkg/ratelimit"
)

// UserRateLimiterConfig holds configuration for the user-based rate limiter.
type UserRateLimiterConfig struct {
	// RoleLimits maps a role name to its per-window request limit. A
	// limit of ratelimit.UnlimitedLimit disables the check for that
	// role entirely; no window row is ever written for it.
	RoleLimits map[string]int

	// FallbackLimit applies when a token carries a role with no entry
	// in RoleLimits.
	// Default: 100
	FallbackLimit int

	// Window is the counting window length.
	// Default: 1 minute
	Window time.Duration

	// Enabled controls whether rate limiting is active.
	// Default: true
	Enabled bool
}

// DefaultUserRateLimiterConfig returns the default configuration for
// user-based rate limiting: the standard role ladder over a one-minute
// window.
func DefaultUserRateLimiterConfig() UserRateLimiterConfig {
	return UserRateLimiterConfig{
		RoleLimits: map[string]int{
			"viewer":     50,
			"user":       100,
			"admin":      500,
			"superadmin": ratelimit.UnlimitedLimit,
		},
		FallbackLimit: 100,
		Window:        1 * time.Minute,
		Enabled:       true,
	}
}

// UserRateLimiter implements HTTP middleware for per-user rate limiting.
//
// It keys windows on the authenticated user ID and picks the limit from
// the caller's role, so a viewer and an admin sharing an IP are counted
// separately and against different ceilings. Requests without claims in
// the context pass through untouched; the IP limiter in front of the
// authentication middleware already covers anonymous traffic.
type UserRateLimiter struct {
	config     UserRateLimiterConfig
	limiter    *ratelimit.FixedWindowLimiter
	violations ViolationRecorder
	clock      ratelimit.Clock
}

// NewUserRateLimiter creates a new user-based rate limiter middleware.
func NewUserRateLimiter(
	config UserRateLimiterConfig,
	limiter *ratelimit.FixedWindowLimiter,
	violations ViolationRecorder,
) *UserRateLimiter {
	if config.FallbackLimit <= 0 {
		config.FallbackLimit = 100
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Minute
	}
	if violations == nil {
		violations = noopViolationRecorder{}
	}

	return &UserRateLimiter{
		config:     config,
		limiter:    limiter,
		violations: violations,
		clock:      &ratelimit.SystemClock{},
	}
}

// Middleware returns an HTTP middleware function that enforces
// user-based rate limiting.
//
// Request Flow:
//  1. Check if rate limiting is enabled (skip if disabled)
//  2. Read the caller's claims from the context (skip if absent)
//  3. Resolve the limit from the caller's role
//  4. Check the user's counting window (fail-open inside the limiter)
//  5. Set rate limit headers (X-RateLimit-*)
//  6. If limit exceeded, record a violation and return 429 with Retry-After
//
// Unlimited roles still get X-RateLimit-* headers; the values report
// the sentinel limit so clients can tell no ceiling applies.
func (rl *UserRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			claims := auth.FromContext(r.Context())
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			limit := rl.roleLimit(claims.Role)
			decision := rl.limiter.Check(r.Context(), claims.UserID, r.URL.Path, limit, rl.config.Window)

			setRateLimitHeaders(w, decision, "user")

			if decision.IsDenied() {
				rl.reject(w, r, claims.UserID, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *UserRateLimiter) roleLimit(role string) int {
	if limit, ok := rl.config.RoleLimits[role]; ok {
		return limit
	}
	return rl.config.FallbackLimit
}

func (rl *UserRateLimiter) reject(w http.ResponseWriter, r *http.Request, userID string, decision *ratelimit.Decision) {
	rl.violations.Record(entity.NewViolationRecord(
		userID,
		entity.KindUser,
		entity.ViolationUserRate,
		int64(decision.Limit)+1,
		int64(decision.Limit),
		r.URL.Path,
		r.UserAgent(),
		rl.clock.Now(),
	))

	writeRateLimitExceeded(w, r, decision, "Too many requests for this account")
}
