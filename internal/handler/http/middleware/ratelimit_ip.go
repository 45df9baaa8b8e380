package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quotaguard/internal/domain/entity"
	"quotaguard/pkg/ratelimit"
)

// IPRateLimiterConfig holds configuration for the IP-based rate limiter.
type IPRateLimiterConfig struct {
	// Limit is the maximum number of requests per IP within the window.
	// Default: 100
	Limit int

	// Window is the counting window length.
	// Default: 1 minute
	Window time.Duration

	// Enabled controls whether rate limiting is active.
	// Default: true
	Enabled bool
}

// DefaultIPRateLimiterConfig returns the default configuration for IP-based rate limiting.
func DefaultIPRateLimiterConfig() IPRateLimiterConfig {
	return IPRateLimiterConfig{
		Limit:   100,
		Window:  1 * time.Minute,
		Enabled: true,
	}
}

// IPRateLimiter implements HTTP middleware for IP-based rate limiting.
//
// This middleware is a thin HTTP adapter over pkg/ratelimit:
//   - Extracts client IP addresses using the IPExtractor interface
//   - Checks the IP against its fixed counting window
//   - Returns 429 Too Many Requests when the limit is exceeded
//   - Sets rate limit headers (X-RateLimit-*)
//   - Records one violation per rejected request
//
// The limiter itself owns fail-open behavior: a store outage admits
// requests rather than failing them, so this middleware never returns
// an error status other than 429.
type IPRateLimiter struct {
	config      IPRateLimiterConfig
	ipExtractor IPExtractor
	limiter     *ratelimit.FixedWindowLimiter
	violations  ViolationRecorder
	clock       ratelimit.Clock
}

// NewIPRateLimiter creates a new IP-based rate limiter middleware.
//
// Parameters:
//   - config: Configuration for rate limiting behavior
//   - ipExtractor: Strategy for extracting client IP addresses
//   - limiter: Fixed-window limiter backed by the window store
//   - violations: Sink for violation records (nil disables recording)
//
// Returns a new IPRateLimiter instance.
func NewIPRateLimiter(
	config IPRateLimiterConfig,
	ipExtractor IPExtractor,
	limiter *ratelimit.FixedWindowLimiter,
	violations ViolationRecorder,
) *IPRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Minute
	}
	if violations == nil {
		violations = noopViolationRecorder{}
	}

	return &IPRateLimiter{
		config:      config,
		ipExtractor: ipExtractor,
		limiter:     limiter,
		violations:  violations,
		clock:       &ratelimit.SystemClock{},
	}
}

// Middleware returns an HTTP middleware function that enforces IP-based rate limiting.
//
// Request Flow:
//  1. Check if rate limiting is enabled (skip if disabled)
//  2. Extract client IP using IPExtractor
//  3. Check the IP's counting window (fail-open inside the limiter)
//  4. Set rate limit headers (X-RateLimit-*)
//  5. If limit exceeded, record a violation and return 429 with Retry-After
//  6. If allowed, proceed to next handler
//
// HTTP Response Headers:
//   - X-RateLimit-Limit: Maximum requests allowed in window
//   - X-RateLimit-Remaining: Remaining requests in current window
//   - X-RateLimit-Reset: Unix timestamp when the window ends
//   - X-RateLimit-Type: "ip"
//   - Retry-After: Seconds to wait before retrying (only when limited)
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip, err := rl.ipExtractor.ExtractIP(r)
			if err != nil {
				// IP extraction failed: log and allow, an unparseable
				// peer address must not take the API down.
				slog.Error("IP rate limiter: failed to extract IP, allowing request",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			decision := rl.limiter.Check(r.Context(), ip, r.URL.Path, rl.config.Limit, rl.config.Window)

			setRateLimitHeaders(w, decision, "ip")

			if decision.IsDenied() {
				rl.reject(w, r, ip, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// reject records the violation and writes the 429 response.
func (rl *IPRateLimiter) reject(w http.ResponseWriter, r *http.Request, ip string, decision *ratelimit.Decision) {
	rl.violations.Record(entity.NewViolationRecord(
		ip,
		entity.KindIP,
		entity.ViolationIPRate,
		int64(decision.Limit)+1,
		int64(decision.Limit),
		r.URL.Path,
		r.UserAgent(),
		rl.clock.Now(),
	))

	writeRateLimitExceeded(w, r, decision, "Too many requests from this IP address")
}

// setRateLimitHeaders sets the rate limit HTTP headers on the response.
//
// Headers:
//   - X-RateLimit-Limit: Maximum requests allowed in window
//   - X-RateLimit-Remaining: Remaining requests in current window
//   - X-RateLimit-Reset: Unix timestamp when the window ends
//   - X-RateLimit-Type: limiter type ("ip" or "user")
func setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.Decision, limiterType string) {
	if decision == nil {
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))
	w.Header().Set("X-RateLimit-Type", limiterType)
}

// writeRateLimitExceeded writes a 429 Too Many Requests response.
//
// Response format:
//
//	{
//	  "error": "rate_limit_exceeded",
//	  "message": "Too many requests from this IP address",
//	  "retry_after": 45
//	}
//
// HTTP Headers:
//   - Content-Type: application/json
//   - Retry-After: Seconds to wait before retrying
func writeRateLimitExceeded(w http.ResponseWriter, r *http.Request, decision *ratelimit.Decision, message string) {
	retryAfter := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     message,
		"retry_after": retryAfter,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("rate limiter: failed to encode JSON response",
			slog.String("error", err.Error()),
		)
	}

	slog.Warn("rate limit exceeded",
		slog.String("limiter_type", decision.LimiterType),
		slog.String("key", decision.Key),
		slog.Int("limit", decision.Limit),
		slog.Int64("retry_after", retryAfter),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)
}
