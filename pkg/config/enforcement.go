package config

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Role names recognized by the per-role rate limits.
const (
	RoleViewer     = "viewer"
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Plan names recognized by the per-plan monthly quotas.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// UnlimitedLimit is the sentinel limit that disables enforcement for a
// role or plan. Checks against it always pass without touching the store.
const UnlimitedLimit = 999999

// EnforcementConfig holds the full enforcement configuration: rate limit
// windows and per-role limits, per-plan monthly quotas, retention periods
// for the sweeper, and circuit breaker tuning for the window store.
type EnforcementConfig struct {
	// Enabled controls whether request enforcement runs at all. When
	// false the middleware passes every request through untouched.
	Enabled bool

	// IPLimit is the per-IP request limit for unauthenticated traffic.
	IPLimit int

	// Window is the counting window length shared by IP and user limits.
	Window time.Duration

	// RoleLimits maps a role name to its per-window request limit.
	// A limit of UnlimitedLimit disables the check for that role.
	RoleLimits map[string]int

	// PlanQuotas maps a subscription plan to its monthly usage quota.
	PlanQuotas map[string]int

	// WindowRetention is how long ended counting windows are kept
	// before the sweeper deletes them.
	WindowRetention time.Duration

	// ViolationRetention is how long violation records are kept.
	ViolationRetention time.Duration

	// SweepSchedule is the cron expression for the retention sweeper.
	SweepSchedule string

	// CircuitBreakerFailureThreshold is the number of consecutive store
	// failures before the breaker opens and checks fail open.
	CircuitBreakerFailureThreshold int

	// CircuitBreakerResetTimeout is how long the breaker stays open
	// before probing the store again.
	CircuitBreakerResetTimeout time.Duration
}

// DefaultEnforcementConfig returns the default enforcement configuration.
func DefaultEnforcementConfig() *EnforcementConfig {
	return &EnforcementConfig{
		Enabled: true,
		IPLimit: 100,
		Window:  1 * time.Minute,
		RoleLimits: map[string]int{
			RoleViewer:     50,
			RoleUser:       100,
			RoleAdmin:      500,
			RoleSuperadmin: UnlimitedLimit,
		},
		PlanQuotas: map[string]int{
			PlanFree:       100,
			PlanPro:        1000,
			PlanEnterprise: 10000,
		},
		WindowRetention:                7 * 24 * time.Hour,
		ViolationRetention:             30 * 24 * time.Hour,
		SweepSchedule:                  "0 * * * *",
		CircuitBreakerFailureThreshold: 10,
		CircuitBreakerResetTimeout:     30 * time.Second,
	}
}

// LoadEnforcementConfig loads enforcement configuration from environment
// variables.
//
// This function reads all enforcement configuration from environment
// variables and returns a validated EnforcementConfig. If any values are
// invalid, it logs warnings and uses safe defaults instead of failing.
//
// Environment variables:
//   - RATELIMIT_ENABLED: Enable/disable enforcement (default: true)
//   - RATELIMIT_WINDOW: Counting window length (default: 60s)
//   - RATELIMIT_IP_LIMIT: Per-IP limit for unauthenticated traffic (default: 100)
//   - RATELIMIT_ROLE_VIEWER: Viewer role limit (default: 50)
//   - RATELIMIT_ROLE_USER: User role limit (default: 100)
//   - RATELIMIT_ROLE_ADMIN: Admin role limit (default: 500)
//   - RATELIMIT_ROLE_SUPERADMIN: Superadmin role limit (default: 999999, unlimited)
//   - QUOTA_PLAN_FREE: Free plan monthly quota (default: 100)
//   - QUOTA_PLAN_PRO: Pro plan monthly quota (default: 1000)
//   - QUOTA_PLAN_ENTERPRISE: Enterprise plan monthly quota (default: 10000)
//   - RETENTION_WINDOW_DAYS: Window retention in days (default: 7)
//   - RETENTION_VIOLATION_DAYS: Violation retention in days (default: 30)
//   - SWEEP_SCHEDULE: Cron expression for the retention sweeper (default: "0 * * * *")
//   - RATELIMIT_CB_FAILURE_THRESHOLD: Circuit breaker failure threshold (default: 10)
//   - RATELIMIT_CB_RECOVERY_TIMEOUT: Circuit breaker recovery timeout (default: 30s)
//
// Returns:
//   - *EnforcementConfig: Validated configuration with defaults applied
//   - error: Always nil (validation failures result in warnings and defaults)
//
// Example:
//
//	config, err := LoadEnforcementConfig()
//	if err != nil {
//	    return fmt.Errorf("failed to load enforcement config: %w", err)
//	}
func LoadEnforcementConfig() (*EnforcementConfig, error) {
	defaults := DefaultEnforcementConfig()
	config := &EnforcementConfig{}

	// Feature flag
	config.Enabled = GetEnvBool("RATELIMIT_ENABLED", true)

	// Shared counting window
	window := GetEnvDuration("RATELIMIT_WINDOW", defaults.Window)
	if err := ValidatePositiveDuration(window); err != nil {
		slog.Warn("invalid RATELIMIT_WINDOW, using default",
			slog.String("value", window.String()),
			slog.String("default", defaults.Window.String()),
			slog.String("error", err.Error()))
		window = defaults.Window
	}
	config.Window = window

	// IP-based rate limiting
	ipLimit := GetEnvInt("RATELIMIT_IP_LIMIT", defaults.IPLimit)
	if ipLimit <= 0 {
		slog.Warn("invalid RATELIMIT_IP_LIMIT, using default",
			slog.Int("value", ipLimit),
			slog.Int("default", defaults.IPLimit))
		ipLimit = defaults.IPLimit
	}
	config.IPLimit = ipLimit

	// Per-role limits and per-plan quotas
	config.RoleLimits = loadRoleLimits(defaults.RoleLimits)
	config.PlanQuotas = loadPlanQuotas(defaults.PlanQuotas)

	// Retention
	windowDays := GetEnvInt("RETENTION_WINDOW_DAYS", 7)
	if windowDays <= 0 {
		slog.Warn("invalid RETENTION_WINDOW_DAYS, using default",
			slog.Int("value", windowDays),
			slog.Int("default", 7))
		windowDays = 7
	}
	config.WindowRetention = time.Duration(windowDays) * 24 * time.Hour

	violationDays := GetEnvInt("RETENTION_VIOLATION_DAYS", 30)
	if violationDays <= 0 {
		slog.Warn("invalid RETENTION_VIOLATION_DAYS, using default",
			slog.Int("value", violationDays),
			slog.Int("default", 30))
		violationDays = 30
	}
	config.ViolationRetention = time.Duration(violationDays) * 24 * time.Hour

	config.SweepSchedule = GetEnvString("SWEEP_SCHEDULE", defaults.SweepSchedule)

	// Circuit breaker
	cbFailureThreshold := GetEnvInt("RATELIMIT_CB_FAILURE_THRESHOLD", defaults.CircuitBreakerFailureThreshold)
	if cbFailureThreshold <= 0 {
		slog.Warn("invalid RATELIMIT_CB_FAILURE_THRESHOLD, using default",
			slog.Int("value", cbFailureThreshold),
			slog.Int("default", defaults.CircuitBreakerFailureThreshold))
		cbFailureThreshold = defaults.CircuitBreakerFailureThreshold
	}
	config.CircuitBreakerFailureThreshold = cbFailureThreshold

	cbResetTimeout := GetEnvDuration("RATELIMIT_CB_RECOVERY_TIMEOUT", defaults.CircuitBreakerResetTimeout)
	if err := ValidatePositiveDuration(cbResetTimeout); err != nil {
		slog.Warn("invalid RATELIMIT_CB_RECOVERY_TIMEOUT, using default",
			slog.String("value", cbResetTimeout.String()),
			slog.String("default", defaults.CircuitBreakerResetTimeout.String()),
			slog.String("error", err.Error()))
		cbResetTimeout = defaults.CircuitBreakerResetTimeout
	}
	config.CircuitBreakerResetTimeout = cbResetTimeout

	// Validate the entire configuration
	if err := config.Validate(); err != nil {
		slog.Warn("enforcement configuration validation failed, applying defaults",
			slog.String("error", err.Error()))
		config.ApplyDefaults()
	}

	return config, nil
}

// loadRoleLimits loads per-role rate limits from environment variables.
//
// Environment variables:
//   - RATELIMIT_ROLE_VIEWER: Viewer role limit (default: 50)
//   - RATELIMIT_ROLE_USER: User role limit (default: 100)
//   - RATELIMIT_ROLE_ADMIN: Admin role limit (default: 500)
//   - RATELIMIT_ROLE_SUPERADMIN: Superadmin role limit (default: unlimited)
//
// All role limits share the counting window from RATELIMIT_WINDOW.
func loadRoleLimits(defaults map[string]int) map[string]int {
	envKeys := map[string]string{
		RoleViewer:     "RATELIMIT_ROLE_VIEWER",
		RoleUser:       "RATELIMIT_ROLE_USER",
		RoleAdmin:      "RATELIMIT_ROLE_ADMIN",
		RoleSuperadmin: "RATELIMIT_ROLE_SUPERADMIN",
	}

	limits := make(map[string]int, len(defaults))
	for role, key := range envKeys {
		limit := GetEnvInt(key, defaults[role])
		if limit <= 0 {
			slog.Warn("invalid role limit, using default",
				slog.String("key", key),
				slog.Int("value", limit),
				slog.Int("default", defaults[role]))
			limit = defaults[role]
		}
		limits[role] = limit
	}
	return limits
}

// loadPlanQuotas loads per-plan monthly quotas from environment variables.
//
// Environment variables:
//   - QUOTA_PLAN_FREE: Free plan monthly quota (default: 100)
//   - QUOTA_PLAN_PRO: Pro plan monthly quota (default: 1000)
//   - QUOTA_PLAN_ENTERPRISE: Enterprise plan monthly quota (default: 10000)
func loadPlanQuotas(defaults map[string]int) map[string]int {
	envKeys := map[string]string{
		PlanFree:       "QUOTA_PLAN_FREE",
		PlanPro:        "QUOTA_PLAN_PRO",
		PlanEnterprise: "QUOTA_PLAN_ENTERPRISE",
	}

	quotas := make(map[string]int, len(defaults))
	for plan, key := range envKeys {
		quota := GetEnvInt(key, defaults[plan])
		if quota <= 0 {
			slog.Warn("invalid plan quota, using default",
				slog.String("key", key),
				slog.Int("value", quota),
				slog.Int("default", defaults[plan]))
			quota = defaults[plan]
		}
		quotas[plan] = quota
	}
	return quotas
}

// RoleLimit returns the per-window limit for a role. Unknown or empty
// roles fall back to the user role limit.
func (c *EnforcementConfig) RoleLimit(role string) int {
	if limit, ok := c.RoleLimits[role]; ok {
		return limit
	}
	return c.RoleLimits[RoleUser]
}

// PlanQuota returns the monthly quota for a plan. Unknown or empty plans
// fall back to the free plan quota.
func (c *EnforcementConfig) PlanQuota(plan string) int {
	if quota, ok := c.PlanQuotas[plan]; ok {
		return quota
	}
	return c.PlanQuotas[PlanFree]
}

// Validate checks the configuration for internal consistency.
//
// Returns:
//   - error: nil if valid, error describing the first problem otherwise
func (c *EnforcementConfig) Validate() error {
	if c.IPLimit <= 0 {
		return fmt.Errorf("IP limit must be positive, got %d", c.IPLimit)
	}
	if err := ValidatePositiveDuration(c.Window); err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if len(c.RoleLimits) == 0 {
		return fmt.Errorf("role limits must not be empty")
	}
	for role, limit := range c.RoleLimits {
		if limit <= 0 {
			return fmt.Errorf("role %q limit must be positive, got %d", role, limit)
		}
	}
	if len(c.PlanQuotas) == 0 {
		return fmt.Errorf("plan quotas must not be empty")
	}
	for plan, quota := range c.PlanQuotas {
		if quota <= 0 {
			return fmt.Errorf("plan %q quota must be positive, got %d", plan, quota)
		}
	}
	if err := ValidatePositiveDuration(c.WindowRetention); err != nil {
		return fmt.Errorf("invalid window retention: %w", err)
	}
	if err := ValidatePositiveDuration(c.ViolationRetention); err != nil {
		return fmt.Errorf("invalid violation retention: %w", err)
	}
	if c.SweepSchedule == "" {
		return fmt.Errorf("sweep schedule must not be empty")
	}
	if c.CircuitBreakerFailureThreshold <= 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive, got %d", c.CircuitBreakerFailureThreshold)
	}
	if err := ValidatePositiveDuration(c.CircuitBreakerResetTimeout); err != nil {
		return fmt.Errorf("invalid circuit breaker reset timeout: %w", err)
	}
	return nil
}

// ApplyDefaults resets the configuration to the default values, keeping
// only the Enabled flag as set.
func (c *EnforcementConfig) ApplyDefaults() {
	enabled := c.Enabled
	*c = *DefaultEnforcementConfig()
	c.Enabled = enabled
}

// ValidateTrustedProxies validates a list of CIDR ranges for trusted proxies.
//
// Each entry must be in valid CIDR notation (e.g., "10.0.0.0/8").
//
// Parameters:
//   - cidrs: List of CIDR ranges to validate
//
// Returns:
//   - error: nil if all CIDRs are valid, error otherwise
//
// Example:
//
//	cidrs := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
//	if err := ValidateTrustedProxies(cidrs); err != nil {
//	    return fmt.Errorf("invalid trusted proxies: %w", err)
//	}
func ValidateTrustedProxies(cidrs []string) error {
	for _, cidr := range cidrs {
		if cidr == "" {
			return fmt.Errorf("CIDR cannot be empty")
		}
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
	}
	return nil
}
