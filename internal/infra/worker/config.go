// Package worker provides the runtime scaffolding for the retention
// sweeper binary: configuration, health endpoints, and job metrics.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"quotaguard/pkg/config"
)

// SweeperConfig holds the configuration for the retention sweeper.
// It controls the cron schedule, the retention periods applied to
// counting windows and violation records, and operational parameters.
//
// All fields have defaults and validation rules so the sweeper can
// operate safely even with missing or invalid configuration: invalid
// values fall back to the default with a logged warning.
type SweeperConfig struct {
	// Schedule is the cron expression for sweep runs.
	// Format: "minute hour day month weekday"
	// Default: "0 * * * *" (top of every hour)
	Schedule string

	// Timezone is the IANA timezone name used by the cron scheduler.
	// Retention cutoffs are always computed in UTC regardless of this
	// setting; the timezone only affects when runs fire.
	// Default: "UTC"
	Timezone string

	// WindowRetention is how long ended counting windows are kept
	// before a sweep deletes them.
	// Default: 168h (7 days)
	WindowRetention time.Duration

	// ViolationRetention is how long violation records are kept.
	// Default: 720h (30 days)
	ViolationRetention time.Duration

	// SweepTimeout is the maximum duration for a single sweep run.
	// Default: 5 minutes
	SweepTimeout time.Duration

	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int
}

// DefaultSweeperConfig returns a SweeperConfig with production defaults:
// hourly runs, 7-day window retention, 30-day violation retention.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Schedule:           "0 * * * *",
		Timezone:           "UTC",
		WindowRetention:    7 * 24 * time.Hour,
		ViolationRetention: 30 * 24 * time.Hour,
		SweepTimeout:       5 * time.Minute,
		HealthPort:         9091,
	}
}

// Validate checks the configuration values. All failures are collected
// and returned together.
func (c *SweeperConfig) Validate() error {
	var errs []error

	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.WindowRetention); err != nil {
		errs = append(errs, fmt.Errorf("window retention: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.ViolationRetention); err != nil {
		errs = append(errs, fmt.Errorf("violation retention: %w", err))
	}
	if err := config.ValidateDurationRange(c.SweepTimeout, time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("sweep timeout: %w", err))
	}
	if c.HealthPort < 1024 || c.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("health port: %d out of range 1024-65535", c.HealthPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadSweeperConfigFromEnv loads sweeper configuration from environment
// variables with validation and automatic fallback to defaults.
//
// Environment variables:
//   - SWEEP_SCHEDULE: Cron expression (default: "0 * * * *")
//   - SWEEP_TIMEZONE: IANA timezone name (default: "UTC")
//   - WINDOW_RETENTION: Duration string, e.g. "168h" (default: 7 days)
//   - VIOLATION_RETENTION: Duration string, e.g. "720h" (default: 30 days)
//   - SWEEP_TIMEOUT: Duration string, e.g. "5m" (default: 5 minutes)
//   - SWEEPER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
//
// The function never returns an invalid configuration: each field that
// fails validation is reset to its default, logged, and counted on the
// sweeper metrics.
func LoadSweeperConfigFromEnv(logger *slog.Logger, metrics *SweeperMetrics) SweeperConfig {
	defaults := DefaultSweeperConfig()
	cfg := SweeperConfig{
		Schedule:           config.GetEnvString("SWEEP_SCHEDULE", defaults.Schedule),
		Timezone:           config.GetEnvString("SWEEP_TIMEZONE", defaults.Timezone),
		WindowRetention:    config.GetEnvDuration("WINDOW_RETENTION", defaults.WindowRetention),
		ViolationRetention: config.GetEnvDuration("VIOLATION_RETENTION", defaults.ViolationRetention),
		SweepTimeout:       config.GetEnvDuration("SWEEP_TIMEOUT", defaults.SweepTimeout),
		HealthPort:         config.GetEnvInt("SWEEPER_HEALTH_PORT", defaults.HealthPort),
	}

	fallback := func(field string, err error) {
		logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.Any("error", err))
		if metrics != nil {
			metrics.RecordConfigFallback(field)
		}
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		fallback("schedule", err)
		cfg.Schedule = defaults.Schedule
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		fallback("timezone", err)
		cfg.Timezone = defaults.Timezone
	}
	if err := config.ValidatePositiveDuration(cfg.WindowRetention); err != nil {
		fallback("window_retention", err)
		cfg.WindowRetention = defaults.WindowRetention
	}
	if err := config.ValidatePositiveDuration(cfg.ViolationRetention); err != nil {
		fallback("violation_retention", err)
		cfg.ViolationRetention = defaults.ViolationRetention
	}
	if err := config.ValidateDurationRange(cfg.SweepTimeout, time.Second, time.Hour); err != nil {
		fallback("sweep_timeout", err)
		cfg.SweepTimeout = defaults.SweepTimeout
	}
	if cfg.HealthPort < 1024 || cfg.HealthPort > 65535 {
		fallback("health_port", fmt.Errorf("%d out of range 1024-65535", cfg.HealthPort))
		cfg.HealthPort = defaults.HealthPort
	}

	return cfg
}
