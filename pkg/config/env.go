// Package config provides the environment-driven configuration layer for
// the enforcement services. Readers never fail: a malformed value falls
// back to the caller's default with a logged warning, so a bad deploy
// degrades to known limits instead of refusing to start.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the named variable, or fallback when unset or empty.
func GetEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt parses the named variable as a base-10 integer.
func GetEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		warnFallback(key, raw, strconv.Itoa(fallback), err)
		return fallback
	}
	return v
}

// GetEnvBool parses the named variable with strconv.ParseBool semantics:
// "1", "t", "true" (any of the usual casings) and their negations.
func GetEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		warnFallback(key, raw, strconv.FormatBool(fallback), err)
		return fallback
	}
	return v
}

// GetEnvDuration parses the named variable with time.ParseDuration
// ("60s", "1m", "1h30m").
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		warnFallback(key, raw, fallback.String(), err)
		return fallback
	}
	return v
}

// GetEnvStringList splits the named variable on commas, trimming
// whitespace and dropping empty elements. A variable that yields no
// elements falls back.
func GetEnvStringList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// warnFallback records one rejected value. The default is included so
// operators can see what the service actually runs with.
func warnFallback(key, raw, fallback string, err error) {
	slog.Warn("rejecting environment value, using default",
		slog.String("key", key),
		slog.String("value", raw),
		slog.String("default", fallback),
		slog.String("error", err.Error()))
}
