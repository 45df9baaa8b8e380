package ratelimit

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds configuration for the store circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive store failures required
	// to open the circuit.
	// Default: 10
	FailureThreshold int

	// RecoveryTimeout is the duration to wait in the open state before
	// attempting recovery (half-open state).
	// Default: 30 seconds
	RecoveryTimeout time.Duration

	// Metrics for recording circuit state changes.
	// Default: NoOpMetrics
	Metrics RateLimitMetrics

	// LimiterType identifies which rate limiter this circuit breaker protects.
	// Examples: "ip", "user"
	LimiterType string
}

// CircuitBreaker protects rate limit store operations with the circuit
// breaker pattern, using github.com/sony/gobreaker underneath.
//
// The limiter wraps every store call in Execute. While the circuit is open,
// Execute fails fast without touching the store, so a dead database costs
// one state lookup instead of a connection timeout per request. The limiter
// translates the fast failure into a fail-open admit.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	config  CircuitBreakerConfig
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
//
// If config.FailureThreshold is 0, it defaults to 10.
// If config.RecoveryTimeout is 0, it defaults to 30 seconds.
// If config.Metrics is nil, it defaults to NoOpMetrics.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}

	settings := gobreaker.Settings{
		Name:        "ratelimit-store-" + config.LimiterType,
		MaxRequests: 1,
		Timeout:     config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			config.Metrics.RecordCircuitState(config.LimiterType, to.String())
			slog.Warn("rate limit store circuit state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	config.Metrics.RecordCircuitState(config.LimiterType, gobreaker.StateClosed.String())

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		config:  config,
	}
}

// Execute runs the given store operation through the circuit breaker.
//
// If the circuit is open, it returns gobreaker.ErrOpenState immediately
// without executing the operation.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
