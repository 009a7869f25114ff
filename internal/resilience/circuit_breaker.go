// Package resilience implements the resilience layer (spec §4.7): a circuit
// breaker guarding storage calls and a compressed-transport wrapper for
// retrieval payloads.
package resilience

import (
	"log"
	"sync"
	"time"

	"episodic-memory/internal/clock"
	"episodic-memory/internal/types"
)

// CircuitState is the three-state machine described in
// original_source/memory-core/src/storage/circuit_breaker.rs.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker. Defaults match
// original_source/memory-core/src/storage/circuit_breaker.rs.
type CircuitBreakerConfig struct {
	FailureThreshold  int
	Timeout           time.Duration
	HalfOpenTestPeriod time.Duration
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// DefaultCircuitBreakerConfig returns the documented defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:   5,
		Timeout:            30 * time.Second,
		HalfOpenTestPeriod: 10 * time.Second,
		BaseDelay:          100 * time.Millisecond,
		MaxDelay:           1600 * time.Millisecond,
	}
}

// CircuitBreakerStats mirrors the Rust CircuitBreakerStats field names.
type CircuitBreakerStats struct {
	TotalCalls          int64
	SuccessfulCalls     int64
	FailedCalls         int64
	RejectedCalls       int64
	ConsecutiveFailures int
	CircuitOpenedCount  int
}

// CircuitBreaker protects a storage backend from cascading failures by
// failing fast when it is degraded, then probing for recovery.
type CircuitBreaker struct {
	mu     sync.Mutex
	config CircuitBreakerConfig
	clock  clock.Clock

	state            CircuitState
	stats            CircuitBreakerStats
	lastFailureTime  time.Time
	halfOpenStarted  time.Time
}

// NewCircuitBreaker constructs a CircuitBreaker in the Closed state.
func NewCircuitBreaker(config CircuitBreakerConfig, clk clock.Clock) *CircuitBreaker {
	if clk == nil {
		clk = clock.Real{}
	}
	log.Printf("resilience: initializing circuit breaker threshold=%d timeout=%s", config.FailureThreshold, config.Timeout)
	return &CircuitBreaker{
		config: config,
		clock:  clk,
		state:  Closed,
	}
}

// Call executes op under circuit breaker protection, returning ErrCircuitOpen
// without invoking op if the circuit is open. Only errors satisfying
// types.IsRecoverable affect circuit state.
func Call[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	var zero T

	if !cb.shouldAllowRequest() {
		cb.mu.Lock()
		cb.stats.RejectedCalls++
		cb.mu.Unlock()
		return zero, types.NewCircuitOpen("request rejected while circuit is open")
	}

	cb.mu.Lock()
	cb.stats.TotalCalls++
	cb.mu.Unlock()

	result, err := op()
	cb.onResult(err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (cb *CircuitBreaker) shouldAllowRequest() bool {
	now := cb.clock.Now()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true
	case Open:
		if !cb.lastFailureTime.IsZero() && now.Sub(cb.lastFailureTime) >= cb.config.Timeout {
			log.Printf("resilience: circuit breaker transitioning to half-open")
			cb.state = HalfOpen
			cb.halfOpenStarted = now
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) onResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.stats.SuccessfulCalls++
		cb.onSuccessLocked()
		return
	}

	if types.IsRecoverable(err) {
		cb.stats.FailedCalls++
		cb.onFailureLocked()
	}
}

func (cb *CircuitBreaker) onSuccessLocked() {
	switch cb.state {
	case HalfOpen:
		log.Printf("resilience: circuit breaker closing after successful recovery test")
		cb.state = Closed
		cb.stats.ConsecutiveFailures = 0
		cb.lastFailureTime = time.Time{}
		cb.halfOpenStarted = time.Time{}
	case Closed:
		cb.stats.ConsecutiveFailures = 0
	case Open:
		log.Printf("resilience: unexpected success while circuit open")
	}
}

func (cb *CircuitBreaker) onFailureLocked() {
	cb.stats.ConsecutiveFailures++
	cb.lastFailureTime = cb.clock.Now()

	switch cb.state {
	case Closed:
		if cb.stats.ConsecutiveFailures >= cb.config.FailureThreshold {
			log.Printf("resilience: circuit breaker opening after %d consecutive failures", cb.stats.ConsecutiveFailures)
			cb.state = Open
			cb.stats.CircuitOpenedCount++
		}
	case HalfOpen:
		log.Printf("resilience: circuit breaker reopening after failure in half-open state")
		cb.state = Open
		cb.stats.CircuitOpenedCount++
		cb.halfOpenStarted = time.Time{}
	case Open:
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a copy of the current statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset forces the circuit back to Closed. Intended for tests and manual
// operator intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = Closed
	cb.stats.ConsecutiveFailures = 0
	cb.lastFailureTime = time.Time{}
	cb.halfOpenStarted = time.Time{}
}

// CalculateBackoff returns base_delay*2^attempt capped at max_delay.
func (cb *CircuitBreaker) CalculateBackoff(attempt int) time.Duration {
	delay := cb.config.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cb.config.MaxDelay {
			return cb.config.MaxDelay
		}
	}
	if delay > cb.config.MaxDelay {
		return cb.config.MaxDelay
	}
	return delay
}
