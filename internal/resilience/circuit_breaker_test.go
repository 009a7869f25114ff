package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/clock"
	"episodic-memory/internal/types"
)

func testConfig(failureThreshold int, timeout time.Duration) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:   failureThreshold,
		Timeout:            timeout,
		HalfOpenTestPeriod: time.Second,
		BaseDelay:          100 * time.Millisecond,
		MaxDelay:           1600 * time.Millisecond,
	}
}

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(5, 30*time.Second), clock.NewMock(time.Now()))
	assert.Equal(t, Closed, cb.State())
}

func TestSuccessfulCallRecordsStats(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(5, 30*time.Second), clock.NewMock(time.Now()))
	result, err := Call(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	stats := cb.Stats()
	assert.Equal(t, int64(1), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.SuccessfulCalls)
	assert.Equal(t, int64(0), stats.FailedCalls)
}

func TestNonRecoverableErrorsDontAffectCircuit(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(3, 30*time.Second), clock.NewMock(time.Now()))

	for i := 0; i < 5; i++ {
		_, _ = Call(cb, func() (int, error) { return 0, types.NewInvalidInput("bad input") })
	}

	stats := cb.Stats()
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, Closed, cb.State())
}

// TestCircuitBreakerFullCycle encodes spec §8 scenario 5: failure_threshold=2,
// timeout=1s; two recoverable failures open the circuit; after the timeout
// elapses a success closes it again.
func TestCircuitBreakerFullCycle(t *testing.T) {
	mock := clock.NewMock(time.Now())
	cb := NewCircuitBreaker(testConfig(2, time.Second), mock)

	for i := 0; i < 2; i++ {
		_, err := Call(cb, func() (int, error) { return 0, types.NewStorageError("boom") })
		require.Error(t, err)
	}
	assert.Equal(t, Open, cb.State())

	// While open, calls are rejected without invoking op.
	invoked := false
	_, err := Call(cb, func() (int, error) { invoked = true; return 0, nil })
	assert.False(t, invoked)
	require.ErrorIs(t, err, types.ErrCircuitOpen)

	mock.Advance(1100 * time.Millisecond)

	result, err := Call(cb, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, Closed, cb.State())

	stats := cb.Stats()
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, 1, stats.CircuitOpenedCount)
	assert.Equal(t, int64(1), stats.RejectedCalls)
}

func TestHalfOpenFailureReopensCircuit(t *testing.T) {
	mock := clock.NewMock(time.Now())
	cb := NewCircuitBreaker(testConfig(2, time.Second), mock)

	for i := 0; i < 2; i++ {
		_, _ = Call(cb, func() (int, error) { return 0, types.NewStorageError("boom") })
	}
	assert.Equal(t, Open, cb.State())

	mock.Advance(1100 * time.Millisecond)
	_, _ = Call(cb, func() (int, error) { return 0, types.NewStorageError("still broken") })

	assert.Equal(t, Open, cb.State())
	assert.Equal(t, 2, cb.Stats().CircuitOpenedCount)
}

func TestExponentialBackoff(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(5, 30*time.Second), clock.NewMock(time.Now()))
	assert.Equal(t, 100*time.Millisecond, cb.CalculateBackoff(0))
	assert.Equal(t, 200*time.Millisecond, cb.CalculateBackoff(1))
	assert.Equal(t, 400*time.Millisecond, cb.CalculateBackoff(2))
	assert.Equal(t, 800*time.Millisecond, cb.CalculateBackoff(3))
	assert.Equal(t, 1600*time.Millisecond, cb.CalculateBackoff(4))
	assert.Equal(t, 1600*time.Millisecond, cb.CalculateBackoff(5))
}

func TestResetReturnsToClosed(t *testing.T) {
	cb := NewCircuitBreaker(testConfig(2, 30*time.Second), clock.NewMock(time.Now()))
	for i := 0; i < 2; i++ {
		_, _ = Call(cb, func() (int, error) { return 0, types.NewStorageError("boom") })
	}
	assert.Equal(t, Open, cb.State())

	cb.Reset()
	assert.Equal(t, Closed, cb.State())
	assert.Equal(t, 0, cb.Stats().ConsecutiveFailures)
}
