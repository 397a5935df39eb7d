package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestClosedBreakerPassesThrough(t *testing.T) {
	cb := NewWithLogger("test", 3, time.Second, quietLogger())

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewWithLogger("test", 3, time.Minute, quietLogger())
	ctx := context.Background()
	fail := func(ctx context.Context) error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(ctx, fail))
	}
	assert.Equal(t, StateOpen, cb.GetState())

	// Calls are now rejected without running fn.
	ran := false
	err := cb.Execute(ctx, func(ctx context.Context) error { ran = true; return nil })
	require.Error(t, err)
	assert.False(t, ran)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	cb := NewWithLogger("test", 1, 10*time.Millisecond, quietLogger())
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func(ctx context.Context) error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	// Probe calls succeed and close the breaker again.
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(ctx, func(ctx context.Context) error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewWithLogger("test", 1, 10*time.Millisecond, quietLogger())
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func(ctx context.Context) error { return errors.New("boom") }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(ctx, func(ctx context.Context) error { return errors.New("still broken") }))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	cb := NewWithLogger("test", 1, 10*time.Millisecond, quietLogger())
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func(ctx context.Context) error { return errors.New("boom") }))
	time.Sleep(20 * time.Millisecond)

	// Slow probes hold the half-open slots but never finish; the breaker must
	// not admit more than halfOpenMaxCalls.
	admitted := 0
	for i := 0; i < 5; i++ {
		if cb.allowRequest() {
			admitted++
		}
	}
	assert.Equal(t, 3, admitted)
}

func TestGetStats(t *testing.T) {
	cb := NewWithLogger("stats-test", 5, time.Second, quietLogger())
	ctx := context.Background()

	require.NoError(t, cb.Execute(ctx, func(ctx context.Context) error { return nil }))
	require.Error(t, cb.Execute(ctx, func(ctx context.Context) error { return errors.New("boom") }))

	stats := cb.GetStats()
	assert.Equal(t, "stats-test", stats.Name)
	assert.Equal(t, uint32(2), stats.Requests)
	assert.Equal(t, uint32(1), stats.Successes)
	assert.Equal(t, uint32(1), stats.Failures)
	assert.False(t, stats.LastFailureTime.IsZero())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
