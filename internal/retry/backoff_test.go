package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/bogdan-lmk/discord-parer/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	err := b.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	sentinel := errors.New("always failing")
	err := b.Retry(context.Background(), func() error {
		attempts++
		return sentinel
	})

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithPredicateStopsOnPermanent(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	permanent := apperrors.New(apperrors.ErrCodeTelegramAPI, "bad request")
	err := b.RetryWithPredicate(context.Background(), func() error {
		attempts++
		return permanent
	}, apperrors.IsRetryable)

	assert.Equal(t, error(permanent), err)
	assert.Equal(t, 1, attempts)
}

func TestRetryContextCancellation(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error {
		return errors.New("keep going")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryHonorsRateLimitHint(t *testing.T) {
	b := NewBackoff(fastConfig())

	attempts := 0
	start := time.Now()
	err := b.Retry(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return apperrors.NewRateLimitError("telegram", 50*time.Millisecond)
		}
		return nil
	})

	require.NoError(t, err)
	// The 50ms hint outranks the millisecond-scale computed delay.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCalculateDelayGrowth(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     80 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	assert.Equal(t, 10*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 20*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 40*time.Millisecond, b.GetNextDelay(3))
	// Capped at max.
	assert.Equal(t, 80*time.Millisecond, b.GetNextDelay(5))
	assert.Equal(t, 80*time.Millisecond, b.GetNextDelay(9))
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := b.GetNextDelay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}
