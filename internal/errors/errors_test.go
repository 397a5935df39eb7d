package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(base, ErrCodeDiscordAPI, "guild listing failed")

	assert.Contains(t, err.Error(), "DISCORD_API")
	assert.Contains(t, err.Error(), "guild listing failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, base, errors.Unwrap(err))
}

func TestAppErrorWithoutCause(t *testing.T) {
	err := New(ErrCodeRateLimit, "rate limit exceeded")
	assert.Equal(t, "RATE_LIMIT: rate limit exceeded", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(errors.New("x"), ErrCodeTelegramAPI, "transient")))
	assert.False(t, IsRetryable(Wrap(errors.New("x"), ErrCodeTelegramAPI, "permanent")))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestNewAPIErrorRetryability(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{500, true},
		{502, true},
		{429, true},
		{408, true},
		{0, true},
		{400, false},
		{404, false},
		{403, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := NewAPIError("discord", "/guilds", tt.status, errors.New("boom"))
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, ErrCodeDiscordAPI, err.Code)
			assert.Equal(t, tt.status, err.Context["status_code"])
		})
	}
}

func TestNewAPIErrorServiceCodes(t *testing.T) {
	assert.Equal(t, ErrCodeTelegramAPI, NewAPIError("telegram", "sendMessage", 500, errors.New("x")).Code)
	assert.Equal(t, ErrCodeInternalError, NewAPIError("other", "x", 500, errors.New("x")).Code)
}

func TestRateLimitRoundTrip(t *testing.T) {
	err := NewRateLimitError("telegram", 7*time.Second)
	require.True(t, err.Retryable)

	hint, ok := RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, hint)

	// The hint survives wrapping.
	wrapped := fmt.Errorf("delivery failed: %w", err)
	hint, ok = RetryAfter(wrapped)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, hint)

	_, ok = RetryAfter(errors.New("no hint here"))
	assert.False(t, ok)
}

func TestIsAuthError(t *testing.T) {
	err := NewAuthError("acc-1", errors.New("401 unauthorized"))
	assert.True(t, IsAuthError(err))
	assert.True(t, IsAuthError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsAuthError(NewAPIError("discord", "/guilds", 500, errors.New("x"))))
	assert.False(t, err.Retryable)
}

func TestIsStorageError(t *testing.T) {
	assert.True(t, IsStorageError(NewDatabaseError("claim", errors.New("locked"))))
	assert.False(t, IsStorageError(NewAuthError("acc-1", errors.New("x"))))
	assert.False(t, IsStorageError(errors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "Authentication failed", GetUserMessage(NewAuthError("acc-1", errors.New("x"))))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("internal detail")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeRateLimit, GetCode(NewRateLimitError("discord", time.Second)))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}
