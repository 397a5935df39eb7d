package errors

import (
	"errors"
	"fmt"
	"time"
)

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewAPIError creates an API error for an external service call. Errors from
// rate limiting, timeouts and server-side failures are marked retryable;
// client-side failures are permanent.
func NewAPIError(service, endpoint string, statusCode int, err error) *AppError {
	var code ErrorCode
	switch service {
	case "discord":
		code = ErrCodeDiscordAPI
	case "telegram":
		code = ErrCodeTelegramAPI
	default:
		code = ErrCodeInternalError
	}

	appErr := Wrap(err, code, fmt.Sprintf("%s API call failed", service)).
		WithContext("service", service).
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 || statusCode == 0 {
		appErr.Retryable = true
	}

	return appErr
}

// NewAuthError creates an authentication error. Auth failures degrade one
// account and are never retryable.
func NewAuthError(accountID string, err error) *AppError {
	return Wrap(err, ErrCodeAuthentication, "authentication failed").
		WithContext("account_id", accountID).
		WithUserMessage("Authentication failed")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewRateLimitError creates a retryable rate limit error carrying the wait
// hint the API returned.
func NewRateLimitError(service string, retryAfter time.Duration) *AppError {
	appErr := New(ErrCodeRateLimit, "rate limit exceeded").
		WithContext("service", service).
		WithContext("retry_after", retryAfter.String()).
		WithUserMessage("Too many requests, please try again later")
	appErr.Retryable = true
	return appErr
}

// RetryAfter extracts the rate limit wait hint from an error, if present.
func RetryAfter(err error) (time.Duration, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Context == nil {
		return 0, false
	}
	raw, ok := appErr.Context["retry_after"].(string)
	if !ok {
		return 0, false
	}
	d, parseErr := time.ParseDuration(raw)
	if parseErr != nil {
		return 0, false
	}
	return d, true
}

// IsAuthError reports whether err is an account-level authentication failure.
func IsAuthError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeAuthentication
}

// IsStorageError reports whether err came from the tracker's storage layer.
func IsStorageError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery, ErrCodeDatabaseMigration:
		return true
	}
	return false
}
