package validation

import (
	"fmt"
	"unicode"

	"github.com/bogdan-lmk/discord-parer/internal/errors"
)

const (
	// Discord snowflakes are 64-bit integers rendered as decimal strings.
	minSnowflakeLength = 15
	maxSnowflakeLength = 20
)

// ValidateSnowflake validates a Discord ID (server, channel or message).
func ValidateSnowflake(id, fieldName string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s cannot be empty", fieldName))
	}

	if len(id) < minSnowflakeLength || len(id) > maxSnowflakeLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be %d-%d digits", fieldName, minSnowflakeLength, maxSnowflakeLength))
	}

	for _, char := range id {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("%s must contain only digits", fieldName))
		}
	}

	return nil
}

// ValidateToken validates a Discord user token. Token contents are opaque,
// only obviously broken values are rejected.
func ValidateToken(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "token cannot be empty")
	}

	if len(token) < 20 {
		return errors.New(errors.ErrCodeInvalidInput, "token too short to be a Discord token")
	}

	for _, char := range token {
		if unicode.IsSpace(char) || unicode.IsControl(char) {
			return errors.New(errors.ErrCodeInvalidInput, "token contains whitespace or control characters")
		}
	}

	return nil
}

// ValidateBotToken validates a Telegram bot token of the "<id>:<secret>" shape.
func ValidateBotToken(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "bot token cannot be empty")
	}

	sep := -1
	for i, char := range token {
		if char == ':' {
			sep = i
			break
		}
	}
	if sep <= 0 || sep == len(token)-1 {
		return errors.New(errors.ErrCodeInvalidInput, "bot token must look like <bot_id>:<secret>")
	}

	for _, char := range token[:sep] {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "bot token must start with a numeric bot ID")
		}
	}

	return nil
}

// ValidateTimeout validates timeout values in seconds.
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}

// ValidateRetentionDays validates the forward record retention period.
func ValidateRetentionDays(days int) error {
	if days < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days must be at least 1")
	}

	if days > 3650 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days too large (max 3650)")
	}

	return nil
}

// ValidateNumericRange validates numeric values against bounds.
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}
