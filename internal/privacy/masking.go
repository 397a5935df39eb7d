package privacy

import (
	"strings"
)

// MaskToken masks a Discord user token showing only the first 4 characters.
// Example: "mfa.abcdefteleport" -> "mfa.**************"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	// Keep the mfa. prefix visible so the token kind stays recognizable.
	if strings.HasPrefix(token, "mfa.") {
		return "mfa." + strings.Repeat("*", len(token)-4)
	}

	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-4)
}

// MaskBotToken masks a Telegram bot token while keeping the numeric bot ID.
// Example: "123456789:AAForwardingSecret" -> "123456789:****"
func MaskBotToken(token string) string {
	if token == "" {
		return ""
	}

	if idx := strings.Index(token, ":"); idx > 0 {
		return token[:idx] + ":" + strings.Repeat("*", len(token)-idx-1)
	}
	return MaskToken(token)
}

// MaskSnowflake masks a Discord ID showing only the last 4 digits.
// Example: "123456789012345678" -> "**************5678"
func MaskSnowflake(id string) string {
	return maskString(id, 4)
}

// MaskChatID masks a Telegram chat ID, preserving the -100 supergroup prefix.
// Example: "-1001234567890" -> "-100******7890"
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}

	if strings.HasPrefix(chatID, "-100") && len(chatID) > 8 {
		inner := chatID[4:]
		return "-100" + strings.Repeat("*", len(inner)-4) + inner[len(inner)-4:]
	}
	return maskString(chatID, 4)
}

// maskString masks a string showing only the last n characters.
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "token", "auth_token", "authorization":
			if s, ok := v.(string); ok {
				masked[k] = MaskToken(s)
			} else {
				masked[k] = v
			}
		case "bot_token":
			if s, ok := v.(string); ok {
				masked[k] = MaskBotToken(s)
			} else {
				masked[k] = v
			}
		case "chat_id", "chatId":
			if s, ok := v.(string); ok {
				masked[k] = MaskChatID(s)
			} else {
				masked[k] = v
			}
		case "user_id", "userId", "account_id":
			if s, ok := v.(string); ok {
				masked[k] = MaskSnowflake(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
