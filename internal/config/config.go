package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/security"
)

var (
	ErrMissingDiscordTokens = models.ConfigError{Message: "missing Discord auth tokens"}
	ErrMissingBotToken      = models.ConfigError{Message: "missing Telegram bot token"}
	ErrMissingChatID        = models.ConfigError{Message: "missing Telegram chat ID"}
	ErrMissingDBPath        = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if len(c.Discord.Tokens) == 0 {
		return ErrMissingDiscordTokens
	}
	seen := make(map[string]bool)
	for i, token := range c.Discord.Tokens {
		if strings.TrimSpace(token) == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty Discord token at position %d", i)}
		}
		if seen[token] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate Discord token at position %d", i)}
		}
		seen[token] = true
	}

	if c.Telegram.BotToken == "" {
		return ErrMissingBotToken
	}
	if c.Telegram.ChatID == 0 {
		return ErrMissingChatID
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Discord.PollIntervalSec <= 0 {
		c.Discord.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.Discord.PollBatchSize <= 0 {
		c.Discord.PollBatchSize = constants.DefaultPollBatchSize
	}
	if c.Discord.TimeoutSec <= 0 {
		c.Discord.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Telegram.TimeoutSec <= 0 {
		c.Telegram.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.Relay.DiscoveryIntervalHours <= 0 {
		c.Relay.DiscoveryIntervalHours = constants.DefaultDiscoveryIntervalH
	}
	if c.Relay.MaxConcurrentDiscovery <= 0 {
		c.Relay.MaxConcurrentDiscovery = 3
	}
	if c.Retention.Days <= 0 {
		c.Retention.Days = constants.DefaultRetentionDays
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	// Credentials come from the environment, never from the config file.
	if tokens := os.Getenv("DISCORD_AUTH_TOKENS"); tokens != "" {
		c.Discord.Tokens = c.Discord.Tokens[:0]
		for _, t := range strings.Split(tokens, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Discord.Tokens = append(c.Discord.Tokens, t)
			}
		}
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
}
