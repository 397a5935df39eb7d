package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/bogdan-lmk/discord-parer/internal/errors"
	"github.com/bogdan-lmk/discord-parer/pkg/discord/types"

	"github.com/sirupsen/logrus"
)

const DefaultAPIBaseURL = "https://discord.com/api/v9"

// ClientConfig configures one REST client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RestClient talks to the Discord REST API with a single account token.
type RestClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(cfg ClientConfig) types.Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg ClientConfig, logger *logrus.Logger) types.Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &RestClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (c *RestClient) GetCurrentUser(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.get(ctx, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *RestClient) ListGuilds(ctx context.Context) ([]types.Guild, error) {
	var guilds []types.Guild
	after := ""

	for {
		endpoint := fmt.Sprintf("/users/@me/guilds?limit=%d", 200)
		if after != "" {
			endpoint += "&after=" + url.QueryEscape(after)
		}

		var batch []types.Guild
		if err := c.get(ctx, endpoint, &batch); err != nil {
			return nil, err
		}

		guilds = append(guilds, batch...)
		if len(batch) < 200 {
			return guilds, nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (c *RestClient) ListGuildChannels(ctx context.Context, guildID string) ([]types.GuildChannel, error) {
	var channels []types.GuildChannel
	endpoint := fmt.Sprintf("/guilds/%s/channels", url.PathEscape(guildID))
	if err := c.get(ctx, endpoint, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *RestClient) GetMessages(ctx context.Context, channelID, afterID string, limit int) ([]types.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	endpoint := fmt.Sprintf("/channels/%s/messages?limit=%d", url.PathEscape(channelID), limit)
	if afterID != "" {
		endpoint += "&after=" + url.QueryEscape(afterID)
	}

	var messages []types.Message
	if err := c.get(ctx, endpoint, &messages); err != nil {
		return nil, err
	}

	// The API returns newest first; callers want source order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (c *RestClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewAPIError("discord", endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		var rl types.RateLimitResponse
		retryAfter := time.Second
		if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
			retryAfter = time.Duration(rl.RetryAfter * float64(time.Second))
		}
		c.logger.WithFields(logrus.Fields{
			"endpoint":    endpoint,
			"retry_after": retryAfter,
		}).Warn("Discord rate limit hit")
		return apperrors.NewRateLimitError("discord", retryAfter)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.NewAuthError("", fmt.Errorf("discord API status %d: %s", resp.StatusCode, string(body)))

	default:
		return apperrors.NewAPIError("discord", endpoint, resp.StatusCode,
			fmt.Errorf("discord API status %d: %s", resp.StatusCode, string(body)))
	}
}
