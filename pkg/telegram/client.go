package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/bogdan-lmk/discord-parer/internal/errors"
	"github.com/bogdan-lmk/discord-parer/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

const DefaultAPIBaseURL = "https://api.telegram.org"

// Topic icon color used for server topics (light blue).
const topicIconColor = 0x6FB9F0

type ClientConfig struct {
	BaseURL  string
	BotToken string
	Timeout  time.Duration
}

// BotClient talks to the Telegram Bot API over plain HTTP POST with JSON
// bodies. Every method shares the same envelope handling in call().
type BotClient struct {
	baseURL  string
	botToken string
	client   *http.Client
	logger   *logrus.Logger
}

func NewClient(cfg ClientConfig) types.Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg ClientConfig, logger *logrus.Logger) types.Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		// Long enough for getUpdates long polling.
		cfg.Timeout = 65 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &BotClient{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		botToken: cfg.BotToken,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

func (c *BotClient) SendMessage(ctx context.Context, req types.SendMessageRequest) (*types.Message, error) {
	var msg types.Message
	if err := c.call(ctx, "sendMessage", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *BotClient) CreateForumTopic(ctx context.Context, chatID int64, name string) (*types.ForumTopic, error) {
	req := types.CreateForumTopicRequest{
		ChatID:    chatID,
		Name:      name,
		IconColor: topicIconColor,
	}
	var topic types.ForumTopic
	if err := c.call(ctx, "createForumTopic", req, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *BotClient) GetChat(ctx context.Context, chatID int64) (*types.Chat, error) {
	req := struct {
		ChatID int64 `json:"chat_id"`
	}{ChatID: chatID}
	var chat types.Chat
	if err := c.call(ctx, "getChat", req, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *BotClient) GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]types.Update, error) {
	req := types.GetUpdatesRequest{
		Offset:         offset,
		Timeout:        timeoutSeconds,
		AllowedUpdates: []string{"message"},
	}
	var updates []types.Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *BotClient) GetMe(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.call(ctx, "getMe", struct{}{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *BotClient) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewAPIError("telegram", method, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewAPIError("telegram", method, resp.StatusCode, err)
	}

	var envelope types.APIResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return apperrors.NewAPIError("telegram", method, resp.StatusCode,
			fmt.Errorf("failed to decode response: %w", err))
	}

	if !envelope.OK {
		return c.apiError(method, envelope)
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *BotClient) apiError(method string, envelope types.APIResponse) error {
	if envelope.ErrorCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		c.logger.WithFields(logrus.Fields{
			"method":      method,
			"retry_after": retryAfter,
		}).Warn("Telegram rate limit hit")
		return apperrors.NewRateLimitError("telegram", retryAfter)
	}

	apiErr := apperrors.NewAPIError("telegram", method, envelope.ErrorCode,
		fmt.Errorf("telegram API error %d: %s", envelope.ErrorCode, envelope.Description))
	return apiErr.WithContext("description", envelope.Description)
}

// IsThreadNotFound reports whether err means the forum topic the message
// targeted no longer exists, in which case a fresh topic must be created.
func IsThreadNotFound(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	desc, ok := appErr.Context["description"].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(desc), "message thread not found")
}
