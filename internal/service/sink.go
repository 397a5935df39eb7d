package service

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/bogdan-lmk/discord-parer/internal/errors"
	"github.com/bogdan-lmk/discord-parer/internal/metrics"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/retry"
	"github.com/bogdan-lmk/discord-parer/pkg/telegram"
	telegramtypes "github.com/bogdan-lmk/discord-parer/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// Sink is where formatted announcements go. The relay engine treats a nil
// return as delivered; an error that is not retryable marks the message
// poisonous.
type Sink interface {
	Deliver(ctx context.Context, msg *models.Message) error
}

// TelegramSink delivers announcements into a Telegram chat, one forum topic
// per Discord server when topics are enabled. Topic IDs are cached in memory;
// a topic deleted out from under us is recreated on the next delivery.
type TelegramSink struct {
	client    telegramtypes.Client
	formatter *Formatter
	backoff   *retry.Backoff
	chatID    int64
	useTopics bool
	logger    *logrus.Logger

	mu     sync.Mutex
	topics map[string]int
}

func NewTelegramSink(client telegramtypes.Client, formatter *Formatter, backoff *retry.Backoff, chatID int64, useTopics bool, logger *logrus.Logger) *TelegramSink {
	return &TelegramSink{
		client:    client,
		formatter: formatter,
		backoff:   backoff,
		chatID:    chatID,
		useTopics: useTopics,
		logger:    logger,
		topics:    make(map[string]int),
	}
}

// VerifyChat checks the destination chat is reachable and, when topics are
// requested, that the chat is actually a forum. Topics silently fall back to
// plain messages when it is not.
func (s *TelegramSink) VerifyChat(ctx context.Context) error {
	chat, err := s.client.GetChat(ctx, s.chatID)
	if err != nil {
		return fmt.Errorf("failed to verify telegram chat: %w", err)
	}
	if s.useTopics && !chat.IsForum {
		s.logger.WithField("chat_id", s.chatID).Warn("Chat is not a forum, topic per server disabled")
		s.useTopics = false
	}
	return nil
}

func (s *TelegramSink) Deliver(ctx context.Context, msg *models.Message) error {
	threadID := 0
	if s.useTopics {
		id, err := s.topicFor(ctx, msg.ServerID, msg.ServerName)
		if err != nil {
			// Topic management failing should not lose the announcement.
			s.logger.WithError(err).WithField("server", msg.ServerName).Warn("Falling back to plain message delivery")
		} else {
			threadID = id
		}
	}

	text := s.formatter.Format(msg)
	for _, chunk := range s.formatter.Split(text) {
		if err := s.sendChunk(ctx, msg, chunk, threadID); err != nil {
			return err
		}
	}

	metrics.IncrementCounter("telegram_messages_delivered", nil, "Messages delivered to Telegram")
	return nil
}

func (s *TelegramSink) sendChunk(ctx context.Context, msg *models.Message, chunk string, threadID int) error {
	recreated := false
	return s.backoff.RetryWithPredicate(ctx, func() error {
		err := s.send(ctx, chunk, threadID)
		if err == nil {
			return nil
		}

		// The topic was deleted between deliveries. Recreate it once and
		// retry into the new thread; on a second failure drop to plain chat.
		if telegram.IsThreadNotFound(err) && threadID != 0 {
			s.forgetTopic(msg.ServerID)
			if !recreated {
				recreated = true
				if id, topicErr := s.topicFor(ctx, msg.ServerID, msg.ServerName); topicErr == nil {
					threadID = id
					return apperrors.WrapRetryable(err, apperrors.ErrCodeTelegramAPI, "forum topic recreated")
				}
			}
			threadID = 0
			return apperrors.WrapRetryable(err, apperrors.ErrCodeTelegramAPI, "forum topic lost")
		}

		return err
	}, apperrors.IsRetryable)
}

func (s *TelegramSink) send(ctx context.Context, text string, threadID int) error {
	_, err := s.client.SendMessage(ctx, telegramtypes.SendMessageRequest{
		ChatID:                s.chatID,
		Text:                  text,
		MessageThreadID:       threadID,
		DisableWebPagePreview: true,
	})
	return err
}

// topicFor returns the forum topic for a server, creating it on first use.
func (s *TelegramSink) topicFor(ctx context.Context, serverID, serverName string) (int, error) {
	s.mu.Lock()
	if id, ok := s.topics[serverID]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	topic, err := s.client.CreateForumTopic(ctx, s.chatID, serverName)
	if err != nil {
		return 0, fmt.Errorf("failed to create forum topic for %s: %w", serverName, err)
	}

	s.mu.Lock()
	s.topics[serverID] = topic.MessageThreadID
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"server":    serverName,
		"thread_id": topic.MessageThreadID,
	}).Info("Created forum topic")
	return topic.MessageThreadID, nil
}

func (s *TelegramSink) forgetTopic(serverID string) {
	s.mu.Lock()
	delete(s.topics, serverID)
	s.mu.Unlock()
}

// ResetTopics drops the topic cache so the next delivery per server creates a
// fresh topic.
func (s *TelegramSink) ResetTopics() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.topics)
	s.topics = make(map[string]int)
	return n
}
