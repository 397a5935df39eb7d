package service

import (
	"context"

	"github.com/bogdan-lmk/discord-parer/internal/models"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"
	telegramtypes "github.com/bogdan-lmk/discord-parer/pkg/telegram/types"

	"github.com/stretchr/testify/mock"
)

type mockDiscordClient struct {
	mock.Mock
}

func (m *mockDiscordClient) GetCurrentUser(ctx context.Context) (*discordtypes.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordtypes.User), args.Error(1)
}

func (m *mockDiscordClient) ListGuilds(ctx context.Context) ([]discordtypes.Guild, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]discordtypes.Guild), args.Error(1)
}

func (m *mockDiscordClient) ListGuildChannels(ctx context.Context, guildID string) ([]discordtypes.GuildChannel, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]discordtypes.GuildChannel), args.Error(1)
}

func (m *mockDiscordClient) GetMessages(ctx context.Context, channelID, afterID string, limit int) ([]discordtypes.Message, error) {
	args := m.Called(ctx, channelID, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]discordtypes.Message), args.Error(1)
}

type mockTelegramClient struct {
	mock.Mock
}

func (m *mockTelegramClient) SendMessage(ctx context.Context, req telegramtypes.SendMessageRequest) (*telegramtypes.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegramtypes.Message), args.Error(1)
}

func (m *mockTelegramClient) CreateForumTopic(ctx context.Context, chatID int64, name string) (*telegramtypes.ForumTopic, error) {
	args := m.Called(ctx, chatID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegramtypes.ForumTopic), args.Error(1)
}

func (m *mockTelegramClient) GetChat(ctx context.Context, chatID int64) (*telegramtypes.Chat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegramtypes.Chat), args.Error(1)
}

func (m *mockTelegramClient) GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]telegramtypes.Update, error) {
	args := m.Called(ctx, offset, timeoutSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]telegramtypes.Update), args.Error(1)
}

func (m *mockTelegramClient) GetMe(ctx context.Context) (*telegramtypes.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegramtypes.User), args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Deliver(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
