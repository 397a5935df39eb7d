package types

import "context"

// Client is the Bot API surface the relay depends on.
type Client interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	CreateForumTopic(ctx context.Context, chatID int64, name string) (*ForumTopic, error)
	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]Update, error)
	GetMe(ctx context.Context) (*User, error)
}
