package types

import (
	"context"
)

// Client is the REST surface the relay needs from one Discord account.
type Client interface {
	// GetCurrentUser validates the token and returns the account identity.
	GetCurrentUser(ctx context.Context) (*User, error)

	// ListGuilds enumerates every guild visible to the account.
	ListGuilds(ctx context.Context) ([]Guild, error)

	// ListGuildChannels returns all channels of one guild.
	ListGuildChannels(ctx context.Context, guildID string) ([]GuildChannel, error)

	// GetMessages returns up to limit messages after the given message ID in
	// ascending order. An empty afterID returns the channel's most recent
	// messages (still ascending).
	GetMessages(ctx context.Context, channelID, afterID string, limit int) ([]Message, error)
}
