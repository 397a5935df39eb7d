package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/database"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/pkg/circuitbreaker"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func setupCatalog(t *testing.T) (*Catalog, *database.Database) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalog(db), db
}

func newTestSession(t *testing.T, client discordtypes.Client, userID, username string) (*AccountRegistry, *AccountSession) {
	t.Helper()
	registry := NewAccountRegistry(testLogger())
	breaker := circuitbreaker.NewWithLogger("test", 100, time.Second, testLogger())
	if mc, ok := client.(*mockDiscordClient); ok {
		mc.On("GetCurrentUser", mock.Anything).Return(&discordtypes.User{ID: userID, Username: username}, nil).Once()
	}
	session, err := registry.Register(context.Background(), client, breaker)
	require.NoError(t, err)
	return registry, session
}

func TestClassifyChannel(t *testing.T) {
	tests := []struct {
		name         string
		channel      discordtypes.GuildChannel
		wantMatch    bool
		wantPriority int
	}{
		{"native announcement channel", discordtypes.GuildChannel{Name: "anything", Type: discordtypes.ChannelTypeGuildAnnouncement}, true, 0},
		{"exact announcements name", discordtypes.GuildChannel{Name: "announcements", Type: discordtypes.ChannelTypeGuildText}, true, 1},
		{"keyword announcement", discordtypes.GuildChannel{Name: "project-announcement", Type: discordtypes.ChannelTypeGuildText}, true, 3},
		{"keyword news", discordtypes.GuildChannel{Name: "daily-news", Type: discordtypes.ChannelTypeGuildText}, true, 4},
		{"keyword updates", discordtypes.GuildChannel{Name: "updates-feed", Type: discordtypes.ChannelTypeGuildText}, true, 5},
		{"case insensitive", discordtypes.GuildChannel{Name: "ANNOUNCEMENTS", Type: discordtypes.ChannelTypeGuildText}, true, 1},
		{"plain text channel", discordtypes.GuildChannel{Name: "general", Type: discordtypes.ChannelTypeGuildText}, false, 0},
		{"voice channel with keyword", discordtypes.GuildChannel{Name: "news", Type: 2}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priority, ok := classifyChannel(tt.channel)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantPriority, priority)
			}
		})
	}
}

func TestSelectAnnouncementChannelsCapped(t *testing.T) {
	var channels []discordtypes.GuildChannel
	channels = append(channels, discordtypes.GuildChannel{ID: "native", Name: "releases", Type: discordtypes.ChannelTypeGuildAnnouncement})
	channels = append(channels, discordtypes.GuildChannel{ID: "exact", Name: "announcements", Type: discordtypes.ChannelTypeGuildText})
	for _, name := range []string{"news-1", "news-2", "news-3", "news-4", "news-5"} {
		channels = append(channels, discordtypes.GuildChannel{ID: name, Name: name, Type: discordtypes.ChannelTypeGuildText})
	}

	selected := selectAnnouncementChannels(channels)
	require.Len(t, selected, 5)
	// Highest priority first: the native channel, then the exact name.
	assert.Equal(t, "native", selected[0].ID)
	assert.Equal(t, "exact", selected[1].ID)
}

func TestDiscoverAccount(t *testing.T) {
	catalog, _ := setupCatalog(t)
	client := &mockDiscordClient{}
	_, session := newTestSession(t, client, "acc-1", "tester")

	client.On("ListGuilds", mock.Anything).Return([]discordtypes.Guild{
		{ID: "srv-1", Name: "Alpha"},
		{ID: "srv-2", Name: "Beta"},
	}, nil)
	client.On("ListGuildChannels", mock.Anything, "srv-1").Return([]discordtypes.GuildChannel{
		{ID: "chan-1", Name: "announcements", Type: discordtypes.ChannelTypeGuildText},
		{ID: "chan-2", Name: "general", Type: discordtypes.ChannelTypeGuildText},
	}, nil)
	client.On("ListGuildChannels", mock.Anything, "srv-2").Return([]discordtypes.GuildChannel{
		{ID: "chan-3", Name: "dev-news", Type: discordtypes.ChannelTypeGuildText},
	}, nil)

	d := NewDiscoverer(nil, catalog, 1, testLogger())
	diff, err := d.DiscoverAccount(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 2, diff.ServersAdded)
	assert.Equal(t, 2, diff.ChannelsAdded)
	assert.Equal(t, 0, diff.MarkedStale)
	assert.Equal(t, models.AccountConnected, session.Snapshot().State)

	refs := catalog.ActiveChannels()
	require.Len(t, refs, 2)

	// A second identical pass changes nothing.
	diff, err = d.DiscoverAccount(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestDiscoverAccountMarksStale(t *testing.T) {
	catalog, _ := setupCatalog(t)
	client := &mockDiscordClient{}
	_, session := newTestSession(t, client, "acc-1", "tester")

	client.On("ListGuilds", mock.Anything).Return([]discordtypes.Guild{{ID: "srv-1", Name: "Alpha"}}, nil).Once()
	client.On("ListGuildChannels", mock.Anything, "srv-1").Return([]discordtypes.GuildChannel{
		{ID: "chan-1", Name: "announcements", Type: discordtypes.ChannelTypeGuildText},
	}, nil).Once()

	d := NewDiscoverer(nil, catalog, 1, testLogger())
	_, err := d.DiscoverAccount(context.Background(), session)
	require.NoError(t, err)

	// The account loses access to everything.
	client.On("ListGuilds", mock.Anything).Return([]discordtypes.Guild{}, nil).Once()
	diff, err := d.DiscoverAccount(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, 2, diff.MarkedStale)

	// Stale entries stay in the catalog but stop being polled.
	assert.Len(t, catalog.Servers(), 1)
	assert.Empty(t, catalog.ActiveChannels())

	// The server coming back clears its staleness.
	client.On("ListGuilds", mock.Anything).Return([]discordtypes.Guild{{ID: "srv-1", Name: "Alpha"}}, nil).Once()
	client.On("ListGuildChannels", mock.Anything, "srv-1").Return([]discordtypes.GuildChannel{
		{ID: "chan-1", Name: "announcements", Type: discordtypes.ChannelTypeGuildText},
	}, nil).Once()
	diff, err = d.DiscoverAccount(context.Background(), session)
	require.NoError(t, err)
	assert.Len(t, catalog.ActiveChannels(), 1)
}

func TestDiscoverAccountFailure(t *testing.T) {
	catalog, _ := setupCatalog(t)
	client := &mockDiscordClient{}
	registry, session := newTestSession(t, client, "acc-1", "tester")

	client.On("ListGuilds", mock.Anything).Return(nil, errors.New("api down"))

	d := NewDiscoverer(registry, catalog, 1, testLogger())
	diff := d.DiscoverAll(context.Background())

	assert.Equal(t, []string{"tester"}, diff.AccountsFailed)
	assert.Equal(t, models.AccountDegraded, session.Snapshot().State)
	assert.Empty(t, catalog.Servers())
}

func TestDiscoverAllMultipleAccounts(t *testing.T) {
	catalog, _ := setupCatalog(t)
	registry := NewAccountRegistry(testLogger())

	clientA := &mockDiscordClient{}
	clientA.On("GetCurrentUser", mock.Anything).Return(&discordtypes.User{ID: "acc-a", Username: "alpha"}, nil).Once()
	clientA.On("ListGuilds", mock.Anything).Return([]discordtypes.Guild{{ID: "srv-1", Name: "Shared"}}, nil)
	clientA.On("ListGuildChannels", mock.Anything, "srv-1").Return([]discordtypes.GuildChannel{
		{ID: "chan-1", Name: "announcements", Type: discordtypes.ChannelTypeGuildText},
	}, nil)

	clientB := &mockDiscordClient{}
	clientB.On("GetCurrentUser", mock.Anything).Return(&discordtypes.User{ID: "acc-b", Username: "beta"}, nil).Once()
	clientB.On("ListGuilds", mock.Anything).Return([]discordtypes.Guild{{ID: "srv-1", Name: "Shared"}}, nil)
	clientB.On("ListGuildChannels", mock.Anything, "srv-1").Return([]discordtypes.GuildChannel{
		{ID: "chan-1", Name: "announcements", Type: discordtypes.ChannelTypeGuildText},
	}, nil)

	breaker := func(name string) *circuitbreaker.CircuitBreaker {
		return circuitbreaker.NewWithLogger(name, 100, time.Second, testLogger())
	}
	_, err := registry.Register(context.Background(), clientA, breaker("a"))
	require.NoError(t, err)
	_, err = registry.Register(context.Background(), clientB, breaker("b"))
	require.NoError(t, err)

	d := NewDiscoverer(registry, catalog, 2, testLogger())
	d.DiscoverAll(context.Background())

	// Both accounts see the same guild; it is forwarded exactly once.
	refs := catalog.ActiveChannels()
	require.Len(t, refs, 1)
	assert.Equal(t, "chan-1", refs[0].ChannelID)
}
