package integration

import (
	"fmt"
	"time"

	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"
)

// Fixture identifiers are snowflake shaped so ordering by ID string matches
// ordering by time, the same property the real API relies on.
const (
	fixtureToken    = "integration-token-000000000000000001"
	fixtureUserID   = "900000000000000001"
	fixtureGuildID  = "100000000000000001"
	fixtureChanID   = "200000000000000001"
	fixtureUsername = "integration-account"
)

func announcementGuild() discordtypes.Guild {
	return discordtypes.Guild{ID: fixtureGuildID, Name: "Fixture Server"}
}

func announcementChannel() discordtypes.GuildChannel {
	return discordtypes.GuildChannel{
		ID:   fixtureChanID,
		Name: "announcements",
		Type: discordtypes.ChannelTypeGuildAnnouncement,
	}
}

func announcementGuildWith(id, name string) discordtypes.Guild {
	return discordtypes.Guild{ID: id, Name: name}
}

func announcementChannelWith(id, name string) discordtypes.GuildChannel {
	return discordtypes.GuildChannel{
		ID:   id,
		Name: name,
		Type: discordtypes.ChannelTypeGuildText,
	}
}

// fixtureMessage builds a message whose ID is derived from seq so later
// messages sort after earlier ones.
func fixtureMessage(seq int, content string) discordtypes.Message {
	return discordtypes.Message{
		ID:      fmt.Sprintf("3000000000000%05d", seq),
		Content: content,
		Author:  discordtypes.Author{ID: "400000000000000001", Username: "announcer"},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).
			Add(time.Duration(seq) * time.Minute),
	}
}
