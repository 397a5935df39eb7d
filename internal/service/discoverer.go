package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"

	"github.com/sirupsen/logrus"
)

// announcementKeywords order the priority of keyword matches. An exact
// "announcements" name outranks all of them.
var announcementKeywords = []string{"announcements", "announcement", "news", "updates"}

// Discoverer enumerates each account's guilds and channels and merges what
// it finds into the catalog.
type Discoverer struct {
	registry      *AccountRegistry
	catalog       *Catalog
	maxConcurrent int
	logger        *logrus.Logger
}

func NewDiscoverer(registry *AccountRegistry, catalog *Catalog, maxConcurrent int, logger *logrus.Logger) *Discoverer {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Discoverer{
		registry:      registry,
		catalog:       catalog,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// DiscoverAll runs a discovery pass over every account with bounded
// parallelism and returns the combined diff. A failing account is reported
// in the diff and marked degraded; the pass continues with the others.
func (d *Discoverer) DiscoverAll(ctx context.Context) models.DiscoveryDiff {
	sessions := d.registry.Sessions()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		diff models.DiscoveryDiff
	)
	sem := make(chan struct{}, d.maxConcurrent)

	for _, session := range sessions {
		wg.Add(1)
		sem <- struct{}{}
		go func(s *AccountSession) {
			defer wg.Done()
			defer func() { <-sem }()

			accountDiff, err := d.DiscoverAccount(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.WithError(err).WithField("account_id", s.ID()).Warn("Account discovery failed")
				diff.AccountsFailed = append(diff.AccountsFailed, s.Snapshot().Username)
				return
			}
			diff.ServersAdded += accountDiff.ServersAdded
			diff.ChannelsAdded += accountDiff.ChannelsAdded
			diff.ChannelsUpdated += accountDiff.ChannelsUpdated
			diff.MarkedStale += accountDiff.MarkedStale
		}(session)
	}
	wg.Wait()

	sort.Strings(diff.AccountsFailed)
	if !diff.Empty() {
		d.logger.WithFields(logrus.Fields{
			"servers_added":    diff.ServersAdded,
			"channels_added":   diff.ChannelsAdded,
			"channels_updated": diff.ChannelsUpdated,
			"marked_stale":     diff.MarkedStale,
		}).Info("Discovery pass changed the catalog")
	}
	return diff
}

// DiscoverAccount walks one account's guilds. Nothing already in the catalog
// is removed: entries the account can no longer see are flagged stale.
func (d *Discoverer) DiscoverAccount(ctx context.Context, session *AccountSession) (models.DiscoveryDiff, error) {
	var diff models.DiscoveryDiff
	accountID := session.ID()

	var guilds []discordtypes.Guild
	err := session.Call(ctx, func(ctx context.Context) error {
		var err error
		guilds, err = session.Client.ListGuilds(ctx)
		return err
	})
	if err != nil {
		session.SetState(models.AccountDegraded)
		return diff, err
	}

	seenServers := make(map[string]bool, len(guilds))
	seenChannels := make(map[string]bool)

	for _, guild := range guilds {
		seenServers[guild.ID] = true

		added, err := d.catalog.MergeServer(ctx, &models.Server{
			ID:        guild.ID,
			Name:      guild.Name,
			AccountID: accountID,
		})
		if err != nil {
			return diff, err
		}
		if added {
			diff.ServersAdded++
		}

		var channels []discordtypes.GuildChannel
		err = session.Call(ctx, func(ctx context.Context) error {
			var err error
			channels, err = session.Client.ListGuildChannels(ctx, guild.ID)
			return err
		})
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"account_id": accountID,
				"server_id":  guild.ID,
			}).Warn("Failed to list guild channels")
			continue
		}

		for _, ch := range selectAnnouncementChannels(channels) {
			seenChannels[ch.ID] = true
			ch.ServerID = guild.ID
			added, updated, err := d.catalog.MergeChannel(ctx, accountID, ch)
			if err != nil {
				return diff, err
			}
			if added {
				diff.ChannelsAdded++
			}
			if updated {
				diff.ChannelsUpdated++
			}
		}
	}

	marked, err := d.catalog.MarkUnseenStale(ctx, accountID, seenServers, seenChannels)
	diff.MarkedStale += marked
	if err != nil {
		return diff, err
	}

	session.SetState(models.AccountConnected)
	return diff, nil
}

// selectAnnouncementChannels classifies a guild's channels and keeps the
// highest priority matches, at most MaxAnnouncementChannels per guild.
func selectAnnouncementChannels(channels []discordtypes.GuildChannel) []*models.Channel {
	var matched []*models.Channel
	for _, ch := range channels {
		priority, ok := classifyChannel(ch)
		if !ok {
			continue
		}
		matched = append(matched, &models.Channel{
			ID:             ch.ID,
			Name:           ch.Name,
			IsAnnouncement: true,
			Priority:       priority,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	if len(matched) > constants.MaxAnnouncementChannels {
		matched = matched[:constants.MaxAnnouncementChannels]
	}
	return matched
}

// classifyChannel decides whether a channel is announcement-like and with
// what priority (lower is better). Native announcement channels always
// qualify; text channels qualify on their name.
func classifyChannel(ch discordtypes.GuildChannel) (int, bool) {
	switch ch.Type {
	case discordtypes.ChannelTypeGuildAnnouncement:
		return 0, true
	case discordtypes.ChannelTypeGuildText:
	default:
		return 0, false
	}

	name := strings.ToLower(ch.Name)
	if name == "announcements" {
		return 1, true
	}
	for i, keyword := range announcementKeywords {
		if strings.Contains(name, keyword) {
			return 2 + i, true
		}
	}
	return 0, false
}
