package service

import (
	"context"
	"fmt"

	"github.com/bogdan-lmk/discord-parer/internal/database"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/validation"
)

// Commands is the read-and-operate surface exposed to operators through the
// Telegram bot and the HTTP status endpoint. It never touches Discord
// directly except through a discovery pass.
type Commands struct {
	catalog    *Catalog
	registry   *AccountRegistry
	discoverer *Discoverer
	relay      *Relay
	db         *database.Database
}

func NewCommands(catalog *Catalog, registry *AccountRegistry, discoverer *Discoverer, relay *Relay, db *database.Database) *Commands {
	return &Commands{
		catalog:    catalog,
		registry:   registry,
		discoverer: discoverer,
		relay:      relay,
		db:         db,
	}
}

// ListServers returns the catalog's servers, stale included.
func (c *Commands) ListServers() []*models.Server {
	return c.catalog.Servers()
}

// ListChannels resolves a server by ID or exact name and returns it with its
// channels.
func (c *Commands) ListChannels(serverRef string) (*models.Server, error) {
	srv := c.catalog.Server(serverRef)
	if srv == nil {
		srv = c.catalog.ServerByName(serverRef)
	}
	if srv == nil {
		return nil, fmt.Errorf("unknown server %q", serverRef)
	}
	return srv, nil
}

// Latest returns the most recently committed forwards, optionally filtered
// by server or channel ID (empty string matches all).
func (c *Commands) Latest(ctx context.Context, serverID, channelID string, limit int) ([]models.ForwardRecord, error) {
	if serverID != "" {
		if err := validation.ValidateSnowflake(serverID, "server ID"); err != nil {
			return nil, err
		}
	}
	if channelID != "" {
		if err := validation.ValidateSnowflake(channelID, "channel ID"); err != nil {
			return nil, err
		}
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return c.db.RecentForwarded(ctx, serverID, channelID, limit)
}

// Discover triggers a synchronous discovery pass and reconciles the relay
// workers with whatever it found.
func (c *Commands) Discover(ctx context.Context) models.DiscoveryDiff {
	diff := c.discoverer.DiscoverAll(ctx)
	c.relay.SyncWorkers()
	return diff
}

// Status summarizes the running system for operators.
type Status struct {
	Accounts      []models.Account `json:"accounts"`
	Servers       int              `json:"servers"`
	Channels      int              `json:"channels"`
	StaleEntries  int              `json:"staleEntries"`
	TotalForwards int64            `json:"totalForwards"`
}

func (c *Commands) Status(ctx context.Context) (Status, error) {
	var st Status
	for _, session := range c.registry.Sessions() {
		st.Accounts = append(st.Accounts, session.Snapshot())
	}
	st.Servers, st.Channels, st.StaleEntries = c.catalog.Counts()

	total, err := c.db.CountForwarded(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to count forwards: %w", err)
	}
	st.TotalForwards = total
	return st, nil
}
