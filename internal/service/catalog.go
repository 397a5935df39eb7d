package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/database"
	"github.com/bogdan-lmk/discord-parer/internal/models"
)

// Catalog is the in-memory view of every discovered server and channel,
// backed by the database for restarts. Entries are only ever added or
// flagged stale, never removed, so the forwarding history they anchor
// stays explainable.
type Catalog struct {
	mu      sync.RWMutex
	db      *database.Database
	servers map[string]*models.Server
}

func NewCatalog(db *database.Database) *Catalog {
	return &Catalog{
		db:      db,
		servers: make(map[string]*models.Server),
	}
}

// Load hydrates the catalog from the database. Called once at startup before
// any discovery or relay activity.
func (c *Catalog) Load(ctx context.Context) error {
	servers, err := c.db.LoadCatalog(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, srv := range servers {
		c.servers[srv.ID] = srv
	}
	return nil
}

// MergeServer records a freshly observed server, persisting it and updating
// the in-memory view. Returns true when the server was not known before.
func (c *Catalog) MergeServer(ctx context.Context, srv *models.Server) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, known := c.servers[srv.ID]
	now := time.Now().UTC()
	if known {
		existing.Name = srv.Name
		existing.Stale = false
		existing.LastSeen = now
		if err := c.db.UpsertServer(ctx, existing); err != nil {
			return false, err
		}
		return false, nil
	}

	srv.FirstSeen = now
	srv.LastSeen = now
	srv.Channels = nil
	if err := c.db.UpsertServer(ctx, srv); err != nil {
		return false, err
	}
	c.servers[srv.ID] = srv
	return true, nil
}

// MergeChannel records an observed announcement channel under its server.
// Channels forward through the account that owns the server, so reports from
// other accounts seeing the same guild are ignored. Returns (added, updated).
func (c *Catalog) MergeChannel(ctx context.Context, accountID string, ch *models.Channel) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	srv, ok := c.servers[ch.ServerID]
	if !ok || srv.AccountID != accountID {
		return false, false, nil
	}

	for _, existing := range srv.Channels {
		if existing.ID != ch.ID {
			continue
		}
		changed := existing.Name != ch.Name || existing.Priority != ch.Priority || existing.Stale
		existing.Name = ch.Name
		existing.Priority = ch.Priority
		existing.IsAnnouncement = ch.IsAnnouncement
		existing.Stale = false
		if err := c.db.UpsertChannel(ctx, existing); err != nil {
			return false, false, err
		}
		return false, changed, nil
	}

	if err := c.db.UpsertChannel(ctx, ch); err != nil {
		return false, false, err
	}
	srv.Channels = append(srv.Channels, ch)
	return true, false, nil
}

// MarkUnseenStale flags servers and channels belonging to accountID that were
// not in the seen sets during the latest discovery pass. Returns how many
// entries changed to stale.
func (c *Catalog) MarkUnseenStale(ctx context.Context, accountID string, seenServers, seenChannels map[string]bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	marked := 0
	for _, srv := range c.servers {
		if srv.AccountID != accountID {
			continue
		}
		if !seenServers[srv.ID] && !srv.Stale {
			srv.Stale = true
			if err := c.db.MarkServerStale(ctx, srv.ID, true); err != nil {
				return marked, err
			}
			marked++
		}
		for _, ch := range srv.Channels {
			if !seenChannels[ch.ID] && !ch.Stale {
				ch.Stale = true
				if err := c.db.MarkChannelStale(ctx, ch.ID, true); err != nil {
					return marked, err
				}
				marked++
			}
		}
	}
	return marked, nil
}

// Servers returns a snapshot of all servers, fresh ones before stale, each
// group sorted by name. Channels are sorted by priority then name. The
// snapshot owns its slices; callers must not mutate the pointed-to values.
func (c *Catalog) Servers() []*models.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Server, 0, len(c.servers))
	for _, srv := range c.servers {
		cp := *srv
		cp.Channels = append([]*models.Channel(nil), srv.Channels...)
		sort.Slice(cp.Channels, func(i, j int) bool {
			if cp.Channels[i].Priority != cp.Channels[j].Priority {
				return cp.Channels[i].Priority < cp.Channels[j].Priority
			}
			return cp.Channels[i].Name < cp.Channels[j].Name
		})
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stale != out[j].Stale {
			return !out[i].Stale
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Server returns the server with the given ID, or nil.
func (c *Catalog) Server(serverID string) *models.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.servers[serverID]
}

// ServerByName does a case-sensitive exact name lookup, preferring fresh
// entries over stale ones.
func (c *Catalog) ServerByName(name string) *models.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stale *models.Server
	for _, srv := range c.servers {
		if srv.Name != name {
			continue
		}
		if !srv.Stale {
			return srv
		}
		stale = srv
	}
	return stale
}

// ActiveChannels lists every non-stale announcement channel with its owning
// account and server, for the relay engine to poll.
func (c *Catalog) ActiveChannels() []ChannelRef {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var refs []ChannelRef
	for _, srv := range c.servers {
		if srv.Stale {
			continue
		}
		for _, ch := range srv.Channels {
			if ch.Stale || !ch.IsAnnouncement {
				continue
			}
			refs = append(refs, ChannelRef{
				AccountID:   srv.AccountID,
				ServerID:    srv.ID,
				ServerName:  srv.Name,
				ChannelID:   ch.ID,
				ChannelName: ch.Name,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ChannelID < refs[j].ChannelID })
	return refs
}

// Counts returns (servers, channels, staleEntries) for the status surface.
func (c *Catalog) Counts() (int, int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	servers, channels, stale := 0, 0, 0
	for _, srv := range c.servers {
		servers++
		if srv.Stale {
			stale++
		}
		for _, ch := range srv.Channels {
			channels++
			if ch.Stale {
				stale++
			}
		}
	}
	return servers, channels, stale
}

// ChannelRef identifies one forwardable channel together with the account
// responsible for reading it.
type ChannelRef struct {
	AccountID   string
	ServerID    string
	ServerName  string
	ChannelID   string
	ChannelName string
}
