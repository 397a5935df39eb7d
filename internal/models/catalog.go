package models

import (
	"time"
)

type AccountState string

const (
	AccountDisconnected AccountState = "disconnected"
	AccountConnecting   AccountState = "connecting"
	AccountConnected    AccountState = "connected"
	AccountDegraded     AccountState = "degraded"
)

// Account identifies one authenticated Discord identity. The credential
// itself lives in the client constructed for it, never here.
type Account struct {
	ID       string
	Username string
	State    AccountState
}

// Server is a discovered Discord guild. Servers are never deleted from the
// catalog; ones no longer visible are flagged stale so history stays
// queryable.
type Server struct {
	ID        string
	Name      string
	AccountID string
	Stale     bool
	FirstSeen time.Time
	LastSeen  time.Time
	Channels  []*Channel
}

// Channel is a discovered guild channel that classified as announcement-like.
type Channel struct {
	ID             string
	ServerID       string
	Name           string
	IsAnnouncement bool
	Priority       int
	Stale          bool
	// LastMessageID is the ingestion cursor: the snowflake of the last
	// message processed on this channel. Advanced only by the relay engine.
	LastMessageID string
}

// DiscoveryDiff summarizes one discovery pass for the command surface.
type DiscoveryDiff struct {
	ServersAdded    int      `json:"serversAdded"`
	ChannelsAdded   int      `json:"channelsAdded"`
	ChannelsUpdated int      `json:"channelsUpdated"`
	MarkedStale     int      `json:"markedStale"`
	AccountsFailed  []string `json:"accountsFailed,omitempty"`
}

func (d DiscoveryDiff) Empty() bool {
	return d.ServersAdded == 0 && d.ChannelsAdded == 0 && d.ChannelsUpdated == 0 && d.MarkedStale == 0
}
