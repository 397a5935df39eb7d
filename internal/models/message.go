package models

import (
	"time"
)

type ForwardStatus string

const (
	ForwardStatusInFlight  ForwardStatus = "inflight"
	ForwardStatusCommitted ForwardStatus = "committed"
)

// Message is a single announcement observed on a Discord channel. It is
// immutable once observed; the relay never edits or re-reads source messages.
type Message struct {
	AccountID   string
	ServerID    string
	ServerName  string
	ChannelID   string
	ChannelName string
	MessageID   string
	Author      string
	Content     string
	Timestamp   time.Time
	Attachments []string
}

// ForwardRecord is the dedup unit: at most one committed record may ever
// exist for a given (account, channel, message) key.
type ForwardRecord struct {
	ID              int64         `db:"id"`
	AccountID       string        `db:"account_id"`
	ServerID        string        `db:"server_id"`
	ChannelID       string        `db:"channel_id"`
	MessageID       string        `db:"message_id"`
	Author          string        `db:"author"`
	Content         string        `db:"content"`
	SourceTimestamp time.Time     `db:"source_timestamp"`
	Status          ForwardStatus `db:"status"`
	ClaimedAt       time.Time     `db:"claimed_at"`
	CommittedAt     *time.Time    `db:"committed_at"`
}
