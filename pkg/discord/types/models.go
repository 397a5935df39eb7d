package types

import (
	"encoding/json"
	"time"
)

// Channel types as defined by the Discord API.
const (
	ChannelTypeGuildText         = 0
	ChannelTypeGuildAnnouncement = 5
)

// User is the authenticated identity behind a token.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// Guild is a server visible to an account.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GuildChannel is one channel inside a guild.
type GuildChannel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// Author of a message.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Attachment on a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Message is one message as returned by the channel messages endpoint.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Content     string       `json:"content"`
	Author      Author       `json:"author"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// RateLimitResponse is the 429 body.
type RateLimitResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// Gateway opcodes used by the streaming client.
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpIdentify     = 2
	OpHello        = 10
	OpHeartbeatACK = 11
)

// Gateway dispatch event names.
const (
	EventReady         = "READY"
	EventMessageCreate = "MESSAGE_CREATE"
)

// GatewayPayload is the envelope of every gateway frame.
type GatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

// HelloData is the payload of the HELLO frame.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// ReadyData is the payload of the READY dispatch.
type ReadyData struct {
	SessionID string `json:"session_id"`
	User      User   `json:"user"`
}

// IdentifyData is sent to authenticate the gateway connection.
type IdentifyData struct {
	Token      string             `json:"token"`
	Properties IdentifyProperties `json:"properties"`
	Compress   bool               `json:"compress"`
	Intents    int                `json:"intents"`
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

// GatewayURLResponse is the body of GET /gateway.
type GatewayURLResponse struct {
	URL string `json:"url"`
}

// ConnectionState describes one gateway connection's lifecycle.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)
