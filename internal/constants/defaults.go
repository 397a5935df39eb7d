package constants

// Default polling and retry configuration values
const (
	DefaultPollIntervalSec    = 60
	DefaultPollBatchSize      = 10
	DefaultDiscoveryIntervalH = 6
	DefaultRetryBackoffMs     = 1000
	DefaultMaxBackoffMs       = 60000
	DefaultMaxAttempts        = 5
	DefaultRetentionDays      = 30
	DefaultServerPort         = 8082
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGatewayHandshakeSec   = 20
	ClaimReleaseTimeoutSec       = 5
)

// Discord API limits
const (
	DiscordGuildPageLimit    = 200
	DiscordMessageFetchLimit = 100
	MaxAnnouncementChannels  = 5
)

// Telegram API limits
const (
	TelegramMaxMessageLength = 4096
	TelegramTopicIconColor   = 0x6FB9F0
)

// Channel buffer sizes
const (
	ServerErrorChannelSize  = 1
	GatewayEventBufferSize  = 64
	ChannelWorkerBufferSize = 32
)
