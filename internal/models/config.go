package models

type Config struct {
	Discord   DiscordConfig  `json:"discord"`
	Telegram  TelegramConfig `json:"telegram"`
	Relay     RelayConfig    `json:"relay"`
	Retry     RetryConfig    `json:"retry"`
	Database  DatabaseConfig `json:"database"`
	Server    ServerConfig   `json:"server"`
	Tracing   TracingConfig  `json:"tracing"`
	LogLevel  string         `json:"logLevel,omitempty"`
	Retention RetentionConfig `json:"retention"`
}

type DiscordConfig struct {
	// Tokens is normally empty in the file and injected via the
	// DISCORD_AUTH_TOKENS environment variable (comma separated).
	Tokens          []string `json:"tokens,omitempty"`
	APIBaseURL      string   `json:"apiBaseUrl,omitempty"`
	PollIntervalSec int      `json:"pollIntervalSec,omitempty"`
	PollBatchSize   int      `json:"pollBatchSize,omitempty"`
	GatewayEnabled  bool     `json:"gatewayEnabled,omitempty"`
	TimeoutSec      int      `json:"timeoutSec,omitempty"`
}

type TelegramConfig struct {
	BotToken       string `json:"botToken,omitempty"`
	ChatID         int64  `json:"chatId,omitempty"`
	APIBaseURL     string `json:"apiBaseUrl,omitempty"`
	UseTopics      bool   `json:"useTopics"`
	ShowTimestamps bool   `json:"showTimestamps"`
	TimeoutSec     int    `json:"timeoutSec,omitempty"`
}

type RelayConfig struct {
	// SkipPoisonMessages advances a channel cursor past a message whose
	// delivery failed permanently instead of halting that channel.
	SkipPoisonMessages    *bool `json:"skipPoisonMessages,omitempty"`
	DiscoveryIntervalHours int  `json:"discoveryIntervalHours,omitempty"`
	DiscoveryOnStartup     bool `json:"discoveryOnStartup"`
	MaxConcurrentDiscovery int  `json:"maxConcurrentDiscovery,omitempty"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ServerConfig struct {
	Port int `json:"port,omitempty"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName,omitempty"`
	ServiceVersion string  `json:"serviceVersion,omitempty"`
	Environment    string  `json:"environment,omitempty"`
	OTLPEndpoint   string  `json:"otlpEndpoint,omitempty"`
	SampleRate     float64 `json:"sampleRate,omitempty"`
	UseStdout      bool    `json:"useStdout,omitempty"`
}

type RetentionConfig struct {
	Days                 int `json:"days,omitempty"`
	CleanupIntervalHours int `json:"cleanupIntervalHours,omitempty"`
}

// SkipPoison returns the poison-message policy with its default applied.
func (c RelayConfig) SkipPoison() bool {
	if c.SkipPoisonMessages == nil {
		return true
	}
	return *c.SkipPoisonMessages
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
