package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/database"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/retry"
	"github.com/bogdan-lmk/discord-parer/internal/service"
	"github.com/bogdan-lmk/discord-parer/pkg/circuitbreaker"
	"github.com/bogdan-lmk/discord-parer/pkg/discord"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"
	"github.com/bogdan-lmk/discord-parer/pkg/telegram"
	telegramtypes "github.com/bogdan-lmk/discord-parer/pkg/telegram/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testBotToken = "123456789:integration-secret"
	testChatID   = int64(-1001234567890)
)

// TestEnvironment wires the real pipeline (catalog, discoverer, relay, sink)
// against in-process fake Discord and Telegram APIs backed by mutable
// fixture state.
type TestEnvironment struct {
	t      *testing.T
	logger *logrus.Logger

	DB       *database.Database
	Catalog  *service.Catalog
	Registry *service.AccountRegistry
	Disc     *service.Discoverer
	Relay    *service.Relay
	Sink     *service.TelegramSink
	Commands *service.Commands

	discordAPI  *httptest.Server
	telegramAPI *httptest.Server

	mu       sync.Mutex
	accounts map[string]discordtypes.User // token -> identity
	guilds   map[string][]discordtypes.Guild
	channels map[string][]discordtypes.GuildChannel
	messages map[string][]discordtypes.Message

	sent          []telegramtypes.SendMessageRequest
	topics        []string
	failNextSends int
}

// NewTestEnvironment builds an environment with empty fixture state. Topics
// are enabled so forum creation is part of the exercised path.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{
		t:        t,
		accounts: make(map[string]discordtypes.User),
		guilds:   make(map[string][]discordtypes.Guild),
		channels: make(map[string][]discordtypes.GuildChannel),
		messages: make(map[string][]discordtypes.Message),
	}

	env.logger = logrus.New()
	env.logger.SetLevel(logrus.PanicLevel)

	env.discordAPI = httptest.NewServer(http.HandlerFunc(env.serveDiscord))
	env.telegramAPI = httptest.NewServer(http.HandlerFunc(env.serveTelegram))
	t.Cleanup(env.discordAPI.Close)
	t.Cleanup(env.telegramAPI.Close)

	dbPath := filepath.Join(t.TempDir(), "relay.db")
	db, err := database.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	env.DB = db

	env.Catalog = service.NewCatalog(db)
	require.NoError(t, env.Catalog.Load(context.Background()))
	env.Registry = service.NewAccountRegistry(env.logger)
	env.Disc = service.NewDiscoverer(env.Registry, env.Catalog, 2, env.logger)

	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  4,
	})
	telegramClient := telegram.NewClientWithLogger(telegram.ClientConfig{
		BaseURL:  env.telegramAPI.URL,
		BotToken: testBotToken,
		Timeout:  5 * time.Second,
	}, env.logger)

	formatter := service.NewFormatter(true, true)
	env.Sink = service.NewTelegramSink(telegramClient, formatter, backoff, testChatID, true, env.logger)
	require.NoError(t, env.Sink.VerifyChat(context.Background()))

	env.Relay = service.NewRelay(env.Registry, env.Catalog, db, env.Sink, models.Config{
		Discord: models.DiscordConfig{PollIntervalSec: 1, PollBatchSize: 50},
	}, env.logger)
	env.Commands = service.NewCommands(env.Catalog, env.Registry, env.Disc, env.Relay, db)

	return env
}

// RegisterAccount creates a Discord identity for token and registers a real
// REST client for it.
func (env *TestEnvironment) RegisterAccount(token, userID, username string) *service.AccountSession {
	env.mu.Lock()
	env.accounts[token] = discordtypes.User{ID: userID, Username: username}
	env.mu.Unlock()

	client := discord.NewClientWithLogger(discord.ClientConfig{
		BaseURL: env.discordAPI.URL,
		Token:   token,
		Timeout: 5 * time.Second,
	}, env.logger)
	breaker := circuitbreaker.NewWithLogger("discord-"+username, 5, time.Second, env.logger)

	session, err := env.Registry.Register(context.Background(), client, breaker)
	require.NoError(env.t, err)
	return session
}

func (env *TestEnvironment) AddGuild(token string, guild discordtypes.Guild, channels ...discordtypes.GuildChannel) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.guilds[token] = append(env.guilds[token], guild)
	env.channels[guild.ID] = append(env.channels[guild.ID], channels...)
}

func (env *TestEnvironment) AddMessage(channelID string, msg discordtypes.Message) {
	env.mu.Lock()
	defer env.mu.Unlock()
	msg.ChannelID = channelID
	env.messages[channelID] = append(env.messages[channelID], msg)
}

// FailNextSends makes the fake Telegram API answer the next n sendMessage
// calls with HTTP 502.
func (env *TestEnvironment) FailNextSends(n int) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.failNextSends = n
}

// SentMessages returns a snapshot of everything delivered to Telegram.
func (env *TestEnvironment) SentMessages() []telegramtypes.SendMessageRequest {
	env.mu.Lock()
	defer env.mu.Unlock()
	out := make([]telegramtypes.SendMessageRequest, len(env.sent))
	copy(out, env.sent)
	return out
}

// CreatedTopics returns the names of forum topics created so far.
func (env *TestEnvironment) CreatedTopics() []string {
	env.mu.Lock()
	defer env.mu.Unlock()
	out := make([]string, len(env.topics))
	copy(out, env.topics)
	return out
}

func (env *TestEnvironment) serveDiscord(w http.ResponseWriter, r *http.Request) {
	env.mu.Lock()
	defer env.mu.Unlock()

	token := r.Header.Get("Authorization")
	user, ok := env.accounts[token]
	if !ok {
		http.Error(w, `{"message":"401: Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/users/@me":
		writeJSON(w, user)

	case path == "/users/@me/guilds":
		guilds := env.guilds[token]
		if guilds == nil {
			guilds = []discordtypes.Guild{}
		}
		writeJSON(w, guilds)

	case strings.HasPrefix(path, "/guilds/") && strings.HasSuffix(path, "/channels"):
		guildID := strings.TrimSuffix(strings.TrimPrefix(path, "/guilds/"), "/channels")
		channels := env.channels[guildID]
		if channels == nil {
			channels = []discordtypes.GuildChannel{}
		}
		writeJSON(w, channels)

	case strings.HasPrefix(path, "/channels/") && strings.HasSuffix(path, "/messages"):
		channelID := strings.TrimSuffix(strings.TrimPrefix(path, "/channels/"), "/messages")
		after := r.URL.Query().Get("after")

		var out []discordtypes.Message
		for _, msg := range env.messages[channelID] {
			if after == "" || msg.ID > after {
				out = append(out, msg)
			}
		}
		// The real API returns newest first.
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		if out == nil {
			out = []discordtypes.Message{}
		}
		writeJSON(w, out)

	default:
		http.NotFound(w, r)
	}
}

func (env *TestEnvironment) serveTelegram(w http.ResponseWriter, r *http.Request) {
	env.mu.Lock()
	defer env.mu.Unlock()

	prefix := "/bot" + testBotToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, `{"ok":false,"description":"Unauthorized","error_code":401}`, http.StatusUnauthorized)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)

	switch method {
	case "getChat":
		writeEnvelope(w, telegramtypes.Chat{ID: testChatID, Type: "supergroup", IsForum: true})

	case "sendMessage":
		if env.failNextSends > 0 {
			env.failNextSends--
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Gateway","error_code":502}`))
			return
		}
		var req telegramtypes.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		env.sent = append(env.sent, req)
		writeEnvelope(w, telegramtypes.Message{MessageID: len(env.sent), Text: req.Text})

	case "createForumTopic":
		var req telegramtypes.CreateForumTopicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		env.topics = append(env.topics, req.Name)
		writeEnvelope(w, telegramtypes.ForumTopic{MessageThreadID: 100 + len(env.topics), Name: req.Name})

	default:
		http.Error(w, fmt.Sprintf(`{"ok":false,"description":"method %s not found","error_code":404}`, method), http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, result interface{}) {
	raw, _ := json.Marshal(result)
	writeJSON(w, telegramtypes.APIResponse{OK: true, Result: raw})
}
