package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/service"
	telegramtypes "github.com/bogdan-lmk/discord-parer/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

const updatePollTimeoutSec = 30

// TopicResetter clears cached forum topics so they are recreated on demand.
type TopicResetter interface {
	ResetTopics() int
}

// Bot serves operator commands sent to the destination chat. It long polls
// getUpdates and only reacts to messages from the configured chat.
type Bot struct {
	client   telegramtypes.Client
	commands *service.Commands
	topics   TopicResetter
	chatID   int64
	logger   *logrus.Logger
	offset   int
}

func New(client telegramtypes.Client, commands *service.Commands, topics TopicResetter, chatID int64, logger *logrus.Logger) *Bot {
	return &Bot{
		client:   client,
		commands: commands,
		topics:   topics,
		chatID:   chatID,
		logger:   logger,
	}
}

// Run polls for commands until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("Command bot started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, b.offset, updatePollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.WithError(err).Warn("Failed to fetch bot updates")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			b.offset = update.UpdateID + 1
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telegramtypes.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.ID != b.chatID || !strings.HasPrefix(msg.Text, "/") {
		return
	}

	fields := strings.Fields(msg.Text)
	command := strings.ToLower(fields[0])
	// Strip the @botname suffix used in group chats.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	args := fields[1:]

	b.logger.WithFields(logrus.Fields{
		"command": command,
		"from":    senderName(msg),
	}).Info("Handling bot command")

	var reply string
	switch command {
	case "/servers":
		reply = b.renderServers()
	case "/channels":
		reply = b.renderChannels(args)
	case "/latest":
		reply = b.renderLatest(ctx, args)
	case "/discover":
		reply = b.renderDiscover(ctx)
	case "/status":
		reply = b.renderStatus(ctx)
	case "/reset_topics":
		reply = fmt.Sprintf("Cleared %d cached topics. New topics will be created on the next announcement.", b.topics.ResetTopics())
	case "/help", "/start":
		reply = helpText
	default:
		return
	}

	b.reply(ctx, msg, reply)
}

func (b *Bot) reply(ctx context.Context, msg *telegramtypes.Message, text string) {
	_, err := b.client.SendMessage(ctx, telegramtypes.SendMessageRequest{
		ChatID:                b.chatID,
		Text:                  text,
		MessageThreadID:       msg.MessageThreadID,
		DisableWebPagePreview: true,
	})
	if err != nil {
		b.logger.WithError(err).Warn("Failed to send bot reply")
	}
}

func (b *Bot) renderServers() string {
	servers := b.commands.ListServers()
	if len(servers) == 0 {
		return "No servers discovered yet. Try /discover."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Servers (%d):\n", len(servers)))
	for _, srv := range servers {
		marker := "🟢"
		if srv.Stale {
			marker = "⚪"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%d channels)\n", marker, srv.Name, len(srv.Channels)))
	}
	sb.WriteString("\n⚪ = no longer visible to any account")
	return sb.String()
}

func (b *Bot) renderChannels(args []string) string {
	if len(args) == 0 {
		return "Usage: /channels <server name or ID>"
	}
	srv, err := b.commands.ListChannels(strings.Join(args, " "))
	if err != nil {
		return err.Error()
	}
	if len(srv.Channels) == 0 {
		return fmt.Sprintf("No announcement channels tracked on %s.", srv.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📢 %s:\n", srv.Name))
	for _, ch := range srv.Channels {
		marker := "🟢"
		if ch.Stale {
			marker = "⚪"
		}
		sb.WriteString(fmt.Sprintf("%s #%s\n", marker, ch.Name))
	}
	return sb.String()
}

func (b *Bot) renderLatest(ctx context.Context, args []string) string {
	const usage = "Usage: /latest [server ID] [channel ID] [count]"
	limit := 10
	var serverID, channelID string
	for _, arg := range args {
		// Snowflake-sized numbers filter by server then channel;
		// anything shorter is the count.
		if len(arg) >= 15 {
			switch {
			case serverID == "":
				serverID = arg
			case channelID == "":
				channelID = arg
			default:
				return usage
			}
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return usage
		}
		limit = n
	}

	records, err := b.commands.Latest(ctx, serverID, channelID, limit)
	if err != nil {
		return "Failed to load recent forwards: " + err.Error()
	}
	if len(records) == 0 {
		return "Nothing forwarded yet."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🕐 Last %d forwards:\n", len(records)))
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("📅 %s 👤 %s\n💬 %s\n\n",
			rec.SourceTimestamp.UTC().Format("2006-01-02 15:04"),
			rec.Author,
			truncate(rec.Content, 120)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) renderDiscover(ctx context.Context) string {
	diff := b.commands.Discover(ctx)
	var sb strings.Builder
	sb.WriteString("🔍 Discovery finished.\n")
	if diff.Empty() {
		sb.WriteString("No catalog changes.")
	} else {
		sb.WriteString(fmt.Sprintf("Servers added: %d\nChannels added: %d\nChannels updated: %d\nMarked stale: %d",
			diff.ServersAdded, diff.ChannelsAdded, diff.ChannelsUpdated, diff.MarkedStale))
	}
	if len(diff.AccountsFailed) > 0 {
		sb.WriteString("\n⚠️ Failed accounts: " + strings.Join(diff.AccountsFailed, ", "))
	}
	return sb.String()
}

func (b *Bot) renderStatus(ctx context.Context) string {
	st, err := b.commands.Status(ctx)
	if err != nil {
		return "Failed to collect status: " + err.Error()
	}

	var sb strings.Builder
	sb.WriteString("📊 Status:\n")
	for _, acc := range st.Accounts {
		marker := "🟢"
		if acc.State != models.AccountConnected {
			marker = "🔴"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s)\n", marker, acc.Username, acc.State))
	}
	sb.WriteString(fmt.Sprintf("Servers: %d (stale entries: %d)\n", st.Servers, st.StaleEntries))
	sb.WriteString(fmt.Sprintf("Channels: %d\n", st.Channels))
	sb.WriteString(fmt.Sprintf("Total forwards: %d", st.TotalForwards))
	return sb.String()
}

const helpText = `Available commands:
/servers - list discovered servers
/channels <server> - list a server's announcement channels
/latest [server ID] [channel ID] [n] - show the last n forwarded announcements
/discover - run a discovery pass now
/status - accounts, catalog and forward counts
/reset_topics - recreate forum topics on next delivery
/help - this message`

func senderName(msg *telegramtypes.Message) string {
	if msg.From == nil {
		return "unknown"
	}
	if msg.From.Username != "" {
		return msg.From.Username
	}
	return msg.From.FirstName
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
