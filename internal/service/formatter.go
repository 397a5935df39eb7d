package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/media"
	"github.com/bogdan-lmk/discord-parer/internal/models"
)

// Formatter renders announcements into the text pushed to Telegram.
type Formatter struct {
	showTimestamps bool
	useTopics      bool
}

func NewFormatter(showTimestamps, useTopics bool) *Formatter {
	return &Formatter{
		showTimestamps: showTimestamps,
		useTopics:      useTopics,
	}
}

// Format renders one announcement. When topics are in use the server name is
// carried by the topic itself and omitted from the body.
func (f *Formatter) Format(msg *models.Message) string {
	var b strings.Builder

	if !f.useTopics {
		b.WriteString(fmt.Sprintf("🏰 %s\n", msg.ServerName))
	}
	b.WriteString(fmt.Sprintf("📢 #%s\n", msg.ChannelName))
	if f.showTimestamps {
		b.WriteString(fmt.Sprintf("📅 %s\n", msg.Timestamp.UTC().Format("2006-01-02 15:04:05")))
	}
	b.WriteString(fmt.Sprintf("👤 %s\n", author(msg)))
	b.WriteString(fmt.Sprintf("💬 %s", content(msg)))

	for _, url := range msg.Attachments {
		b.WriteString("\n" + media.Classify(url).Emoji() + " " + url)
	}
	return b.String()
}

func author(msg *models.Message) string {
	if msg.Author == "" {
		return "Unknown"
	}
	return msg.Author
}

func content(msg *models.Message) string {
	text := strings.TrimRight(msg.Content, "\n")
	if text == "" && len(msg.Attachments) > 0 {
		return "(attachment)"
	}
	if text == "" {
		return "(no text)"
	}
	return text
}

// Split breaks rendered text into chunks that fit Telegram's message length
// limit, preferring line boundaries. Continuation chunks are numbered.
func (f *Formatter) Split(text string) []string {
	if utf8.RuneCountInString(text) <= constants.TelegramMaxMessageLength {
		return []string{text}
	}

	// Reserve room for the continuation marker on every chunk.
	limit := constants.TelegramMaxMessageLength - 16
	var chunks []string
	remaining := text
	for utf8.RuneCountInString(remaining) > limit {
		runes := []rune(remaining)
		cut := limit
		// Prefer the last newline inside the window, as long as it does not
		// leave a tiny fragment.
		if idx := strings.LastIndex(string(runes[:limit]), "\n"); idx > limit/2 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:idx])
		}
		chunks = append(chunks, string(runes[:cut]))
		remaining = strings.TrimLeft(string(runes[cut:]), "\n")
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}

	for i := range chunks {
		if i > 0 {
			chunks[i] = fmt.Sprintf("(%d/%d)\n%s", i+1, len(chunks), chunks[i])
		}
	}
	return chunks
}
