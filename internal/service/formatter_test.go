package service

import (
	"strings"
	"testing"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *models.Message {
	return &models.Message{
		ServerName:  "Crypto News",
		ChannelName: "announcements",
		Author:      "alice",
		Content:     "Mainnet launch tomorrow",
		Timestamp:   time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestFormatWithTopics(t *testing.T) {
	f := NewFormatter(true, true)
	out := f.Format(sampleMessage())

	// The topic carries the server name, the body does not repeat it.
	assert.NotContains(t, out, "Crypto News")
	assert.Contains(t, out, "📢 #announcements")
	assert.Contains(t, out, "📅 2025-03-01 12:30:00")
	assert.Contains(t, out, "👤 alice")
	assert.Contains(t, out, "💬 Mainnet launch tomorrow")
}

func TestFormatWithoutTopics(t *testing.T) {
	f := NewFormatter(false, false)
	out := f.Format(sampleMessage())

	assert.Contains(t, out, "🏰 Crypto News")
	assert.NotContains(t, out, "📅")
}

func TestFormatEmptyFields(t *testing.T) {
	f := NewFormatter(false, true)

	msg := sampleMessage()
	msg.Author = ""
	msg.Content = ""
	out := f.Format(msg)
	assert.Contains(t, out, "👤 Unknown")
	assert.Contains(t, out, "💬 (no text)")

	msg.Attachments = []string{"https://cdn.example.com/image.png", "https://cdn.example.com/report.pdf"}
	out = f.Format(msg)
	assert.Contains(t, out, "💬 (attachment)")
	assert.Contains(t, out, "🖼 https://cdn.example.com/image.png")
	assert.Contains(t, out, "📎 https://cdn.example.com/report.pdf")
}

func TestSplitShortMessage(t *testing.T) {
	f := NewFormatter(false, true)
	chunks := f.Split("short message")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short message", chunks[0])
}

func TestSplitLongMessage(t *testing.T) {
	f := NewFormatter(false, true)

	var sb strings.Builder
	for i := 0; i < 600; i++ {
		sb.WriteString("line of announcement text\n")
	}
	chunks := f.Split(sb.String())

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), constants.TelegramMaxMessageLength, "chunk %d too long", i)
		if i > 0 {
			assert.Regexp(t, `^\(\d+/\d+\)`, chunk)
		}
	}

	// Nothing is lost across the split.
	var total int
	for _, chunk := range chunks {
		total += strings.Count(chunk, "line of announcement text")
	}
	assert.Equal(t, 600, total)
}

func TestSplitPrefersLineBoundaries(t *testing.T) {
	f := NewFormatter(false, true)

	long := strings.Repeat("word ", 900) + "\n" + strings.Repeat("tail ", 200)
	chunks := f.Split(long)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), constants.TelegramMaxMessageLength)
	}
}
