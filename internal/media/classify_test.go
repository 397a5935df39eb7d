package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected Kind
	}{
		{"png image", "https://cdn.discordapp.com/attachments/1/2/shot.png", KindImage},
		{"jpeg uppercase", "https://cdn.discordapp.com/attachments/1/2/PHOTO.JPEG", KindImage},
		{"signed cdn url", "https://cdn.discordapp.com/attachments/1/2/clip.mp4?ex=66f&is=66e&hm=abc", KindVideo},
		{"audio", "https://cdn.discordapp.com/attachments/1/2/voice.ogg", KindAudio},
		{"pdf is document", "https://cdn.discordapp.com/attachments/1/2/report.pdf", KindDocument},
		{"no extension", "https://cdn.discordapp.com/attachments/1/2/README", KindDocument},
		{"bare filename", "notes.txt", KindDocument},
		{"empty", "", KindDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.url))
		})
	}
}

func TestKindEmoji(t *testing.T) {
	assert.Equal(t, "🖼", KindImage.Emoji())
	assert.Equal(t, "🎬", KindVideo.Emoji())
	assert.Equal(t, "🎵", KindAudio.Emoji())
	assert.Equal(t, "📎", KindDocument.Emoji())
	assert.Equal(t, "📎", Kind("other").Emoji())
}
