package media

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Kind buckets an attachment by its file type.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

var extensions = map[Kind][]string{
	KindImage: {"png", "jpg", "jpeg", "gif", "webp", "bmp", "svg"},
	KindVideo: {"mp4", "webm", "mov", "avi", "mkv"},
	KindAudio: {"mp3", "ogg", "wav", "flac", "m4a", "opus"},
}

// Classify determines an attachment's kind from its URL or filename.
// Discord CDN URLs carry signing query parameters, those are stripped
// before looking at the extension. Anything unrecognized is a document.
func Classify(rawURL string) Kind {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return KindDocument
	}

	for kind, exts := range extensions {
		for _, e := range exts {
			if ext == e {
				return kind
			}
		}
	}
	return KindDocument
}

// Emoji returns the marker used when rendering an attachment of this kind.
func (k Kind) Emoji() string {
	switch k {
	case KindImage:
		return "🖼"
	case KindVideo:
		return "🎬"
	case KindAudio:
		return "🎵"
	default:
		return "📎"
	}
}
