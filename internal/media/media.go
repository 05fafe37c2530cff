// Package media classifies files by extension, distinguishing playable
// videos, still images and sub-playlist files the player expands itself.
package media

import (
	"path/filepath"
	"strings"
)

// Type represents the kind of media file.
type Type int

const (
	Unknown Type = iota
	Video
	Image
	Playlist
)

func (t Type) String() string {
	switch t {
	case Video:
		return "video"
	case Image:
		return "image"
	case Playlist:
		return "playlist"
	default:
		return "unknown"
	}
}

// Image file extensions. Anything allowed that is not an image or a
// playlist is treated as video.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".tiff": true,
	".svg":  true,
}

// DefaultMediaExtensions are used when the configuration does not list any.
var DefaultMediaExtensions = []string{"mp4", "avi", "mov", "mkv", "webm", "jpg", "jpeg", "png"}

// DefaultPlaylistExtensions are sub-playlist formats handed to the player as-is.
var DefaultPlaylistExtensions = []string{"m3u", "m3u8", "pls", "xspf"}

// Filter decides which files are eligible for a playlist.
type Filter struct {
	media     map[string]bool
	playlists map[string]bool
}

// NewFilter builds a Filter from extension lists. Entries may be given with
// or without the leading dot and in any case.
func NewFilter(mediaExts, playlistExts []string) *Filter {
	return &Filter{
		media:     extSet(mediaExts),
		playlists: extSet(playlistExts),
	}
}

// DefaultFilter returns a Filter over the default extension lists.
func DefaultFilter() *Filter {
	return NewFilter(DefaultMediaExtensions, DefaultPlaylistExtensions)
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Detect returns the media type for a given file path based on extension.
func (f *Filter) Detect(path string) Type {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case f.playlists[ext]:
		return Playlist
	case !f.media[ext]:
		return Unknown
	case imageExts[ext]:
		return Image
	default:
		return Video
	}
}

// IsSupported returns true if the file has an allowed extension.
func (f *Filter) IsSupported(path string) bool {
	return f.Detect(path) != Unknown
}

// IsPlaylist reports whether path is a sub-playlist file. Those can leave
// the player stuck unless its queue is cleared before loading them.
func (f *Filter) IsPlaylist(path string) bool {
	return f.Detect(path) == Playlist
}

// IsImage reports whether path is an allowed still image.
func (f *Filter) IsImage(path string) bool {
	return f.Detect(path) == Image
}

// Extensions returns every allowed extension, dot-prefixed.
func (f *Filter) Extensions() []string {
	out := make([]string, 0, len(f.media)+len(f.playlists))
	for e := range f.media {
		out = append(out, e)
	}
	for e := range f.playlists {
		out = append(out, e)
	}
	return out
}
