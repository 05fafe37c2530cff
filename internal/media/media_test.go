package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	f := NewFilter([]string{"MP4", ".mov", "png"}, []string{"m3u"})

	tests := []struct {
		path string
		want Type
	}{
		{"/a/clip.mp4", Video},
		{"/a/CLIP.MP4", Video},
		{"/a/clip.mov", Video},
		{"/a/banner.png", Image},
		{"/a/list.m3u", Playlist},
		{"/a/clip.avi", Unknown},
		{"/a/notes.txt", Unknown},
		{"/a/noext", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Detect(tt.path))
		})
	}
}

func TestIsPlaylistAndSupported(t *testing.T) {
	f := DefaultFilter()

	assert.True(t, f.IsPlaylist("x.M3U8"))
	assert.False(t, f.IsPlaylist("x.mp4"))
	assert.True(t, f.IsSupported("x.webm"))
	assert.True(t, f.IsSupported("x.pls"))
	assert.False(t, f.IsSupported("x.doc"))
}

func TestIsImage(t *testing.T) {
	f := DefaultFilter()

	assert.True(t, f.IsImage("/a/still.JPG"))
	assert.True(t, f.IsImage("/a/still.png"))
	assert.False(t, f.IsImage("/a/clip.mp4"))
	assert.False(t, f.IsImage("/a/show.m3u"))
	// Not in the allowed list.
	assert.False(t, f.IsImage("/a/still.gif"))
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "video", Video.String())
	assert.Equal(t, "image", Image.String())
	assert.Equal(t, "playlist", Playlist.String())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestEmptyEntriesIgnored(t *testing.T) {
	f := NewFilter([]string{"", " ", "mp4"}, nil)
	assert.ElementsMatch(t, []string{".mp4"}, f.Extensions())
}
