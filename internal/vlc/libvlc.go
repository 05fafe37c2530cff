//go:build libvlc

// In-process backend: CGO bindings to libVLC. Only built with -tags libvlc
// so the default binary needs no C toolchain.
package vlc

import (
	"context"
	"fmt"
	"sync"
	"time"

	libvlc "github.com/adrg/libvlc-go/v3"
	"github.com/rs/zerolog"
)

var (
	vlcInitOnce sync.Once
	vlcInitErr  error
)

// LibVLC plays items in-process through a libVLC media player.
type LibVLC struct {
	mu     sync.Mutex
	player *libvlc.Player
	media  *libvlc.Media
	log    zerolog.Logger
}

// NewLibVLC initialises libVLC once per process with the given flags.
func NewLibVLC(flags []string, log zerolog.Logger) (*LibVLC, error) {
	vlcInitOnce.Do(func() {
		base := []string{
			"--no-osd",
			"--no-video-title-show",
			"--image-duration=-1",
			"--quiet",
		}
		vlcInitErr = libvlc.Init(append(base, flags...)...)
	})
	if vlcInitErr != nil {
		return nil, fmt.Errorf("libvlc init failed: %w", vlcInitErr)
	}

	player, err := libvlc.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("player creation failed: %w", err)
	}

	log.Info().Msg("libVLC player initialized")
	return &LibVLC{player: player, log: log}, nil
}

// Probe always succeeds: the player lives in this process.
func (b *LibVLC) Probe(context.Context) error { return nil }

// Clear stops playback and drops the loaded media.
func (b *LibVLC) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.player.Stop(); err != nil {
		return fmt.Errorf("stop failed: %w", err)
	}
	if b.media != nil {
		b.media.Release()
		b.media = nil
	}
	return nil
}

// Add loads path and starts playing it.
func (b *LibVLC) Add(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, err := libvlc.NewMediaFromPath(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := b.player.SetMedia(m); err != nil {
		m.Release()
		return fmt.Errorf("set media %s: %w", path, err)
	}
	if b.media != nil {
		b.media.Release()
	}
	b.media = m

	if err := b.player.Play(); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}
	return nil
}

// Play resumes the loaded media.
func (b *LibVLC) Play(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.player.Play(); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}
	return nil
}

// Status reports the loaded media's length. Still images report zero.
func (b *LibVLC) Status(context.Context) (Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var st Status
	if b.player.IsPlaying() {
		st.State = "playing"
	} else {
		st.State = "stopped"
	}
	if length, err := b.player.MediaLength(); err == nil {
		st.Length = time.Duration(length) * time.Millisecond
	}
	if t, err := b.player.MediaTime(); err == nil {
		st.Time = time.Duration(t) * time.Millisecond
	}
	if pos, err := b.player.MediaPosition(); err == nil {
		st.Position = float64(pos)
	}
	return st, nil
}

// Release frees the player and libVLC.
func (b *LibVLC) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.media != nil {
		b.media.Release()
		b.media = nil
	}
	if b.player != nil {
		b.player.Stop()
		b.player.Release()
		b.player = nil
	}
	libvlc.Release()
	b.log.Info().Msg("libVLC released")
}
