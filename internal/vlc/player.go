// Package vlc drives a VLC media player: through its HTTP control
// interface for an external process, or in-process through libVLC.
package vlc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnreachable means the player did not answer the probe.
	ErrUnreachable = errors.New("player unreachable")

	// ErrPlayerExited means the monitored player process terminated.
	ErrPlayerExited = errors.New("player exited")
)

// StatusError is returned for a non-2xx response from the control interface.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vlc %s: unexpected status %d", e.Path, e.Code)
}

// Status is the subset of the player state the scheduler needs.
type Status struct {
	State    string
	Length   time.Duration
	Time     time.Duration
	Position float64
	Repeat   bool
}

// Player is the control channel used by the playback loop. All calls are
// synchronous; an error during steady-state operation is fatal.
type Player interface {
	// Clear empties the player's queue and stops playback.
	Clear(ctx context.Context) error
	// Add loads path into the player and starts it.
	Add(ctx context.Context, path string) error
	// Play resumes playback of the loaded item.
	Play(ctx context.Context) error
	// Status reports the current item's state and length.
	Status(ctx context.Context) (Status, error)
}

// Prober checks that the player answers.
type Prober interface {
	Probe(ctx context.Context) error
}
