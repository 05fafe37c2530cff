//go:build !libvlc

package vlc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LibVLC is unavailable in builds without the libvlc tag.
type LibVLC struct{}

// NewLibVLC reports that in-process playback was not compiled in.
func NewLibVLC([]string, zerolog.Logger) (*LibVLC, error) {
	return nil, errors.New("built without libvlc support: rebuild with -tags libvlc or use the http backend")
}

func (*LibVLC) Probe(context.Context) error { return ErrUnreachable }
func (*LibVLC) Clear(context.Context) error { return ErrUnreachable }
func (*LibVLC) Add(context.Context, string) error { return ErrUnreachable }
func (*LibVLC) Play(context.Context) error { return ErrUnreachable }
func (*LibVLC) Status(context.Context) (Status, error) { return Status{}, ErrUnreachable }
func (*LibVLC) Release() {}
