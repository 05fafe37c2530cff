package vlc

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber fails until succeedAfter probes have been made.
type scriptedProber struct {
	calls        atomic.Int32
	succeedAfter int32
}

func (p *scriptedProber) Probe(context.Context) error {
	n := p.calls.Add(1)
	if p.succeedAfter >= 0 && n > p.succeedAfter {
		return nil
	}
	return ErrUnreachable
}

func TestEnsureReusesRunningInstance(t *testing.T) {
	prober := &scriptedProber{succeedAfter: 0}
	l := NewLauncher(LaunchSettings{Launch: true, Path: "/does/not/exist"}, prober, zerolog.Nop())

	require.NoError(t, l.Ensure(context.Background()))
	assert.Equal(t, int32(1), prober.calls.Load())
	assert.False(t, l.Launched())
	assert.Nil(t, l.Exited())
}

func TestEnsureLaunchDisabled(t *testing.T) {
	l := NewLauncher(LaunchSettings{Launch: false}, &scriptedProber{succeedAfter: -1}, zerolog.Nop())
	assert.ErrorIs(t, l.Ensure(context.Background()), ErrUnreachable)
}

func TestEnsureStartFailure(t *testing.T) {
	l := NewLauncher(LaunchSettings{Launch: true, Path: "/does/not/exist/vlc"}, &scriptedProber{succeedAfter: -1}, zerolog.Nop())
	assert.Error(t, l.Ensure(context.Background()))
}

func shell(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}
	return "/bin/sh"
}

func TestEnsureRetriesThenSucceeds(t *testing.T) {
	// First probe (before launch) and two retries fail, the third retry answers.
	prober := &scriptedProber{succeedAfter: 3}
	l := NewLauncher(LaunchSettings{Launch: true, Path: shell(t)}, prober, zerolog.Nop())
	l.SetRetryPolicy(0, 3, 10*time.Millisecond)

	require.NoError(t, l.Ensure(context.Background()))
	assert.Equal(t, int32(4), prober.calls.Load())
	assert.True(t, l.Launched())
}

func TestEnsureGivesUpAfterRetries(t *testing.T) {
	prober := &scriptedProber{succeedAfter: -1}
	l := NewLauncher(LaunchSettings{Launch: true, Path: shell(t)}, prober, zerolog.Nop())
	l.SetRetryPolicy(0, 3, 10*time.Millisecond)

	err := l.Ensure(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	// One probe before launching plus the initial attempt and three retries.
	assert.Equal(t, int32(5), prober.calls.Load())
}

func TestExitedReportsProcessEnd(t *testing.T) {
	// sh rejects VLC's flags and exits straight away.
	l := NewLauncher(LaunchSettings{Launch: true, Path: shell(t)}, &scriptedProber{succeedAfter: 1}, zerolog.Nop())
	l.SetRetryPolicy(0, 0, 0)
	require.NoError(t, l.Ensure(context.Background()))

	select {
	case err := <-l.Exited():
		assert.True(t, errors.Is(err, ErrPlayerExited))
	case <-time.After(5 * time.Second):
		t.Fatal("exit was not reported")
	}
}

func TestArgs(t *testing.T) {
	l := NewLauncher(LaunchSettings{
		Host:     "127.0.0.1",
		Port:     8080,
		Password: "pw",
		Options:  []string{"--fullscreen"},
		Debug:    true,
	}, nil, zerolog.Nop())

	assert.Equal(t, []string{
		"--extraintf", "http",
		"--http-host", "127.0.0.1",
		"--http-port", "8080",
		"--http-password", "pw",
		"--repeat",
		"--image-duration", "-1",
		"--fullscreen",
		"--verbose", "2",
	}, l.Args())
}
