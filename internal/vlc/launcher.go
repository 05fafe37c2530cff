package vlc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LaunchSettings describe how to start VLC with its HTTP interface.
type LaunchSettings struct {
	// Launch allows starting a new process when none answers.
	Launch    bool
	Path      string
	Host      string
	Port      int
	Password  string
	ExtraIntf string
	Options   []string
	Debug     bool
}

// Launcher makes sure a VLC instance is reachable and watches the process
// it started.
type Launcher struct {
	settings LaunchSettings
	prober   Prober
	log      zerolog.Logger

	startDelay time.Duration
	retries    int
	retryDelay time.Duration

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan error
}

// NewLauncher creates a Launcher that probes through prober.
func NewLauncher(settings LaunchSettings, prober Prober, log zerolog.Logger) *Launcher {
	return &Launcher{
		settings:   settings,
		prober:     prober,
		log:        log,
		startDelay: time.Second,
		retries:    3,
		retryDelay: 3 * time.Second,
	}
}

// SetRetryPolicy overrides the post-launch wait and probe retries.
func (l *Launcher) SetRetryPolicy(startDelay time.Duration, retries int, retryDelay time.Duration) {
	l.startDelay = startDelay
	l.retries = retries
	l.retryDelay = retryDelay
}

// Ensure returns once the player answers. An already running instance is
// reused; otherwise VLC is started and probed again with retries.
func (l *Launcher) Ensure(ctx context.Context) error {
	if err := l.prober.Probe(ctx); err == nil {
		l.log.Warn().Msg("found existing VLC instance")
		return nil
	}

	if !l.settings.Launch {
		return fmt.Errorf("%w and launching is disabled", ErrUnreachable)
	}

	path := l.settings.Path
	if path == "" {
		var err error
		if path, err = FindVLC(); err != nil {
			return err
		}
	}

	if err := l.start(path); err != nil {
		return err
	}

	if err := sleep(ctx, l.startDelay); err != nil {
		return err
	}
	return l.probeWithRetries(ctx)
}

func (l *Launcher) probeWithRetries(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= l.retries; attempt++ {
		if err = l.prober.Probe(ctx); err == nil {
			return nil
		}
		if attempt == l.retries {
			break
		}
		l.log.Warn().
			Err(err).
			Dur("retry_in", l.retryDelay).
			Msg("connection attempt failed")
		if serr := sleep(ctx, l.retryDelay); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("failed to connect to the VLC web interface: %w", err)
}

func (l *Launcher) start(path string) error {
	args := l.Args()

	l.log.Info().
		Str("path", path).
		Str("host", l.settings.Host).
		Int("port", l.settings.Port).
		Msg("launching VLC with HTTP interface")

	cmd := exec.Command(path, args...)
	if l.settings.Debug {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("vlc start failed: %w", err)
	}

	exited := make(chan error, 1)
	l.mu.Lock()
	l.cmd = cmd
	l.exited = exited
	l.mu.Unlock()

	go func() {
		err := cmd.Wait()
		if err != nil {
			exited <- fmt.Errorf("%w: %v", ErrPlayerExited, err)
		} else {
			exited <- ErrPlayerExited
		}
		close(exited)
	}()
	return nil
}

// Args builds the command line for the HTTP-controlled instance.
func (l *Launcher) Args() []string {
	s := l.settings
	intf := s.ExtraIntf
	if intf == "" {
		intf = "http"
	}
	args := []string{
		"--extraintf", intf,
		"--http-host", s.Host,
		"--http-port", strconv.Itoa(s.Port),
		"--http-password", s.Password,
		"--repeat",
		"--image-duration", "-1",
	}
	args = append(args, s.Options...)
	if s.Debug {
		args = append(args, "--verbose", "2")
	}
	return args
}

// Exited delivers ErrPlayerExited once the launched process ends. It is
// nil, and so never ready, when Ensure reused an existing instance.
func (l *Launcher) Exited() <-chan error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exited
}

// Launched reports whether this Launcher started the running process.
func (l *Launcher) Launched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil
}

// Stop kills the launched process, if any.
func (l *Launcher) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil && l.cmd.Process != nil {
		l.cmd.Process.Kill()
		l.cmd = nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FindVLC locates the VLC executable on the system.
func FindVLC() (string, error) {
	if path, err := exec.LookPath("vlc"); err == nil {
		return path, nil
	}

	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			`C:\Program Files\VideoLAN\VLC\vlc.exe`,
			`C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`,
		}
	case "darwin":
		candidates = []string{
			"/Applications/VLC.app/Contents/MacOS/VLC",
		}
	default:
		candidates = []string{
			"/usr/bin/vlc",
			"/usr/bin/cvlc",
			"/snap/bin/vlc",
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", errors.New("VLC not found: install it or set player.path")
}
