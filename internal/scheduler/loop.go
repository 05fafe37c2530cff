package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"player-scheduler/internal/media"
	"player-scheduler/internal/metrics"
	"player-scheduler/internal/playlist"
	"player-scheduler/internal/race"
	"player-scheduler/internal/source"
	"player-scheduler/internal/vlc"
)

// State is the playback loop state.
type State string

const (
	StateWaiting State = "waiting_for_playlist"
	StatePlaying State = "playing"
)

// LoopOptions configure the playback loop.
type LoopOptions struct {
	Filter *media.Filter

	// ImageDuration is used for still images, and for other items when
	// neither the source nor the player gives a positive length.
	ImageDuration time.Duration

	// SettleDelay is waited before asking the player for the length of a
	// freshly loaded item.
	SettleDelay time.Duration

	// FileErrorThreshold is how many consecutive missing files are
	// tolerated before the playlist is treated as empty.
	FileErrorThreshold int

	// Exited reports the end of the player process. nil when not
	// monitored.
	Exited <-chan error
}

// Snapshot describes what the loop is doing.
type Snapshot struct {
	State    State     `json:"state"`
	Current  string    `json:"current,omitempty"`
	Playlist string    `json:"playlist_id,omitempty"`
	Kind     Kind      `json:"kind,omitempty"`
	Since    time.Time `json:"since"`
}

// Loop plays items one at a time and swaps playlists when the
// coordinator publishes a new one.
type Loop struct {
	player   vlc.Player
	results  <-chan Result
	injector *Injector
	opts     LoopOptions
	log      zerolog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// NewLoop creates a playback loop fed by results.
func NewLoop(player vlc.Player, results <-chan Result, injector *Injector, opts LoopOptions, log zerolog.Logger) *Loop {
	if opts.Filter == nil {
		opts.Filter = media.DefaultFilter()
	}
	return &Loop{
		player:   player,
		results:  results,
		injector: injector,
		opts:     opts,
		log:      log,
		snap:     Snapshot{State: StateWaiting, Since: time.Now()},
	}
}

// Snapshot returns the current loop state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

func (l *Loop) setState(state State, res *Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = Snapshot{State: state, Since: time.Now()}
	if res != nil {
		l.snap.Playlist = res.ID.String()
		l.snap.Kind = res.Kind
	}
}

func (l *Loop) setCurrent(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap.Current = path
}

// Run drives the player until ctx is done or the player fails. It
// returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	err := l.run(ctx)
	if ctx.Err() != nil {
		l.log.Info().Msg("playback loop stopped")
		return nil
	}
	return err
}

func (l *Loop) run(ctx context.Context) error {
	for {
		l.setState(StateWaiting, nil)
		l.log.Info().Msg("waiting for playlist")

		res, err := l.waitForPlaylist(ctx)
		if err != nil {
			return err
		}

		for res != nil {
			if res, err = l.play(ctx, *res); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) waitForPlaylist(ctx context.Context) (*Result, error) {
	var slot race.Slot[Result]
	waiters := []race.Waiter{race.Receive(l.results, &slot)}
	if l.opts.Exited != nil {
		waiters = append(waiters, race.Done(l.opts.Exited))
	}

	idx, err := race.First(ctx, waiters...)
	if idx == 1 {
		return nil, exitError(err)
	}
	if err != nil {
		return nil, err
	}
	res, _ := slot.Get()
	return &res, nil
}

// play runs the PLAYING state with res. It returns the result that
// preempted it, or nil when the loop must go back to waiting.
func (l *Loop) play(ctx context.Context, res Result) (*Result, error) {
	l.setState(StatePlaying, &res)
	l.log.Info().
		Str("id", res.ID.String()).
		Str("kind", string(res.Kind)).
		Int("items", res.Cycle.Len()).
		Msg("playing playlist")

	if err := l.player.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear player: %w", err)
	}
	loaded := ""
	l.setCurrent("")
	fileErrors := 0

	for {
		// A result published between items is consumed before the next one.
		select {
		case next := <-l.results:
			l.log.Info().Str("id", next.ID.String()).Msg("new playlist available")
			return &next, nil
		default:
		}

		it, injected, err := l.next(res.Cycle)
		if errors.Is(err, playlist.ErrEmpty) {
			l.log.Warn().Msg("playlist is empty")
			return nil, l.clear(ctx)
		}

		if _, err := os.Stat(it.Path); err != nil {
			fileErrors++
			metrics.FileErrors.Inc()
			l.log.Warn().
				Err(err).
				Str("path", it.Path).
				Int("consecutive", fileErrors).
				Msg("skipping missing file")
			if fileErrors > l.opts.FileErrorThreshold {
				l.log.Warn().Msg("too many missing files, waiting for a rebuild")
				return nil, l.clear(ctx)
			}
			continue
		}
		fileErrors = 0

		if it.Path != loaded {
			if l.opts.Filter.IsPlaylist(it.Path) {
				if err := l.player.Clear(ctx); err != nil {
					return nil, fmt.Errorf("clear player: %w", err)
				}
			}
			if err := l.player.Add(ctx, it.Path); err != nil {
				return nil, fmt.Errorf("add %s: %w", it.Path, err)
			}
			if err := l.player.Play(ctx); err != nil {
				return nil, fmt.Errorf("play: %w", err)
			}
			loaded = it.Path
			l.setCurrent(it.Path)
			metrics.ItemsPlayed.Inc()
		}

		d, next, err := l.duration(ctx, it)
		if err != nil {
			return nil, err
		}
		if next == nil {
			l.log.Info().
				Str("path", it.Path).
				Bool("injected", injected).
				Dur("duration", d).
				Msg("playing")

			if next, err = l.wait(ctx, d); err != nil {
				return nil, err
			}
		}
		if next != nil {
			metrics.Preemptions.Inc()
			l.log.Info().Str("id", next.ID.String()).Msg("wait preempted by a new playlist")
			return next, nil
		}
	}
}

// next prefers a pending periodic item over the regular cycle.
func (l *Loop) next(cyc *playlist.Cycle) (source.Item, bool, error) {
	if l.injector != nil {
		if it, ok := l.injector.Pop(); ok {
			return it, true, nil
		}
	}
	it, err := cyc.Next()
	return it, false, err
}

func (l *Loop) clear(ctx context.Context) error {
	l.setCurrent("")
	if err := l.player.Clear(ctx); err != nil {
		return fmt.Errorf("clear player: %w", err)
	}
	return nil
}

// duration is the source's item duration, the image duration for stills,
// else the length reported by the player after the settle delay. A result
// published during the settle delay is returned instead.
func (l *Loop) duration(ctx context.Context, it source.Item) (time.Duration, *Result, error) {
	if it.Source != nil && it.Source.ItemPlayDuration > 0 {
		return it.Source.ItemPlayDuration, nil, nil
	}
	if l.opts.Filter.IsImage(it.Path) {
		return l.opts.ImageDuration, nil, nil
	}

	if l.opts.SettleDelay > 0 {
		next, err := l.wait(ctx, l.opts.SettleDelay)
		if err != nil || next != nil {
			return 0, next, err
		}
	}
	st, err := l.player.Status(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("player status: %w", err)
	}
	if st.Length > 0 {
		return st.Length, nil, nil
	}
	return l.opts.ImageDuration, nil, nil
}

// wait suspends for d, or until a new result or a player exit arrives.
func (l *Loop) wait(ctx context.Context, d time.Duration) (*Result, error) {
	var slot race.Slot[Result]
	waiters := []race.Waiter{race.Sleep(d), race.Receive(l.results, &slot)}
	if l.opts.Exited != nil {
		waiters = append(waiters, race.Done(l.opts.Exited))
	}

	idx, err := race.First(ctx, waiters...)
	if idx == 2 {
		return nil, exitError(err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// A result taken by the losing receiver still counts.
	if res, ok := slot.Get(); ok {
		return &res, nil
	}
	return nil, err
}

func exitError(err error) error {
	if err == nil || errors.Is(err, race.ErrClosed) {
		return vlc.ErrPlayerExited
	}
	return err
}
