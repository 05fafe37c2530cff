// Package scheduler decides when playlists are rebuilt and keeps the
// player in sync with the selected one.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"player-scheduler/internal/metrics"
	"player-scheduler/internal/playlist"
	"player-scheduler/internal/source"
)

// Rebuild triggers.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
	TriggerManual   = "manual"
)

// Kind names the playlist a rebuild selected.
type Kind string

const (
	KindPrimary Kind = "primary"
	KindSpecial Kind = "special"
)

// Result is one rebuild outcome. Cycle is empty when nothing can play.
type Result struct {
	ID      uuid.UUID
	Kind    Kind
	Trigger string
	Cycle   *playlist.Cycle
	BuiltAt time.Time
}

// Empty reports whether the rebuild produced nothing to play.
func (r Result) Empty() bool { return r.Cycle.Empty() }

// Coordinator rebuilds the primary and special playlists and publishes
// the selected one to the playback loop.
type Coordinator struct {
	primary  *playlist.Playlist
	special  *playlist.Playlist
	injector *Injector
	results  chan Result
	log      zerolog.Logger

	// rebuildMu serializes rebuilds; mu guards last.
	rebuildMu sync.Mutex
	mu        sync.RWMutex
	last      *Result
}

// NewCoordinator creates a Coordinator. special may be nil.
func NewCoordinator(primary, special *playlist.Playlist, injector *Injector, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		primary:  primary,
		special:  special,
		injector: injector,
		results:  make(chan Result, 1),
		log:      log,
	}
}

// Results delivers rebuild outcomes. Only the newest undelivered result
// is kept.
func (c *Coordinator) Results() <-chan Result {
	return c.results
}

// Rebuild builds the playlists using only active sources and publishes
// the selection: a non-empty special playlist wins, otherwise the primary
// one is used and periodic injection is armed when it has items.
func (c *Coordinator) Rebuild(trigger string) Result {
	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	c.log.Info().Str("trigger", trigger).Msg("rebuilding playlists")

	// No stale injections survive a rebuild.
	c.injector.Disarm()

	res := Result{ID: uuid.New(), Trigger: trigger}

	if c.special != nil && len(c.special.Sources()) > 0 {
		if cyc := c.special.Build(true); !cyc.Empty() {
			res.Kind = KindSpecial
			res.Cycle = cyc
		}
	}

	if res.Cycle == nil {
		res.Kind = KindPrimary
		res.Cycle = c.primary.Build(true)
		if !res.Cycle.Empty() {
			c.injector.Arm(c.primary)
		}
	}
	res.BuiltAt = res.Cycle.BuiltAt()

	if res.Empty() {
		c.log.Warn().Str("trigger", trigger).Msg("rebuild produced an empty playlist")
	} else {
		c.log.Info().
			Str("id", res.ID.String()).
			Str("kind", string(res.Kind)).
			Int("items", res.Cycle.Len()).
			Msg("rebuild complete")
	}

	metrics.Rebuilds.WithLabelValues(string(res.Kind), trigger).Inc()
	metrics.PlaylistItems.WithLabelValues(string(res.Kind)).Set(float64(res.Cycle.Len()))

	c.mu.Lock()
	c.last = &res
	c.mu.Unlock()

	c.publish(res)
	return res
}

// publish hands res to the loop, replacing an undelivered older result.
func (c *Coordinator) publish(res Result) {
	for {
		select {
		case c.results <- res:
			return
		default:
		}
		select {
		case stale := <-c.results:
			c.log.Debug().Str("id", stale.ID.String()).Msg("replacing undelivered rebuild result")
		default:
		}
	}
}

// Last returns the most recent rebuild result.
func (c *Coordinator) Last() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// RebuildSchedule merges the activation boundaries of both playlists.
func (c *Coordinator) RebuildSchedule() []source.TimeOfDay {
	sources := append([]*source.Source(nil), c.primary.Sources()...)
	if c.special != nil {
		sources = append(sources, c.special.Sources()...)
	}
	return playlist.Schedule(sources)
}

// Watch starts a debounced watcher on every distinct source directory and
// rebuilds whenever one of them reports a change. It blocks until ctx is
// done. A missing directory is watched for from its nearest existing
// parent; directories that cannot be watched at all are logged and skipped.
func (c *Coordinator) Watch(ctx context.Context, match func(path string) bool, debounce time.Duration) error {
	seen := make(map[string]bool)
	var watchers []*playlist.Watcher

	all := append([]*source.Source(nil), c.primary.Sources()...)
	if c.special != nil {
		all = append(all, c.special.Sources()...)
	}
	for _, src := range all {
		if seen[src.Path] {
			continue
		}
		seen[src.Path] = true

		w, err := playlist.NewWatcher(src.Path, match, debounce, func(dir string) {
			c.log.Info().Str("dir", dir).Dur("debounce", debounce).Msg("source changed, rebuilding")
			c.Rebuild(TriggerWatch)
		}, c.log)
		if err != nil {
			c.log.Warn().Err(err).Str("dir", src.Path).Msg("cannot watch source directory")
			continue
		}
		watchers = append(watchers, w)
	}

	var wg sync.WaitGroup
	for _, w := range watchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Start(); err != nil {
				c.log.Warn().Err(err).Msg("watcher exited")
			}
		}()
	}

	<-ctx.Done()
	for _, w := range watchers {
		w.Stop()
	}
	wg.Wait()
	return nil
}
