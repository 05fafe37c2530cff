package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"player-scheduler/internal/metrics"
	"player-scheduler/internal/playlist"
	"player-scheduler/internal/source"
)

// Injector queues items from "play every N minutes" sources on their own
// timers. The playback loop drains the queue before taking the next
// regular item.
type Injector struct {
	mu    sync.Mutex
	queue []source.Item
	stop  chan struct{}
	wg    sync.WaitGroup
	log   zerolog.Logger
}

// NewInjector creates a disarmed Injector.
func NewInjector(log zerolog.Logger) *Injector {
	return &Injector{log: log}
}

// Arm starts one ticker per periodic source of p, replacing any previous
// arming. Each tick queues the next item of that source's chained cycle.
func (in *Injector) Arm(p *playlist.Playlist) {
	in.Disarm()

	in.mu.Lock()
	defer in.mu.Unlock()

	stop := make(chan struct{})
	in.stop = stop
	for _, src := range p.PeriodicSources() {
		cyc := p.BuildPeriodic(src)
		if cyc.Empty() {
			in.log.Warn().Str("source", src.Path).Msg("periodic source has no items")
			continue
		}
		in.log.Info().
			Str("source", src.Path).
			Dur("every", src.PlayEvery).
			Int("items", cyc.Len()).
			Msg("periodic injection armed")

		in.wg.Add(1)
		go in.run(src, cyc, stop)
	}
}

func (in *Injector) run(src *source.Source, cyc *playlist.Cycle, stop <-chan struct{}) {
	defer in.wg.Done()

	t := time.NewTicker(src.PlayEvery)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			it, err := cyc.Next()
			if err != nil {
				return
			}
			in.push(it, stop)
		}
	}
}

func (in *Injector) push(it source.Item, stop <-chan struct{}) {
	in.mu.Lock()
	defer in.mu.Unlock()

	// Disarm closes stop under mu; a tick racing with it is dropped.
	select {
	case <-stop:
		return
	default:
	}
	in.queue = append(in.queue, it)
	metrics.Injections.Inc()
	in.log.Debug().Str("path", it.Path).Int("pending", len(in.queue)).Msg("item injected")
}

// Disarm stops every ticker and discards pending items.
func (in *Injector) Disarm() {
	in.mu.Lock()
	if in.stop != nil {
		close(in.stop)
		in.stop = nil
	}
	in.queue = nil
	in.mu.Unlock()

	in.wg.Wait()
}

// Pop takes the oldest pending item.
func (in *Injector) Pop() (source.Item, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.queue) == 0 {
		return source.Item{}, false
	}
	it := in.queue[0]
	in.queue = in.queue[1:]
	return it, true
}

// Pending returns the number of queued items.
func (in *Injector) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

// Armed reports whether periodic timers are running.
func (in *Injector) Armed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stop != nil
}
