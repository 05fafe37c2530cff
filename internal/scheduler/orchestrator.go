package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Ensurer makes the player reachable before playback starts.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

// exitNotifier is implemented by ensurers that start and monitor the
// player process.
type exitNotifier interface {
	Exited() <-chan error
}

// WatchOptions configure source directory watching.
type WatchOptions struct {
	Match    func(path string) bool
	Debounce time.Duration
}

// Task is an extra long-running job supervised with the scheduler.
type Task func(ctx context.Context) error

// PlaylistStatus summarizes the selected playlist.
type PlaylistStatus struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Trigger string    `json:"trigger"`
	Items   int       `json:"items"`
	BuiltAt time.Time `json:"built_at"`
}

// Status is the orchestrator state reported to the control API.
type Status struct {
	Loop              Snapshot        `json:"loop"`
	Playlist          *PlaylistStatus `json:"playlist,omitempty"`
	NextRebuild       time.Time       `json:"next_rebuild"`
	PendingInjections int             `json:"pending_injections"`
}

// Orchestrator owns the coordinator, the rebuild clock, the injector and
// the playback loop, and runs them as one unit.
type Orchestrator struct {
	ensurer  Ensurer
	coord    *Coordinator
	clock    *Clock
	injector *Injector
	loop     *Loop
	watch    WatchOptions
	tasks    []Task
	log      zerolog.Logger
}

// NewOrchestrator wires the parts together. ensurer may be nil when the
// player needs no launch step.
func NewOrchestrator(ensurer Ensurer, coord *Coordinator, clock *Clock, injector *Injector, loop *Loop, watch WatchOptions, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ensurer:  ensurer,
		coord:    coord,
		clock:    clock,
		injector: injector,
		loop:     loop,
		watch:    watch,
		log:      log,
	}
}

// AddTask supervises fn alongside the scheduler. It must be called
// before Run.
func (o *Orchestrator) AddTask(fn Task) {
	o.tasks = append(o.tasks, fn)
}

// Run makes sure the player answers, publishes the startup rebuild and
// runs every component until ctx is done or one of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.ensurer != nil {
		if err := o.ensurer.Ensure(ctx); err != nil {
			return fmt.Errorf("player: %w", err)
		}
		if n, ok := o.ensurer.(exitNotifier); ok && n.Exited() != nil {
			o.loop.opts.Exited = n.Exited()
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.loop.Run(gctx)
	})
	g.Go(func() error {
		return o.clock.Run(gctx, func() {
			o.coord.Rebuild(TriggerSchedule)
		})
	})
	g.Go(func() error {
		return o.coord.Watch(gctx, o.watch.Match, o.watch.Debounce)
	})
	for _, t := range o.tasks {
		g.Go(func() error {
			return t(gctx)
		})
	}

	o.coord.Rebuild(TriggerStartup)

	err := g.Wait()
	o.injector.Disarm()
	if err != nil {
		o.log.Error().Err(err).Msg("scheduler stopped")
		return err
	}
	o.log.Info().Msg("scheduler stopped")
	return nil
}

// Rebuild triggers a manual rebuild.
func (o *Orchestrator) Rebuild(trigger string) Result {
	return o.coord.Rebuild(trigger)
}

// Status reports the loop, the selected playlist and the next rebuild.
func (o *Orchestrator) Status() Status {
	st := Status{
		Loop:              o.loop.Snapshot(),
		NextRebuild:       o.clock.Next(),
		PendingInjections: o.injector.Pending(),
	}
	if res, ok := o.coord.Last(); ok {
		st.Playlist = &PlaylistStatus{
			ID:      res.ID.String(),
			Kind:    res.Kind,
			Trigger: res.Trigger,
			Items:   res.Cycle.Len(),
			BuiltAt: res.BuiltAt,
		}
	}
	return st
}
