// Package playlist turns configured sources into an ordered, cyclic list
// of items and watches source directories for changes.
package playlist

import (
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"player-scheduler/internal/mixing"
	"player-scheduler/internal/source"
)

// ErrEmpty is returned by Cycle.Next when the playlist has no items.
var ErrEmpty = errors.New("playlist is empty")

// Options tune how a Playlist is built.
type Options struct {
	// Mix combines the per-source lists. Defaults to mixing.Chain.
	Mix mixing.Func[source.Item]

	// IgnorePlayingTimeIfEmpty retries an empty active-only build once
	// with every source, regardless of its window.
	IgnorePlayingTimeIfEmpty bool

	// Now is the wall clock. Defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Lister enumerates the items of one source. *source.Enumerator implements it.
type Lister interface {
	List(src *source.Source) ([]source.Item, error)
}

// Playlist owns a set of sources and builds playback cycles from them.
type Playlist struct {
	name    string
	sources []*source.Source
	enum    Lister
	opts    Options
}

// New creates a Playlist over sources in declaration order.
func New(name string, sources []*source.Source, enum Lister, opts Options) *Playlist {
	if opts.Mix == nil {
		opts.Mix = mixing.Chain[source.Item]
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Playlist{
		name:    name,
		sources: sources,
		enum:    enum,
		opts:    opts,
	}
}

// Name identifies the playlist in logs.
func (p *Playlist) Name() string { return p.name }

// Sources returns the configured sources.
func (p *Playlist) Sources() []*source.Source { return p.sources }

// PeriodicSources returns the sources injected on a timer.
func (p *Playlist) PeriodicSources() []*source.Source {
	var out []*source.Source
	for _, s := range p.sources {
		if s.IsPeriodic() {
			out = append(out, s)
		}
	}
	return out
}

// Build enumerates the sources and mixes them into a fresh Cycle. With
// onlyActive set, sources outside their window are left out.
func (p *Playlist) Build(onlyActive bool) *Cycle {
	c := p.build(onlyActive)
	if c.Empty() && onlyActive && p.opts.IgnorePlayingTimeIfEmpty {
		p.opts.Logger.Warn().
			Str("playlist", p.name).
			Msg("no active source produced items, rebuilding with every source regardless of playing time")
		c = p.build(false)
	}
	if c.Empty() {
		p.opts.Logger.Warn().Str("playlist", p.name).Msg("playlist is empty")
	}
	return c
}

func (p *Playlist) build(onlyActive bool) *Cycle {
	now := p.opts.Now()

	var lists [][]source.Item
	for _, src := range p.sources {
		if src.IsPeriodic() {
			continue
		}
		if onlyActive && !src.IsActive(now) {
			p.opts.Logger.Info().
				Str("playlist", p.name).
				Str("source", src.Path).
				Msg("skipped source: outside its playing time")
			continue
		}

		items, err := p.enum.List(src)
		if err != nil {
			p.opts.Logger.Warn().
				Err(err).
				Str("playlist", p.name).
				Str("source", src.Path).
				Msg("source directory unreadable, treating as empty")
			continue
		}
		p.opts.Logger.Info().
			Str("playlist", p.name).
			Str("source", src.Path).
			Int("files", len(items)).
			Msg("added source")
		lists = append(lists, items)
	}

	items := expandRepeats(p.opts.Mix(lists...))

	p.opts.Logger.Info().
		Str("playlist", p.name).
		Bool("only_active", onlyActive).
		Int("items", len(items)).
		Msg("playlist built")

	return NewCycle(items, now)
}

// BuildPeriodic chains the contents of one periodic source into a Cycle.
func (p *Playlist) BuildPeriodic(src *source.Source) *Cycle {
	items, err := p.enum.List(src)
	if err != nil {
		p.opts.Logger.Warn().
			Err(err).
			Str("playlist", p.name).
			Str("source", src.Path).
			Msg("periodic source directory unreadable")
	}
	return NewCycle(expandRepeats(mixing.Chain(items)), p.opts.Now())
}

func expandRepeats(items []source.Item) []source.Item {
	out := make([]source.Item, 0, len(items))
	for _, it := range items {
		for range it.Source.Repeats() {
			out = append(out, it)
		}
	}
	return out
}

// RebuildSchedule returns the sorted, distinct times of day at which a
// source's eligibility can change. Midnight is always included.
func (p *Playlist) RebuildSchedule() []source.TimeOfDay {
	return Schedule(p.sources)
}

// Schedule is RebuildSchedule over an arbitrary set of sources.
func Schedule(sources []*source.Source) []source.TimeOfDay {
	times := []source.TimeOfDay{source.Midnight}
	for _, s := range sources {
		if s.Window == nil {
			continue
		}
		times = append(times, s.Window.Start, s.Window.End)
	}
	slices.Sort(times)
	return slices.Compact(times)
}

// Cycle is an infinite traversal of a fixed item list. It is not safe for
// concurrent use; the playback loop is its only reader.
type Cycle struct {
	items   []source.Item
	pos     int
	builtAt time.Time
}

// NewCycle wraps items, starting at the first one.
func NewCycle(items []source.Item, builtAt time.Time) *Cycle {
	return &Cycle{items: items, builtAt: builtAt}
}

// Next returns the next item in cycle order and advances. It returns
// ErrEmpty if there is nothing to play.
func (c *Cycle) Next() (source.Item, error) {
	if c == nil || len(c.items) == 0 {
		return source.Item{}, ErrEmpty
	}
	it := c.items[c.pos]
	c.pos = (c.pos + 1) % len(c.items)
	return it, nil
}

// Len returns the number of items in one pass.
func (c *Cycle) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Empty reports whether there is nothing to play.
func (c *Cycle) Empty() bool { return c.Len() == 0 }

// BuiltAt is the time the cycle was built.
func (c *Cycle) BuiltAt() time.Time { return c.builtAt }

// Items returns a copy of one pass of the cycle.
func (c *Cycle) Items() []source.Item {
	if c == nil {
		return nil
	}
	return slices.Clone(c.items)
}
