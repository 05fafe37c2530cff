package playlist

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"player-scheduler/internal/mixing"
	"player-scheduler/internal/source"
)

// fakeLister serves canned file names per source path and counts calls.
type fakeLister struct {
	files map[string][]string
	calls map[string]int
}

func newFakeLister(files map[string][]string) *fakeLister {
	return &fakeLister{files: files, calls: map[string]int{}}
}

func (f *fakeLister) List(src *source.Source) ([]source.Item, error) {
	f.calls[src.Path]++
	names, ok := f.files[src.Path]
	if !ok {
		return nil, errors.New("no such directory")
	}
	items := make([]source.Item, len(names))
	for i, n := range names {
		items[i] = source.Item{Path: filepath.Join(src.Path, n), Source: src}
	}
	return items, nil
}

func window(t *testing.T, s string) *source.Window {
	t.Helper()
	w, err := source.ParseWindow(s)
	require.NoError(t, err)
	return &w
}

func clockAt(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, time.March, 10, hour, minute, 0, 0, time.Local)
	}
}

func names(c *Cycle) []string {
	var out []string
	for _, it := range c.Items() {
		out = append(out, filepath.Base(it.Path))
	}
	return out
}

func TestBuildZipEqually(t *testing.T) {
	lister := newFakeLister(map[string][]string{
		"/a": {"A1"},
		"/b": {"B1", "B2", "B3"},
		"/c": {"C1", "C2"},
	})
	sources := []*source.Source{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}}

	p := New("main", sources, lister, Options{Mix: mixing.ZipEqually[source.Item], Logger: zerolog.Nop()})
	c := p.Build(true)

	assert.Equal(t, []string{"A1", "B1", "C1", "A1", "B2", "C2", "A1", "B3", "C1"}, names(c))
}

func TestBuildChainIsDefault(t *testing.T) {
	lister := newFakeLister(map[string][]string{
		"/a": {"A1"},
		"/b": {"B1", "B2", "B3"},
		"/c": {"C1", "C2"},
	})
	sources := []*source.Source{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}}

	c := New("main", sources, lister, Options{}).Build(true)
	assert.Equal(t, []string{"A1", "B1", "B2", "B3", "C1", "C2"}, names(c))
}

func TestBuildSkipsInactiveAndPeriodicSources(t *testing.T) {
	lister := newFakeLister(map[string][]string{
		"/day":   {"D1"},
		"/night": {"N1"},
		"/ads":   {"AD1"},
	})
	sources := []*source.Source{
		{Path: "/day", Window: window(t, "08:00-20:00")},
		{Path: "/night", Window: window(t, "22:00-06:00")},
		{Path: "/ads", PlayEvery: 10 * time.Minute},
	}

	p := New("main", sources, lister, Options{Now: clockAt(23, 30)})
	assert.Equal(t, []string{"N1"}, names(p.Build(true)))
	assert.Equal(t, []string{"D1", "N1"}, names(p.Build(false)))
	assert.Zero(t, lister.calls["/ads"])
}

func TestBuildRetriesOnceIgnoringPlayingTime(t *testing.T) {
	lister := newFakeLister(map[string][]string{
		"/day":   {"D1", "D2"},
		"/empty": {},
	})
	sources := []*source.Source{
		{Path: "/day", Window: window(t, "08:00-20:00")},
		{Path: "/empty"},
	}

	p := New("main", sources, lister, Options{Now: clockAt(23, 0), IgnorePlayingTimeIfEmpty: true})
	c := p.Build(true)

	assert.Equal(t, []string{"D1", "D2"}, names(c))
	assert.Equal(t, 1, lister.calls["/day"])
	assert.Equal(t, 2, lister.calls["/empty"])
}

func TestBuildRetryDoesNotRecurse(t *testing.T) {
	lister := newFakeLister(map[string][]string{
		"/day":   {},
		"/empty": {},
	})
	sources := []*source.Source{
		{Path: "/day", Window: window(t, "08:00-20:00")},
		{Path: "/empty"},
	}

	p := New("main", sources, lister, Options{Now: clockAt(23, 0), IgnorePlayingTimeIfEmpty: true})
	c := p.Build(true)

	assert.True(t, c.Empty())
	// One active-only pass plus exactly one retry over every source.
	assert.Equal(t, 1, lister.calls["/day"])
	assert.Equal(t, 2, lister.calls["/empty"])
}

func TestBuildNoRetryWhenDisabled(t *testing.T) {
	lister := newFakeLister(map[string][]string{"/day": {"D1"}})
	sources := []*source.Source{{Path: "/day", Window: window(t, "08:00-20:00")}}

	c := New("main", sources, lister, Options{Now: clockAt(23, 0)}).Build(true)

	assert.True(t, c.Empty())
	assert.Zero(t, lister.calls["/day"])
}

func TestBuildMissingDirectoryIsNotFatal(t *testing.T) {
	lister := newFakeLister(map[string][]string{"/ok": {"X"}})
	sources := []*source.Source{{Path: "/missing"}, {Path: "/ok"}}

	c := New("main", sources, lister, Options{}).Build(true)
	assert.Equal(t, []string{"X"}, names(c))
}

func TestBuildRepeatsEachFile(t *testing.T) {
	lister := newFakeLister(map[string][]string{"/a": {"A1", "A2"}, "/b": {"B1"}})
	sources := []*source.Source{{Path: "/a", Repeat: 2}, {Path: "/b"}}

	c := New("main", sources, lister, Options{}).Build(true)
	assert.Equal(t, []string{"A1", "A1", "A2", "A2", "B1"}, names(c))
}

func TestBuildPeriodic(t *testing.T) {
	lister := newFakeLister(map[string][]string{"/ads": {"AD1", "AD2"}})
	ads := &source.Source{Path: "/ads", PlayEvery: 5 * time.Minute}

	p := New("main", []*source.Source{{Path: "/x"}, ads}, lister, Options{})
	require.Equal(t, []*source.Source{ads}, p.PeriodicSources())
	assert.Equal(t, []string{"AD1", "AD2"}, names(p.BuildPeriodic(ads)))
}

func TestRebuildSchedule(t *testing.T) {
	sources := []*source.Source{
		{Path: "/a", Window: window(t, "22:00-06:00")},
		{Path: "/b", Window: window(t, "06:00-12:30")},
		{Path: "/c"},
		{Path: "/d", Window: window(t, "00:00-08:00")},
	}
	p := New("main", sources, newFakeLister(nil), Options{})

	assert.Equal(t, []source.TimeOfDay{
		source.Midnight,
		source.NewTimeOfDay(6, 0),
		source.NewTimeOfDay(8, 0),
		source.NewTimeOfDay(12, 30),
		source.NewTimeOfDay(22, 0),
	}, p.RebuildSchedule())
}

func TestRebuildScheduleWithoutWindows(t *testing.T) {
	p := New("main", []*source.Source{{Path: "/a"}}, newFakeLister(nil), Options{})
	assert.Equal(t, []source.TimeOfDay{source.Midnight}, p.RebuildSchedule())
}

func TestCycleWrapsExactly(t *testing.T) {
	src := &source.Source{Path: "/a"}
	items := []source.Item{{Path: "/a/1", Source: src}, {Path: "/a/2", Source: src}, {Path: "/a/3", Source: src}}
	c := NewCycle(items, time.Now())

	var got []string
	for range 7 {
		it, err := c.Next()
		require.NoError(t, err)
		got = append(got, it.Path)
	}
	assert.Equal(t, []string{"/a/1", "/a/2", "/a/3", "/a/1", "/a/2", "/a/3", "/a/1"}, got)
}

func TestCycleEmpty(t *testing.T) {
	c := NewCycle(nil, time.Now())
	_, err := c.Next()
	assert.ErrorIs(t, err, ErrEmpty)
	assert.True(t, c.Empty())

	var nilCycle *Cycle
	_, err = nilCycle.Next()
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Zero(t, nilCycle.Len())
}
