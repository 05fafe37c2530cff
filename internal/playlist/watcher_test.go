package playlist

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"player-scheduler/internal/media"
)

func startWatcher(t *testing.T, dir string, debounce time.Duration, onChange OnChangeFunc) *Watcher {
	t.Helper()
	filter := media.DefaultFilter()
	w, err := NewWatcher(dir, filter.IsSupported, debounce, onChange, zerolog.Nop())
	require.NoError(t, err)

	go w.Start()
	t.Cleanup(w.Stop)

	// Give the event loop a moment to start.
	time.Sleep(50 * time.Millisecond)
	return w
}

// TestWatcherDebouncesBurst verifies a burst of changes collapses into a
// single callback.
func TestWatcherDebouncesBurst(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	startWatcher(t, dir, 300*time.Millisecond, func(string) { calls.Add(1) })

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

// TestWatcherIgnoresUnrelatedFiles ensures files with other extensions do
// not trigger a rebuild.
func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	startWatcher(t, dir, 100*time.Millisecond, func(string) { calls.Add(1) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

// TestWatcherDetectsRemoval verifies the callback fires when a file is removed.
func TestWatcherDetectsRemoval(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "existing.mp4")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	changed := make(chan string, 4)
	startWatcher(t, dir, 100*time.Millisecond, func(d string) { changed <- d })

	require.NoError(t, os.Remove(file))

	select {
	case got := <-changed:
		assert.Equal(t, dir, got)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for removal callback")
	}
}

// TestWatcherFollowsSubdirectories verifies nested directories are watched,
// including ones created after the watcher started.
func TestWatcherFollowsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "existing"), 0o755))

	var calls atomic.Int32
	startWatcher(t, dir, 100*time.Millisecond, func(string) { calls.Add(1) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing", "a.mp4"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	fresh := filepath.Join(dir, "fresh")
	require.NoError(t, os.Mkdir(fresh, 0o755))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 3*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(fresh, "b.png"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 3 }, 3*time.Second, 20*time.Millisecond)
}

// TestWatcherStopCancelsPending ensures no callback fires after Stop.
func TestWatcherStopCancelsPending(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	w := startWatcher(t, dir, 300*time.Millisecond, func(string) { calls.Add(1) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	time.Sleep(500 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcherWaitsForMissingDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "incoming", "today")

	var calls atomic.Int32
	startWatcher(t, dir, 100*time.Millisecond, func(string) { calls.Add(1) })

	require.NoError(t, os.MkdirAll(dir, 0o755))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	// Once adopted, the tree itself is watched.
	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() > before }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresSiblingsOfMissingDir(t *testing.T) {
	root := t.TempDir()

	var calls atomic.Int32
	startWatcher(t, filepath.Join(root, "missing"), 100*time.Millisecond, func(string) { calls.Add(1) })

	require.NoError(t, os.WriteFile(filepath.Join(root, "other.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "elsewhere"), 0o755))

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestNewWatcherUnderFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewWatcher(filepath.Join(file, "missing"), nil, time.Second, nil, zerolog.Nop())
	assert.Error(t, err)
}
