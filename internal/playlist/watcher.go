package playlist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a source tree must stay quiet before a
// change is reported.
const DefaultDebounce = 30 * time.Second

// OnChangeFunc is invoked once per burst of changes under the watched root.
type OnChangeFunc func(dir string)

// Watcher monitors a directory tree and reports debounced changes to
// files accepted by its match predicate.
type Watcher struct {
	mu       sync.Mutex
	dir      string
	match    func(path string) bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
	onChange OnChangeFunc
	timer    *time.Timer
	stopped  bool
	stopCh   chan struct{}
	log      zerolog.Logger

	// pending is the ancestor watched while dir does not exist yet.
	pending string
}

// NewWatcher creates a Watcher for dir and every directory below it. A
// missing dir is waited for from its nearest existing ancestor.
func NewWatcher(dir string, match func(path string) bool, debounce time.Duration, onChange OnChangeFunc, log zerolog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		match:    match,
		debounce: debounce,
		watcher:  fw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		log:      log.With().Str("dir", dir).Logger(),
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		parent, err := existingAncestor(dir)
		if err == nil {
			err = fw.Add(parent)
		}
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.pending = parent
		w.log.Warn().Str("parent", parent).Msg("source directory missing, waiting for it")
		return w, nil
	}

	if err := w.addTree(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// existingAncestor returns the deepest existing directory above dir.
func existingAncestor(dir string) (string, error) {
	p := filepath.Clean(dir)
	for {
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor of %s", dir)
		}
		p = parent
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return "", fmt.Errorf("%s is not a directory", p)
		}
		return p, nil
	}
}

// adopt follows the creation of dir down from the pending ancestor and
// switches to watching its tree once it exists. It reports whether dir
// appeared.
func (w *Watcher) adopt() bool {
	for {
		if info, err := os.Stat(w.dir); err == nil && info.IsDir() {
			_ = w.watcher.Remove(w.pending)
			w.pending = ""
			if err := w.addTree(w.dir); err != nil {
				w.log.Warn().Err(err).Msg("cannot watch source directory")
				return false
			}
			w.log.Info().Msg("source directory appeared")
			return true
		}

		next, err := existingAncestor(w.dir)
		if err != nil || next == w.pending {
			return false
		}
		if err := w.watcher.Add(next); err != nil {
			w.log.Warn().Err(err).Str("path", next).Msg("cannot watch directory")
			return false
		}
		_ = w.watcher.Remove(w.pending)
		w.pending = next
	}
}

// addTree registers root and its subdirectories. Unreadable
// subdirectories are skipped; an unreadable root is an error.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("cannot watch directory")
		}
		return nil
	})
}

// Start processes file system events. It blocks until Stop is called or
// the underlying watcher is closed.
func (w *Watcher) Start() error {
	w.log.Info().Dur("debounce", w.debounce).Msg("watching source directory")

	for {
		select {
		case <-w.stopCh:
			w.log.Debug().Msg("watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.isRelevant(event) {
				w.log.Debug().Str("op", event.Op.String()).Str("path", event.Name).Msg("change detected")
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// isRelevant filters events that can change a playlist. New directories
// are added to the watch set and count as a change, since files may have
// been moved in with them.
func (w *Watcher) isRelevant(e fsnotify.Event) bool {
	if w.pending != "" {
		return e.Op&fsnotify.Create != 0 && w.adopt()
	}
	if e.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
			_ = w.addTree(e.Name)
			return true
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.match == nil || w.match(e.Name)
}

// schedule (re)arms the debounce timer. A pending timer is cancelled and
// replaced so a burst collapses into one callback.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.mu.Unlock()

	w.log.Info().Msg("source changed")
	if w.onChange != nil {
		w.onChange(w.dir)
	}
}

// Stop halts the watcher, cancels any pending callback and releases the
// fsnotify resources. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
}
