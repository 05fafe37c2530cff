package source

import (
	"fmt"
	"io/fs"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"player-scheduler/internal/media"
)

// DefaultDatePattern matches file names starting with DD-MM-YYYY.
const DefaultDatePattern = `^(\d\d)-(\d\d)-(\d\d\d\d).*`

// Enumerator lists the eligible files of a Source.
type Enumerator struct {
	filter      *media.Filter
	datePattern *regexp.Regexp
	rng         *rand.Rand
	now         func() time.Time
	log         zerolog.Logger
}

// EnumeratorOption customises an Enumerator.
type EnumeratorOption func(*Enumerator)

// WithRand makes shuffling deterministic.
func WithRand(r *rand.Rand) EnumeratorOption {
	return func(e *Enumerator) { e.rng = r }
}

// WithClock overrides the clock used by the date filter.
func WithClock(now func() time.Time) EnumeratorOption {
	return func(e *Enumerator) { e.now = now }
}

// WithLogger sets the logger used for skipped-file notices.
func WithLogger(l zerolog.Logger) EnumeratorOption {
	return func(e *Enumerator) { e.log = l }
}

// NewEnumerator creates an Enumerator. A nil datePattern disables the
// filename date filter.
func NewEnumerator(filter *media.Filter, datePattern *regexp.Regexp, opts ...EnumeratorOption) *Enumerator {
	e := &Enumerator{
		filter:      filter,
		datePattern: datePattern,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Seq yields the items of src in playback order. The directory is read
// when iteration starts; the date filter is applied lazily per file.
// An unreadable directory yields nothing.
func (e *Enumerator) Seq(src *Source) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		paths, err := e.scan(src)
		if err != nil {
			return
		}
		for it := range e.dated(src, paths) {
			if !yield(it) {
				return
			}
		}
	}
}

// List materialises the items of src. The error is non-nil when the
// directory could not be read; the caller decides how loud to be about it.
func (e *Enumerator) List(src *Source) ([]Item, error) {
	paths, err := e.scan(src)
	if err != nil {
		return nil, err
	}
	return slices.Collect(e.dated(src, paths)), nil
}

func (e *Enumerator) dated(src *Source, paths []string) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for _, p := range paths {
			if !e.datedToday(p) {
				continue
			}
			if !yield(Item{Path: p, Source: src}) {
				return
			}
		}
	}
}

func (e *Enumerator) scan(src *Source) ([]string, error) {
	var paths []string

	if src.Recursive {
		err := filepath.WalkDir(src.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == src.Path {
					return err
				}
				return nil
			}
			if !d.IsDir() && e.filter.IsSupported(d.Name()) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", src.Path, err)
		}
	} else {
		entries, err := os.ReadDir(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.Path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if e.filter.IsSupported(entry.Name()) {
				paths = append(paths, filepath.Join(src.Path, entry.Name()))
			}
		}
	}

	// Sort first so shuffling depends only on the seed, not on directory order.
	slices.Sort(paths)
	if src.Shuffle {
		e.rng.Shuffle(len(paths), func(i, j int) {
			paths[i], paths[j] = paths[j], paths[i]
		})
	}
	return paths, nil
}

// datedToday reports whether path should be kept by the date filter.
func (e *Enumerator) datedToday(path string) bool {
	if e.datePattern == nil {
		return true
	}
	m := e.datePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil || len(m) < 4 {
		return true
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	ty, tm, td := e.now().Date()
	if day == td && time.Month(month) == tm && year == ty {
		return true
	}

	e.log.Info().
		Str("path", path).
		Msg("skipped file: filename contains a date that is not today")
	return false
}
