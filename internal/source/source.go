// Package source models a configured media directory together with its
// playback policy and time-of-day activation window.
package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidWindow is returned when a playing-time interval cannot be parsed.
var ErrInvalidWindow = errors.New("invalid time window")

var windowPattern = regexp.MustCompile(`^\s*(\d\d):(\d\d)\s*-\s*(\d\d):(\d\d)\s*$`)

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

// Midnight is the start of the day.
const Midnight TimeOfDay = 0

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// TimeOfDayOf extracts the wall-clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(time.Duration(t) / time.Hour) }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(time.Duration(t)%time.Hour) / int(time.Minute) }

// On returns the instant at which t occurs on the calendar day of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(time.Duration(t))
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Window is a time-of-day interval. When Start is after End the interval
// wraps past midnight.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ParseWindow parses an interval of the form "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	m := windowPattern.FindStringSubmatch(s)
	if m == nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}

	start, err := parseClock(m[1], m[2])
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
	}
	end, err := parseClock(m[3], m[4])
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
	}
	return Window{Start: start, End: end}, nil
}

func parseClock(hh, mm string) (TimeOfDay, error) {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%s:%s out of range", hh, mm)
	}
	return NewTimeOfDay(h, m), nil
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t TimeOfDay) bool {
	if w.Start <= w.End {
		return w.Start <= t && t <= w.End
	}
	return t >= w.Start || t <= w.End
}

// WrapsMidnight reports whether the window spans midnight.
func (w Window) WrapsMidnight() bool {
	return w.Start > w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Source is a directory plus the policy used to turn it into playlist items.
type Source struct {
	Path      string
	Shuffle   bool
	Recursive bool

	// ItemPlayDuration of zero means the length is asked from the player
	// once the item is loaded.
	ItemPlayDuration time.Duration

	// Window is nil for sources that are always active.
	Window *Window

	// PlayEvery is non-zero for sources injected on a timer instead of
	// being part of the main rotation.
	PlayEvery time.Duration

	// Repeat is how many times each file is played back to back. Values
	// below one count as one.
	Repeat int
}

// IsActive reports whether the source is eligible at the wall-clock time now.
func (s *Source) IsActive(now time.Time) bool {
	if s.Window == nil {
		return true
	}
	return s.Window.Contains(TimeOfDayOf(now))
}

// IsPeriodic reports whether the source is injected on a timer.
func (s *Source) IsPeriodic() bool {
	return s.PlayEvery > 0
}

// Repeats returns the effective repeat count.
func (s *Source) Repeats() int {
	if s.Repeat < 1 {
		return 1
	}
	return s.Repeat
}

// Validate rejects contradictory policies.
func (s *Source) Validate() error {
	if s.Path == "" {
		return errors.New("source path is empty")
	}
	if s.Window != nil && s.PlayEvery > 0 {
		return fmt.Errorf("source %s: a playing time window cannot be combined with periodic playback", s.Path)
	}
	if s.ItemPlayDuration < 0 || s.PlayEvery < 0 {
		return fmt.Errorf("source %s: durations must not be negative", s.Path)
	}
	return nil
}

// Item is one entry of a playlist. Source is a back-reference used to read
// the per-item play duration.
type Item struct {
	Path   string
	Source *Source
}
