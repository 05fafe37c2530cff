package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"player-scheduler/internal/race"
	"player-scheduler/internal/source"
)

// Clock fires once a day at each time of the rebuild schedule.
type Clock struct {
	rules []*rrule.RRule
	times []source.TimeOfDay
	now   func() time.Time
	sleep func(time.Duration) race.Waiter
	log   zerolog.Logger

	mu   sync.Mutex
	next time.Time
}

// NewClock builds a daily recurrence for every time in times, starting on
// the current day. now defaults to time.Now.
func NewClock(times []source.TimeOfDay, now func() time.Time, log zerolog.Logger) (*Clock, error) {
	if len(times) == 0 {
		return nil, errors.New("empty rebuild schedule")
	}
	if now == nil {
		now = time.Now
	}

	y, m, d := now().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now().Location())

	rules := make([]*rrule.RRule, 0, len(times))
	for _, t := range times {
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.DAILY,
			Dtstart:  day,
			Byhour:   []int{t.Hour()},
			Byminute: []int{t.Minute()},
			Bysecond: []int{0},
		})
		if err != nil {
			return nil, fmt.Errorf("rebuild time %s: %w", t, err)
		}
		rules = append(rules, r)
	}

	return &Clock{rules: rules, times: times, now: now, sleep: race.Sleep, log: log}, nil
}

// Times returns the configured times of day.
func (c *Clock) Times() []source.TimeOfDay { return c.times }

// NextAfter returns the first scheduled instant strictly after t. An
// rrule.Set holds a single RRULE, so each time of day keeps its own rule.
func (c *Clock) NextAfter(t time.Time) time.Time {
	var next time.Time
	for _, r := range c.rules {
		at := r.After(t, false)
		if at.IsZero() {
			continue
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next
}

// Next returns the instant of the upcoming trigger as last computed by
// Run, or the next one after now when Run has not started.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next.IsZero() {
		return c.NextAfter(c.now())
	}
	return c.next
}

// Run calls fire at every scheduled instant until ctx is done.
func (c *Clock) Run(ctx context.Context, fire func()) error {
	names := make([]string, len(c.times))
	for i, t := range c.times {
		names[i] = t.String()
	}
	c.log.Info().Str("times", strings.Join(names, ", ")).Msg("rebuilds scheduled")

	for {
		next := c.NextAfter(c.now())
		if next.IsZero() {
			return errors.New("rebuild schedule has no future occurrence")
		}
		c.mu.Lock()
		c.next = next
		c.mu.Unlock()

		c.log.Debug().Time("at", next).Msg("next scheduled rebuild")

		// Timers may fire a little early; never fire twice for one slot.
		for wait := next.Sub(c.now()); wait > 0; wait = next.Sub(c.now()) {
			if err := c.sleep(wait)(ctx); err != nil {
				return nil
			}
		}
		fire()
	}
}
