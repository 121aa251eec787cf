// Package session drives the poll loop: interval scheduling, the trading
// window, per-session stats, and the event log.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalshiarb/engine/internal/config"
)

// Scheduler fires a tick function on a fixed interval. Fires that land
// while a tick is still running are skipped, never queued; slow ticks
// thin the cadence instead of piling up.
type Scheduler struct {
	tick    func(context.Context)
	skipped atomic.Int64

	mu       sync.Mutex
	interval time.Duration
	reset    chan time.Duration

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler that calls tick every interval once
// started.
func NewScheduler(interval time.Duration, tick func(context.Context)) *Scheduler {
	return &Scheduler{
		tick:     tick,
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
}

// Interval returns the current cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the cadence and restarts the timer, so a switch to
// turbo takes effect immediately rather than after the old interval
// elapses.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	if d == s.interval {
		s.mu.Unlock()
		return
	}
	s.interval = d
	s.mu.Unlock()

	select {
	case s.reset <- d:
	default:
	}
	slog.Info("poll_interval_changed", "interval", d)
}

// Skipped returns the number of coalesced fires.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Run fires immediately, then on every interval until ctx is cancelled.
// It returns after the loop exits; in-flight ticks are waited for.
func (s *Scheduler) Run(ctx context.Context) {
	s.fire(ctx)

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case d := <-s.reset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		case <-timer.C:
			s.fire(ctx)
			timer.Reset(s.Interval())
		}
	}
}

// fire runs the tick in a goroutine unless one is already in flight.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		slog.Debug("tick_skipped", "reason", "previous tick still running")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.tick(ctx)
	}()
}

// Window is a daily trading window with an optional day-of-week mask.
// Outside the window the engine keeps polling for display but places no
// orders.
type Window struct {
	Enabled bool
	Start   int // minutes since midnight
	End     int
	Days    uint8 // bit per weekday, Sunday = bit 0; zero = every day
}

// ParseWindow builds a Window from the schedule config.
func ParseWindow(sc config.ScheduleConfig) (Window, error) {
	w := Window{Enabled: sc.Enabled}
	if !sc.Enabled {
		return w, nil
	}

	var err error
	if w.Start, err = parseClock(sc.Start); err != nil {
		return Window{}, fmt.Errorf("schedule start: %w", err)
	}
	if w.End, err = parseClock(sc.End); err != nil {
		return Window{}, fmt.Errorf("schedule end: %w", err)
	}

	for _, day := range sc.Days {
		bit, ok := dayBits[strings.ToLower(day)]
		if !ok {
			return Window{}, fmt.Errorf("unknown schedule day %q", day)
		}
		w.Days |= bit
	}
	return w, nil
}

var dayBits = map[string]uint8{
	"sun": 1 << time.Sunday, "sunday": 1 << time.Sunday,
	"mon": 1 << time.Monday, "monday": 1 << time.Monday,
	"tue": 1 << time.Tuesday, "tuesday": 1 << time.Tuesday,
	"wed": 1 << time.Wednesday, "wednesday": 1 << time.Wednesday,
	"thu": 1 << time.Thursday, "thursday": 1 << time.Thursday,
	"fri": 1 << time.Friday, "friday": 1 << time.Friday,
	"sat": 1 << time.Saturday, "saturday": 1 << time.Saturday,
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// Contains reports whether t falls inside the window. A disabled window
// contains everything. End before start wraps past midnight; the wrapped
// portion belongs to the day the window opened on.
func (w Window) Contains(t time.Time) bool {
	if !w.Enabled {
		return true
	}

	minutes := t.Hour()*60 + t.Minute()

	if w.Start <= w.End {
		return minutes >= w.Start && minutes < w.End && w.dayActive(t.Weekday())
	}

	// Overnight window.
	if minutes >= w.Start {
		return w.dayActive(t.Weekday())
	}
	if minutes < w.End {
		return w.dayActive((t.Weekday() + 6) % 7)
	}
	return false
}

func (w Window) dayActive(d time.Weekday) bool {
	if w.Days == 0 {
		return true
	}
	return w.Days&(1<<d) != 0
}
