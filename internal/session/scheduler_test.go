package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalshiarb/engine/internal/config"
)

func TestSchedulerCoalescesSlowTicks(t *testing.T) {
	var fires atomic.Int64
	block := make(chan struct{})

	s := NewScheduler(10*time.Millisecond, func(context.Context) {
		fires.Add(1)
		<-block
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Let several intervals elapse while the first tick blocks.
	time.Sleep(60 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Errorf("fires = %d, want 1 while a tick is in flight", got)
	}
	if s.Skipped() == 0 {
		t.Error("skipped fires should be counted")
	}

	close(block)
	cancel()
	<-done
}

func TestSchedulerSetIntervalRestartsTimer(t *testing.T) {
	var fires atomic.Int64
	s := NewScheduler(time.Hour, func(context.Context) { fires.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // initial immediate fire
	if fires.Load() != 1 {
		t.Fatalf("fires = %d, want 1 immediate fire", fires.Load())
	}

	// Dropping to a short interval must not wait out the old hour timer.
	s.SetInterval(10 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	if fires.Load() < 2 {
		t.Errorf("fires = %d, want at least 2 after interval drop", fires.Load())
	}

	cancel()
	<-done
}

func TestSchedulerSetIntervalSameValueNoop(t *testing.T) {
	s := NewScheduler(time.Second, func(context.Context) {})
	s.SetInterval(time.Second)
	if s.Interval() != time.Second {
		t.Errorf("interval = %v", s.Interval())
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow(config.ScheduleConfig{
		Enabled: true,
		Start:   "09:30",
		End:     "16:00",
		Days:    []string{"mon", "Tuesday", "wed"},
	})
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	if w.Start != 9*60+30 || w.End != 16*60 {
		t.Errorf("window = %+v", w)
	}
	if w.Days&(1<<time.Monday) == 0 || w.Days&(1<<time.Tuesday) == 0 {
		t.Errorf("days mask = %b", w.Days)
	}

	if _, err := ParseWindow(config.ScheduleConfig{Enabled: true, Start: "25:00", End: "16:00"}); err == nil {
		t.Error("invalid start should fail")
	}
	if _, err := ParseWindow(config.ScheduleConfig{Enabled: true, Start: "09:00", End: "16:00", Days: []string{"noday"}}); err == nil {
		t.Error("unknown day should fail")
	}
}

func TestWindowContains(t *testing.T) {
	// Monday 2026-01-19.
	monday := func(h, m int) time.Time {
		return time.Date(2026, time.January, 19, h, m, 0, 0, time.UTC)
	}

	w := Window{Enabled: true, Start: 9 * 60, End: 17 * 60}
	if !w.Contains(monday(12, 0)) {
		t.Error("noon should be in a 09:00-17:00 window")
	}
	if w.Contains(monday(8, 59)) || w.Contains(monday(17, 0)) {
		t.Error("boundaries: start inclusive, end exclusive")
	}

	// Disabled window contains everything.
	if !(Window{}).Contains(monday(3, 0)) {
		t.Error("disabled window must always contain")
	}

	// Day mask.
	w.Days = 1 << time.Tuesday
	if w.Contains(monday(12, 0)) {
		t.Error("Monday should be outside a Tuesday-only window")
	}

	// Overnight wrap: 22:00-02:00 opened Monday covers Tuesday 01:00.
	overnight := Window{Enabled: true, Start: 22 * 60, End: 2 * 60, Days: 1 << time.Monday}
	if !overnight.Contains(monday(23, 0)) {
		t.Error("Monday 23:00 should be inside")
	}
	tuesday1am := monday(0, 0).AddDate(0, 0, 1).Add(time.Hour)
	if !overnight.Contains(tuesday1am) {
		t.Error("Tuesday 01:00 belongs to the window opened Monday")
	}
	if overnight.Contains(monday(12, 0)) {
		t.Error("Monday noon is outside an overnight window")
	}
}
