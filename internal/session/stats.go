package session

import (
	"sync"
	"time"

	"github.com/kalshiarb/engine/internal/strategy"
)

// Stats accumulates per-session counters for the footer and logs.
type Stats struct {
	mu           sync.RWMutex
	startTime    time.Time
	ticks        int64
	buys         int64
	sells        int64
	bailouts     int64
	cancels      int64
	errors       int64
	lastTick     time.Time
	balanceCents int64
	quotaRemain  int
}

// StatsSnapshot is a copy-on-read view of the session counters.
type StatsSnapshot struct {
	StartTime    time.Time
	Ticks        int64
	Buys         int64
	Sells        int64
	Bailouts     int64
	Cancels      int64
	Errors       int64
	LastTick     time.Time
	BalanceCents int64
	QuotaRemain  int
}

// NewStats starts the session clock.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// RecordTick folds one tick's result into the counters.
func (s *Stats) RecordTick(res strategy.TickResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.buys += int64(res.Buys)
	s.sells += int64(res.Sells)
	s.bailouts += int64(res.Bailouts)
	s.cancels += int64(res.Cancels)
	s.errors += int64(res.Errors)
	s.lastTick = time.Now()
}

// SetBalance records the latest exchange balance in cents.
func (s *Stats) SetBalance(cents int64) {
	s.mu.Lock()
	s.balanceCents = cents
	s.mu.Unlock()
}

// SetQuotaRemaining records the odds provider's remaining request quota.
func (s *Stats) SetQuotaRemaining(remaining int) {
	s.mu.Lock()
	s.quotaRemain = remaining
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		StartTime:    s.startTime,
		Ticks:        s.ticks,
		Buys:         s.buys,
		Sells:        s.sells,
		Bailouts:     s.bailouts,
		Cancels:      s.cancels,
		Errors:       s.errors,
		LastTick:     s.lastTick,
		BalanceCents: s.balanceCents,
		QuotaRemain:  s.quotaRemain,
	}
}

// LogEntry is one timestamped line in the session event log.
type LogEntry struct {
	Time     time.Time
	Severity string // "info" | "warn" | "error"
	Message  string
}

// EventLog is a bounded ring buffer of trade events feeding the UI. It
// satisfies the strategy engine's event sink.
type EventLog struct {
	mu      sync.RWMutex
	entries []LogEntry
	max     int
}

// NewEventLog creates a log that keeps the most recent max entries.
func NewEventLog(max int) *EventLog {
	if max < 1 {
		max = 1
	}
	return &EventLog{max: max}
}

// Record appends an entry, evicting the oldest when full.
func (l *EventLog) Record(severity, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{Time: time.Now(), Severity: severity, Message: message})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Entries returns a copy, oldest first.
func (l *EventLog) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
