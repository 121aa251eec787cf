package session

import (
	"fmt"
	"testing"

	"github.com/kalshiarb/engine/internal/strategy"
)

func TestStatsAccumulate(t *testing.T) {
	s := NewStats()

	s.RecordTick(strategy.TickResult{Buys: 1, Sells: 2, Errors: 1})
	s.RecordTick(strategy.TickResult{Bailouts: 1, Cancels: 3})
	s.SetBalance(12345)
	s.SetQuotaRemaining(480)

	snap := s.Snapshot()
	if snap.Ticks != 2 || snap.Buys != 1 || snap.Sells != 2 || snap.Bailouts != 1 || snap.Cancels != 3 || snap.Errors != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.BalanceCents != 12345 || snap.QuotaRemain != 480 {
		t.Errorf("balance/quota = %d/%d", snap.BalanceCents, snap.QuotaRemain)
	}
	if snap.LastTick.IsZero() || snap.StartTime.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestEventLogBounded(t *testing.T) {
	l := NewEventLog(3)
	for i := 0; i < 5; i++ {
		l.Record("info", fmt.Sprintf("line %d", i))
	}

	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Message != "line 2" || entries[2].Message != "line 4" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestEventLogReturnsCopy(t *testing.T) {
	l := NewEventLog(10)
	l.Record("warn", "original")

	entries := l.Entries()
	entries[0].Message = "mutated"

	if l.Entries()[0].Message != "original" {
		t.Error("Entries must return a copy")
	}
}
