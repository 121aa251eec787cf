package odds

import (
	"math"
	"testing"
)

func TestVolatilityNeedsTwoSamples(t *testing.T) {
	h := NewHistory(10)

	if got := h.Volatility("ev1"); got != 0 {
		t.Errorf("volatility with no samples = %v, want 0", got)
	}

	h.Record("ev1", 58)
	if got := h.Volatility("ev1"); got != 0 {
		t.Errorf("volatility with one sample = %v, want 0", got)
	}
}

func TestVolatilityPopulationStdDev(t *testing.T) {
	h := NewHistory(10)
	h.Record("ev1", 50)
	h.Record("ev1", 60)

	// Population stddev of {50, 60} is 5.
	if got := h.Volatility("ev1"); math.Abs(got-5) > 1e-9 {
		t.Errorf("volatility = %v, want 5", got)
	}
}

func TestVolatilityConstantSeriesIsZero(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 10; i++ {
		h.Record("ev1", 58)
	}
	if got := h.Volatility("ev1"); got != 0 {
		t.Errorf("volatility of constant series = %v, want 0", got)
	}
}

func TestHistoryWindowEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	h.Record("ev1", 10)
	h.Record("ev1", 90)
	h.Record("ev1", 90)
	h.Record("ev1", 90) // evicts 10

	if got := h.Volatility("ev1"); got != 0 {
		t.Errorf("volatility after eviction = %v, want 0", got)
	}
}

func TestHistoryPerEventIsolation(t *testing.T) {
	h := NewHistory(10)
	h.Record("ev1", 50)
	h.Record("ev1", 60)
	h.Record("ev2", 58)
	h.Record("ev2", 58)

	if got := h.Volatility("ev2"); got != 0 {
		t.Errorf("ev2 volatility = %v, want 0", got)
	}
	if got := h.Volatility("ev1"); math.Abs(got-5) > 1e-9 {
		t.Errorf("ev1 volatility = %v, want 5", got)
	}
}

func TestHistoryRetainDropsUnlistedEvents(t *testing.T) {
	h := NewHistory(10)
	h.Record("ev1", 50)
	h.Record("ev1", 60)
	h.Record("ev2", 40)
	h.Record("ev2", 50)

	h.Retain([]string{"ev2"})

	if got := h.Volatility("ev1"); got != 0 {
		t.Errorf("volatility after Retain dropped ev1 = %v, want 0", got)
	}
	if got := h.Volatility("ev2"); math.Abs(got-5) > 1e-9 {
		t.Errorf("ev2 volatility = %v, want 5", got)
	}
}
