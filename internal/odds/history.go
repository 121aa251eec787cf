package odds

import (
	"math"
	"sync"
)

// History holds a fixed-length window of fair-value samples per event and
// derives a volatility figure from them. Samples are percentages (0-100);
// volatility is the population standard deviation in percentage points.
type History struct {
	mu      sync.RWMutex
	window  int
	samples map[string][]float64
}

// NewHistory creates a History with the given window length. Windows
// shorter than 2 samples cannot produce a deviation, so window is clamped
// to 2.
func NewHistory(window int) *History {
	if window < 2 {
		window = 2
	}
	return &History{
		window:  window,
		samples: make(map[string][]float64),
	}
}

// Record appends a fair-value sample (percent) for an event, evicting the
// oldest sample once the window is full.
func (h *History) Record(eventID string, fairValuePercent float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.samples[eventID], fairValuePercent)
	if len(s) > h.window {
		s = s[len(s)-h.window:]
	}
	h.samples[eventID] = s
}

// Volatility returns the population standard deviation of the recorded
// samples for an event, or 0 when fewer than 2 samples exist.
func (h *History) Volatility(eventID string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.samples[eventID]
	if len(s) < 2 {
		return 0
	}

	var sum float64
	for _, v := range s {
		sum += v
	}
	mean := sum / float64(len(s))

	var sq float64
	for _, v := range s {
		d := v - mean
		sq += d * d
	}

	return math.Sqrt(sq / float64(len(s)))
}

// Retain drops the sample windows of every event not listed in ids, so
// finished games stop holding memory once they leave the odds feed.
func (h *History) Retain(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.samples {
		if _, ok := keep[id]; !ok {
			delete(h.samples, id)
		}
	}
}
