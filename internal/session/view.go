package session

import (
	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/match"
	"github.com/kalshiarb/engine/internal/portfolio"
)

// View bundles the read-only surfaces the UI consumes into one value.
type View struct {
	runner  *Runner
	tracker *portfolio.Tracker
	stats   *Stats
	events  *EventLog
}

// NewView creates the UI read surface.
func NewView(runner *Runner, tracker *portfolio.Tracker, stats *Stats, events *EventLog) *View {
	return &View{runner: runner, tracker: tracker, stats: stats, events: events}
}

// Joined returns the latest join result.
func (v *View) Joined() []match.JoinedMarket {
	return v.runner.Joined()
}

// Positions returns the held positions.
func (v *View) Positions() []kalshi.Position {
	return v.tracker.Positions()
}

// MarketBook returns the current market book.
func (v *View) MarketBook() map[string]kalshi.Market {
	return v.runner.MarketBook()
}

// Settled returns the realized-P&L history.
func (v *View) Settled() []kalshi.Position {
	return v.runner.SettledPositions()
}

// Events returns the session event log.
func (v *View) Events() []LogEntry {
	return v.events.Entries()
}

// Stats returns the session counters.
func (v *View) Stats() StatsSnapshot {
	return v.stats.Snapshot()
}
