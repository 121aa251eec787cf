// Package portfolio mirrors exchange-held state. The exchange is the
// source of truth: every successful poll replaces the local view wholesale
// rather than diffing, so a missed fill or external cancel self-corrects
// on the next poll.
package portfolio

import (
	"sync"
	"time"

	"github.com/kalshiarb/engine/internal/kalshi"
)

// TradeHistoryEntry records the decision context of an entry order. It is
// local bookkeeping only and drives the bail-out age check; the exchange
// never sees it.
type TradeHistoryEntry struct {
	Ticker         string    `json:"ticker"`
	EventLabel     string    `json:"event_label"`
	Source         string    `json:"source"` // "auto" | "manual"
	FairValueCents int       `json:"fair_value_cents"`
	BidPriceCents  int       `json:"bid_price_cents"`
	OrderPlacedAt  time.Time `json:"order_placed_at"`
	OddsTime       time.Time `json:"odds_time"`
}

// Tracker holds the reconciled portfolio snapshot.
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]kalshi.Position // by ticker, unsettled only
	orders    map[string]kalshi.Order    // by ticker, resting only
	ledger    map[string]TradeHistoryEntry
	synced    bool
}

// NewTracker creates an empty Tracker, optionally seeded with a persisted
// ledger.
func NewTracker(ledger map[string]TradeHistoryEntry) *Tracker {
	if ledger == nil {
		ledger = make(map[string]TradeHistoryEntry)
	}
	return &Tracker{
		positions: make(map[string]kalshi.Position),
		orders:    make(map[string]kalshi.Order),
		ledger:    ledger,
	}
}

// Reconcile replaces the position and order views with a fresh exchange
// read. An empty result from a successful poll is applied as-is; callers
// must not call Reconcile for failed polls, which leave the last known
// state standing.
func (t *Tracker) Reconcile(positions []kalshi.Position, orders []kalshi.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.positions = make(map[string]kalshi.Position, len(positions))
	for _, p := range positions {
		if p.Position == 0 {
			continue
		}
		t.positions[p.Ticker] = p
	}

	t.orders = make(map[string]kalshi.Order, len(orders))
	for _, o := range orders {
		if o.Status != "resting" {
			continue
		}
		t.orders[o.Ticker] = o
	}

	t.synced = true
}

// Synced reports whether at least one successful reconcile has happened.
// Strategy decisions must not run against the zero-value view.
func (t *Tracker) Synced() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.synced
}

// Position returns the held position for a ticker, if any.
func (t *Tracker) Position(ticker string) (kalshi.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[ticker]
	return p, ok
}

// Positions returns a copy of all held positions.
func (t *Tracker) Positions() []kalshi.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]kalshi.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// OpenPositionCount returns the number of distinct tickers held.
func (t *Tracker) OpenPositionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.positions)
}

// RestingOrder returns the resting order on a ticker, if any.
func (t *Tracker) RestingOrder(ticker string) (kalshi.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.orders[ticker]
	return o, ok
}

// RestingOrders returns a copy of all resting orders.
func (t *Tracker) RestingOrders() []kalshi.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]kalshi.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o)
	}
	return out
}

// RecordOrderPlaced stores the decision context for a new entry order and
// optimistically marks the ticker as having a resting order until the next
// reconcile.
func (t *Tracker) RecordOrderPlaced(order kalshi.Order, entry TradeHistoryEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders[order.Ticker] = order
	t.ledger[entry.Ticker] = entry
}

// RecordOrder marks a ticker as having a resting order until the next
// reconcile, without touching the ledger. Used for exit orders.
func (t *Tracker) RecordOrder(order kalshi.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders[order.Ticker] = order
}

// ForgetOrder drops the resting-order marker after a cancel, ahead of the
// next reconcile.
func (t *Tracker) ForgetOrder(ticker string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.orders, ticker)
}

// Entry returns the ledger entry for a ticker, if any.
func (t *Tracker) Entry(ticker string) (TradeHistoryEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.ledger[ticker]
	return e, ok
}

// Ledger returns a copy of the full trade ledger.
func (t *Tracker) Ledger() map[string]TradeHistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]TradeHistoryEntry, len(t.ledger))
	for k, v := range t.ledger {
		out[k] = v
	}
	return out
}

// ForgetEntry drops the ledger entry for a ticker after the position fully
// closes.
func (t *Tracker) ForgetEntry(ticker string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ledger, ticker)
}
