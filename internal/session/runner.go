package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kalshiarb/engine/internal/config"
	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/match"
	"github.com/kalshiarb/engine/internal/odds"
	"github.com/kalshiarb/engine/internal/portfolio"
	"github.com/kalshiarb/engine/internal/strategy"
)

// settledRefresh is how often the realized-P&L history is refetched.
const settledRefresh = 5 * time.Minute

// exchangeAPI is the Kalshi surface the runner polls.
type exchangeAPI interface {
	Markets(ctx context.Context, seriesTicker string) ([]kalshi.Market, error)
	Balance(ctx context.Context) (int64, error)
	Orders(ctx context.Context, status string) ([]kalshi.Order, error)
	Positions(ctx context.Context, settlementStatus string) ([]kalshi.Position, error)
}

// oddsAPI is the sportsbook surface the runner polls.
type oddsAPI interface {
	Events(ctx context.Context, sportKey string) ([]odds.Event, error)
	Quota() odds.Quota
}

// QuoteFeed receives the ticker set worth subscribing to.
type QuoteFeed interface {
	SetTickers([]string)
}

// ledgerStore is the persistence surface for pruning closed entries.
type ledgerStore interface {
	DeleteEntry(ctx context.Context, ticker string) error
}

// Runner executes one full pipeline pass per tick: poll odds, poll
// markets, reconcile the portfolio, join, decide. Each stage degrades
// independently; a failed odds poll still runs exits, a failed market
// poll skips decisions entirely, and a failed portfolio poll leaves the
// last reconciled state standing.
type Runner struct {
	cfg      *config.Config
	exchange exchangeAPI
	oddsAPI  oddsAPI
	engine   *strategy.Engine
	tracker  *portfolio.Tracker
	hist     *odds.History
	ledger   ledgerStore
	stats    *Stats
	events   *EventLog
	window   Window
	feed     QuoteFeed // optional
	now      func() time.Time

	mu          sync.RWMutex
	book        map[string]kalshi.Market
	joined      []match.JoinedMarket
	settled     []kalshi.Position
	lastSettled time.Time
}

// NewRunner wires the pipeline. feed may be nil when the WebSocket feed
// is disabled.
func NewRunner(cfg *config.Config, exchange exchangeAPI, oddsAPI oddsAPI, engine *strategy.Engine,
	tracker *portfolio.Tracker, hist *odds.History, ledger ledgerStore,
	stats *Stats, events *EventLog, window Window, feed QuoteFeed) *Runner {
	return &Runner{
		cfg:      cfg,
		exchange: exchange,
		oddsAPI:  oddsAPI,
		engine:   engine,
		tracker:  tracker,
		hist:     hist,
		ledger:   ledger,
		stats:    stats,
		events:   events,
		window:   window,
		feed:     feed,
		now:      time.Now,
		book:     make(map[string]kalshi.Market),
	}
}

// Tick runs one pipeline pass. Designed to be driven by a Scheduler.
func (r *Runner) Tick(ctx context.Context) {
	events := r.pollOdds(ctx)
	marketsOK := r.pollMarkets(ctx)
	r.reconcile(ctx)
	r.pollBalance(ctx)
	r.pollSettled(ctx)

	if !marketsOK {
		slog.Warn("decisions_skipped", "reason", "market snapshot unavailable")
		r.stats.RecordTick(strategy.TickResult{})
		return
	}

	joined := match.Join(events, r.marketList(), r.hist)

	r.mu.Lock()
	r.joined = joined
	r.mu.Unlock()

	r.updateFeedTickers(joined)

	allow := r.window.Contains(r.now())
	res := r.engine.Tick(ctx, strategy.TickInput{
		Joined:      joined,
		Markets:     r.MarketBook(),
		AllowOrders: allow,
	})
	r.stats.RecordTick(res)

	r.pruneLedger(ctx)

	slog.Debug("tick_complete",
		"events", len(events),
		"joined", len(joined),
		"in_window", allow,
		"buys", res.Buys,
		"sells", res.Sells,
		"bailouts", res.Bailouts,
		"cancels", res.Cancels,
		"errors", res.Errors)
}

// pollOdds fetches events for every configured sport and records fair
// value samples into the volatility history. A failed sport is dropped
// from this tick's join; exits never depend on odds data.
func (r *Runner) pollOdds(ctx context.Context) []odds.Event {
	var all []odds.Event
	allOK := true
	for _, sport := range r.cfg.Sports {
		events, err := r.oddsAPI.Events(ctx, sport)
		if err != nil {
			slog.Error("odds_poll_failed", "sport", sport, "error", err)
			allOK = false
			continue
		}
		all = append(all, events...)
	}

	for _, ev := range all {
		fv, err := odds.FairValue(ev, odds.Home)
		if err != nil {
			continue
		}
		r.hist.Record(ev.ID, fv*100)
	}

	// A complete poll is the authoritative event set; drop volatility
	// windows for games that left the feed. A partial poll prunes nothing,
	// since the failed sport's events are only missing, not finished.
	if allOK {
		ids := make([]string, 0, len(all))
		for _, ev := range all {
			ids = append(ids, ev.ID)
		}
		r.hist.Retain(ids)
	}

	r.stats.SetQuotaRemaining(r.oddsAPI.Quota().Remaining)
	return all
}

// pollMarkets refreshes the market book from REST. Returns false when no
// series could be fetched, which skips all decisions this tick.
func (r *Runner) pollMarkets(ctx context.Context) bool {
	fetched := make(map[string]kalshi.Market)
	anyOK := false

	for _, sport := range r.cfg.Sports {
		series := match.SeriesTicker(sport)
		if series == "" {
			slog.Warn("sport_unsupported", "sport", sport)
			continue
		}
		markets, err := r.exchange.Markets(ctx, series)
		if err != nil {
			slog.Error("markets_poll_failed", "series", series, "error", err)
			continue
		}
		anyOK = true
		for _, m := range markets {
			fetched[m.Ticker] = m
		}
	}

	if !anyOK {
		return false
	}

	r.mu.Lock()
	r.book = fetched
	r.mu.Unlock()
	return true
}

// reconcile replaces the portfolio view from a fresh exchange read. Either
// call failing means no update; the last reconciled state stands.
func (r *Runner) reconcile(ctx context.Context) {
	positions, err := r.exchange.Positions(ctx, "")
	if err != nil {
		slog.Error("positions_poll_failed", "error", err)
		return
	}
	orders, err := r.exchange.Orders(ctx, "resting")
	if err != nil {
		slog.Error("orders_poll_failed", "error", err)
		return
	}
	r.tracker.Reconcile(positions, orders)
}

func (r *Runner) pollBalance(ctx context.Context) {
	balance, err := r.exchange.Balance(ctx)
	if err != nil {
		slog.Warn("balance_poll_failed", "error", err)
		return
	}
	r.stats.SetBalance(balance)
}

// pollSettled refreshes the realized-P&L history on a slow cadence.
func (r *Runner) pollSettled(ctx context.Context) {
	r.mu.RLock()
	due := r.now().Sub(r.lastSettled) >= settledRefresh
	r.mu.RUnlock()
	if !due {
		return
	}

	settled, err := r.exchange.Positions(ctx, "settled")
	if err != nil {
		slog.Warn("settled_poll_failed", "error", err)
		return
	}

	r.mu.Lock()
	r.settled = settled
	r.lastSettled = r.now()
	r.mu.Unlock()
}

// pruneLedger drops ledger entries whose ticker no longer has a position
// or a resting order; the trade is fully closed.
func (r *Runner) pruneLedger(ctx context.Context) {
	if !r.tracker.Synced() {
		return
	}
	for ticker := range r.tracker.Ledger() {
		if _, held := r.tracker.Position(ticker); held {
			continue
		}
		if _, resting := r.tracker.RestingOrder(ticker); resting {
			continue
		}
		r.tracker.ForgetEntry(ticker)
		if err := r.ledger.DeleteEntry(ctx, ticker); err != nil {
			slog.Warn("ledger_prune_failed", "ticker", ticker, "error", err)
		}
		slog.Debug("ledger_entry_pruned", "ticker", ticker)
	}
}

// updateFeedTickers points the quote feed at every joined or held ticker.
func (r *Runner) updateFeedTickers(joined []match.JoinedMarket) {
	if r.feed == nil {
		return
	}

	seen := make(map[string]bool)
	var tickers []string
	for _, jm := range joined {
		if !seen[jm.Ticker] {
			seen[jm.Ticker] = true
			tickers = append(tickers, jm.Ticker)
		}
	}
	for _, p := range r.tracker.Positions() {
		if !seen[p.Ticker] {
			seen[p.Ticker] = true
			tickers = append(tickers, p.Ticker)
		}
	}
	r.feed.SetTickers(tickers)
}

// ApplyQuote folds a live WebSocket quote into the market book. Display
// freshness only; the next strategy tick snapshots whatever is current.
func (r *Runner) ApplyQuote(q kalshi.QuoteUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.book[q.Ticker]
	if !ok {
		return
	}
	m.YesBid = q.YesBid
	m.YesAsk = q.YesAsk
	m.Volume = q.Volume
	r.book[q.Ticker] = m
}

// MarketBook returns a copy of the current market book.
func (r *Runner) MarketBook() map[string]kalshi.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]kalshi.Market, len(r.book))
	for k, v := range r.book {
		out[k] = v
	}
	return out
}

// Joined returns the most recent join result for display.
func (r *Runner) Joined() []match.JoinedMarket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.JoinedMarket, len(r.joined))
	copy(out, r.joined)
	return out
}

// SettledPositions returns the most recent realized-P&L history.
func (r *Runner) SettledPositions() []kalshi.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]kalshi.Position, len(r.settled))
	copy(out, r.settled)
	return out
}

// marketList flattens the book for the matcher.
func (r *Runner) marketList() []kalshi.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]kalshi.Market, 0, len(r.book))
	for _, m := range r.book {
		out = append(out, m)
	}
	return out
}
