package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalshiarb/engine/internal/config"
	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/odds"
	"github.com/kalshiarb/engine/internal/portfolio"
	"github.com/kalshiarb/engine/internal/strategy"
)

type fakeExchange struct {
	markets      []kalshi.Market
	marketsErr   error
	positions    []kalshi.Position
	positionsErr error
	orders       []kalshi.Order

	created  []kalshi.OrderRequest
	canceled []string
}

func (f *fakeExchange) Markets(context.Context, string) ([]kalshi.Market, error) {
	return f.markets, f.marketsErr
}

func (f *fakeExchange) Balance(context.Context) (int64, error) { return 10000, nil }

func (f *fakeExchange) Orders(context.Context, string) ([]kalshi.Order, error) {
	return f.orders, nil
}

func (f *fakeExchange) Positions(_ context.Context, settlementStatus string) ([]kalshi.Position, error) {
	if settlementStatus == "settled" {
		return nil, nil
	}
	return f.positions, f.positionsErr
}

func (f *fakeExchange) CreateOrder(_ context.Context, req kalshi.OrderRequest) (kalshi.OrderResponse, error) {
	f.created = append(f.created, req)
	return kalshi.OrderResponse{OrderID: "ord_1", Status: "resting"}, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, orderID string) error {
	f.canceled = append(f.canceled, orderID)
	return nil
}

type fakeOdds struct {
	events []odds.Event
	err    error
}

func (f *fakeOdds) Events(context.Context, string) ([]odds.Event, error) { return f.events, f.err }
func (f *fakeOdds) Quota() odds.Quota                                    { return odds.Quota{Remaining: 100} }

type fakeLedger struct{ deleted []string }

func (f *fakeLedger) SaveEntry(context.Context, portfolio.TradeHistoryEntry) error { return nil }
func (f *fakeLedger) DeleteEntry(_ context.Context, ticker string) error {
	f.deleted = append(f.deleted, ticker)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string) {}

type runnerFixture struct {
	runner   *Runner
	exchange *fakeExchange
	oddsAPI  *fakeOdds
	tracker  *portfolio.Tracker
	hist     *odds.History
	ledger   *fakeLedger
	stats    *Stats
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	cfg := &config.Config{
		Sports:                 []string{"basketball_nba"},
		BidMarginPercent:       5,
		AutoCloseMarginPercent: 15,
		TradeSize:              10,
		MaxPositions:           5,
		AutoBid:                true,
		AutoClose:              true,
		VolatilityWindow:       10,
	}

	f := &runnerFixture{
		exchange: &fakeExchange{},
		oddsAPI:  &fakeOdds{},
		tracker:  portfolio.NewTracker(nil),
		hist:     odds.NewHistory(10),
		ledger:   &fakeLedger{},
		stats:    NewStats(),
	}
	events := NewEventLog(100)
	engine := strategy.NewEngine(cfg, f.exchange, f.tracker, f.ledger, events, noopNotifier{})
	f.runner = NewRunner(cfg, f.exchange, f.oddsAPI, engine, f.tracker,
		f.hist, f.ledger, f.stats, events, Window{}, nil)
	return f
}

func nbaFixture() ([]odds.Event, []kalshi.Market) {
	commence := time.Date(2026, time.January, 19, 19, 0, 0, 0, time.FixedZone("EST", -5*3600))
	events := []odds.Event{{
		ID:           "ev1",
		SportKey:     "basketball_nba",
		CommenceTime: commence,
		HomeTeam:     "Washington Wizards",
		AwayTeam:     "Los Angeles Clippers",
		Quotes: []odds.Quote{
			{Bookmaker: "draftkings", LastUpdate: commence, HomePrice: +130, AwayPrice: -150},
		},
	}}
	markets := []kalshi.Market{{
		Ticker: "KXNBAGAME-26JAN19LACWAS-LAC",
		YesBid: 50,
		YesAsk: 53,
		Status: "open",
	}}
	return events, markets
}

func TestTickHappyPathPlacesBuy(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, f.exchange.markets = nbaFixture()

	f.runner.Tick(context.Background())

	if len(f.exchange.created) != 1 {
		t.Fatalf("orders created = %d, want 1", len(f.exchange.created))
	}
	// fair 58 (LAC at -150 devigged), margin 5: cap 55; bid 50+1 = 51.
	if got := f.exchange.created[0].YesPrice; got != 51 {
		t.Errorf("bid = %d, want 51", got)
	}

	snap := f.stats.Snapshot()
	if snap.Ticks != 1 || snap.Buys != 1 {
		t.Errorf("stats = %+v", snap)
	}
	if snap.BalanceCents != 10000 || snap.QuotaRemain != 100 {
		t.Errorf("balance/quota = %d/%d", snap.BalanceCents, snap.QuotaRemain)
	}
	if len(f.runner.Joined()) != 1 {
		t.Errorf("joined = %+v", f.runner.Joined())
	}
}

func TestTickMarketFailureSkipsDecisions(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, _ = nbaFixture()
	f.exchange.marketsErr = errors.New("exchange down")
	f.exchange.positions = []kalshi.Position{{Ticker: "A", Position: 10, AvgPrice: 40}}

	f.runner.Tick(context.Background())

	if len(f.exchange.created) != 0 {
		t.Error("no market snapshot means no decisions at all")
	}
	// The portfolio poll still reconciled.
	if f.tracker.OpenPositionCount() != 1 {
		t.Error("reconcile should run even when markets fail")
	}
	if f.stats.Snapshot().Ticks != 1 {
		t.Error("the tick still counts")
	}
}

func TestTickOddsFailureStillRunsExits(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.err = errors.New("quota exhausted")
	// Held position with the bid at the auto-close target (avg 41 -> 47).
	f.exchange.markets = []kalshi.Market{{Ticker: "KXNBAGAME-26JAN19LACWAS-LAC", YesBid: 47, YesAsk: 50, Status: "open"}}
	f.exchange.positions = []kalshi.Position{{Ticker: "KXNBAGAME-26JAN19LACWAS-LAC", Position: 10, AvgPrice: 41}}

	f.runner.Tick(context.Background())

	if len(f.exchange.created) != 1 || f.exchange.created[0].Action != "sell" {
		t.Fatalf("created = %+v, want one sell", f.exchange.created)
	}
}

func TestTickPortfolioFailureKeepsLastState(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, f.exchange.markets = nbaFixture()

	// First tick reconciles a held position on the joined ticker, which
	// blocks entries on it.
	f.exchange.positions = []kalshi.Position{{Ticker: "KXNBAGAME-26JAN19LACWAS-LAC", Position: 10, AvgPrice: 50}}
	f.runner.Tick(context.Background())
	if len(f.exchange.created) != 0 {
		t.Fatalf("created = %+v, want none while held", f.exchange.created)
	}

	// Second tick: the portfolio poll fails. The stale held view stands,
	// so the ticker still must not be bought.
	f.exchange.positionsErr = errors.New("portfolio unavailable")
	f.runner.Tick(context.Background())
	if len(f.exchange.created) != 0 {
		t.Errorf("created = %+v, stale position must still block entry", f.exchange.created)
	}
}

func TestApplyQuoteUpdatesBook(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, f.exchange.markets = nbaFixture()
	f.runner.Tick(context.Background())

	f.runner.ApplyQuote(kalshi.QuoteUpdate{
		Ticker: "KXNBAGAME-26JAN19LACWAS-LAC",
		YesBid: 52,
		YesAsk: 54,
		Volume: 999,
	})

	m := f.runner.MarketBook()["KXNBAGAME-26JAN19LACWAS-LAC"]
	if m.YesBid != 52 || m.YesAsk != 54 || m.Volume != 999 {
		t.Errorf("book entry = %+v", m)
	}

	// Unknown tickers are ignored.
	f.runner.ApplyQuote(kalshi.QuoteUpdate{Ticker: "UNKNOWN", YesBid: 1})
	if _, ok := f.runner.MarketBook()["UNKNOWN"]; ok {
		t.Error("quotes for unknown tickers must not create book entries")
	}
}

func TestTickPrunesVolatilityForDepartedEvents(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, f.exchange.markets = nbaFixture()

	f.runner.Tick(context.Background())
	f.hist.Record("ev1", 70)
	if f.hist.Volatility("ev1") == 0 {
		t.Fatal("fixture should have a live sample window for ev1")
	}

	// Game over: the next successful poll no longer lists the event.
	f.oddsAPI.events = nil
	f.runner.Tick(context.Background())

	if got := f.hist.Volatility("ev1"); got != 0 {
		t.Errorf("volatility after the event left the feed = %v, want 0", got)
	}
}

func TestTickKeepsVolatilityOnOddsFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, f.exchange.markets = nbaFixture()

	f.runner.Tick(context.Background())
	f.hist.Record("ev1", 70)

	// A failed poll means the events are missing, not finished.
	f.oddsAPI.err = errors.New("quota exhausted")
	f.runner.Tick(context.Background())

	if f.hist.Volatility("ev1") == 0 {
		t.Error("a failed odds poll must not wipe sample windows")
	}
}

func TestTickPrunesClosedLedgerEntries(t *testing.T) {
	f := newRunnerFixture(t)
	f.oddsAPI.events, f.exchange.markets = nbaFixture()

	// Ledger entry for a ticker with no position and no resting order.
	f.tracker.RecordOrderPlaced(kalshi.Order{Ticker: "CLOSED"}, portfolio.TradeHistoryEntry{Ticker: "CLOSED"})

	f.runner.Tick(context.Background())

	if _, ok := f.tracker.Entry("CLOSED"); ok {
		t.Error("closed entry should be pruned")
	}
	if len(f.ledger.deleted) == 0 || f.ledger.deleted[0] != "CLOSED" {
		t.Errorf("deleted = %v, want [CLOSED]", f.ledger.deleted)
	}
}
