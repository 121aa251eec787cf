package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalshiarb/engine/internal/config"
	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/match"
	"github.com/kalshiarb/engine/internal/portfolio"
)

// Exchange is the order-placement surface the engine needs.
type Exchange interface {
	CreateOrder(ctx context.Context, req kalshi.OrderRequest) (kalshi.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// LedgerStore persists trade-history entries across restarts.
type LedgerStore interface {
	SaveEntry(ctx context.Context, e portfolio.TradeHistoryEntry) error
	DeleteEntry(ctx context.Context, ticker string) error
}

// EventSink receives human-readable trade events for the session log.
type EventSink interface {
	Record(severity, message string)
}

// Notifier pushes trade notifications to an external channel. key scopes
// the notifier's cooldown, typically the ticker.
type Notifier interface {
	Notify(ctx context.Context, key, message string)
}

// TickInput is the per-tick snapshot the engine decides against. Markets
// must cover every held ticker that has a price this tick; Joined carries
// the subset with a sportsbook consensus.
type TickInput struct {
	Joined  []match.JoinedMarket
	Markets map[string]kalshi.Market

	// AllowOrders is the schedule-window gate. When false the tick is
	// evaluated for display but nothing is submitted.
	AllowOrders bool
}

// TickResult summarizes the actions taken in one tick.
type TickResult struct {
	Buys     int
	Sells    int
	Bailouts int
	Cancels  int
	Errors   int
}

// Engine runs the entry, auto-close, and bail-out rules once per tick.
// It never retries a failed submission within a tick; the next tick
// re-evaluates from fresh exchange state.
type Engine struct {
	cfg      *config.Config
	exchange Exchange
	tracker  *portfolio.Tracker
	ledger   LedgerStore
	events   EventSink
	notifier Notifier

	now        func() time.Time
	newOrderID func() string

	// Toggles are runtime-mutable from the UI and re-read immediately
	// before every submission.
	mu        sync.RWMutex
	autoBid   bool
	autoClose bool
}

// NewEngine creates an Engine with toggles seeded from the config.
func NewEngine(cfg *config.Config, exchange Exchange, tracker *portfolio.Tracker, ledger LedgerStore, events EventSink, notifier Notifier) *Engine {
	return &Engine{
		cfg:        cfg,
		exchange:   exchange,
		tracker:    tracker,
		ledger:     ledger,
		events:     events,
		notifier:   notifier,
		now:        time.Now,
		newOrderID: uuid.NewString,
		autoBid:    cfg.AutoBid,
		autoClose:  cfg.AutoClose,
	}
}

// AutoBid reports the current entry toggle.
func (e *Engine) AutoBid() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.autoBid
}

// SetAutoBid flips the entry toggle.
func (e *Engine) SetAutoBid(on bool) {
	e.mu.Lock()
	e.autoBid = on
	e.mu.Unlock()
	slog.Info("auto_bid_toggled", "enabled", on)
}

// AutoClose reports the current exit toggle.
func (e *Engine) AutoClose() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.autoClose
}

// SetAutoClose flips the exit toggle.
func (e *Engine) SetAutoClose(on bool) {
	e.mu.Lock()
	e.autoClose = on
	e.mu.Unlock()
	slog.Info("auto_close_toggled", "enabled", on)
}

// Tick runs one synchronous decision pass: exits first, then entries.
// It requires a synced tracker; before the first successful portfolio
// read no order leaves the engine.
func (e *Engine) Tick(ctx context.Context, in TickInput) TickResult {
	var res TickResult

	if !e.tracker.Synced() {
		slog.Warn("tick_skipped", "reason", "portfolio not synced")
		return res
	}

	volByTicker := make(map[string]float64, len(in.Joined))
	for _, jm := range in.Joined {
		volByTicker[jm.Ticker] = jm.Volatility
	}

	e.runExits(ctx, in, volByTicker, &res)
	e.runEntries(ctx, in, &res)

	return res
}

// runExits evaluates auto-close and bail-out for every held position.
// A held ticker missing from the join still exits on exchange data alone,
// with volatility 0.
func (e *Engine) runExits(ctx context.Context, in TickInput, volByTicker map[string]float64, res *TickResult) {
	for _, pos := range e.tracker.Positions() {
		if pos.SettlementStatus == "settled" || pos.Position <= 0 {
			continue
		}

		m, ok := in.Markets[pos.Ticker]
		if !ok || m.YesBid <= 0 {
			continue
		}

		// An order already resting on the ticker, entry or exit, blocks
		// further action until it resolves.
		if _, resting := e.tracker.RestingOrder(pos.Ticker); resting {
			continue
		}

		vol := volByTicker[pos.Ticker]

		if entry, ok := e.tracker.Entry(pos.Ticker); ok && e.cfg.Bailout.Enabled {
			if shouldBailOut(pos.AvgPrice, m.YesBid, entry.OrderPlacedAt, e.now(), e.cfg.Bailout.TriggerWindow, e.cfg.Bailout.LossTriggerPercent) {
				if !in.AllowOrders {
					continue
				}
				if e.sell(ctx, pos, m.YesBid, "bailout", res) {
					res.Bailouts++
				}
				continue
			}
		}

		target := targetSell(pos.AvgPrice, e.cfg.AutoCloseMarginPercent, vol)
		if m.YesBid >= target {
			if !in.AllowOrders || !e.AutoClose() {
				continue
			}
			if e.sell(ctx, pos, m.YesBid, "auto_close", res) {
				res.Sells++
			}
		}
	}
}

// runEntries evaluates the smart-bid rule for every joined market.
func (e *Engine) runEntries(ctx context.Context, in TickInput, res *TickResult) {
	placed := 0
	for _, jm := range in.Joined {
		if _, held := e.tracker.Position(jm.Ticker); held {
			continue
		}

		maxPay := maxWillingToPay(jm.FairValueCents, e.cfg.BidMarginPercent, jm.Volatility)

		if order, resting := e.tracker.RestingOrder(jm.Ticker); resting {
			// A resting bid above what the current fair value supports is
			// stale. Cancel it; the next tick may re-bid at a sane price.
			if order.Action == "buy" && order.YesPrice > maxPay && in.AllowOrders {
				e.cancel(ctx, order, res)
			}
			continue
		}

		if e.tracker.OpenPositionCount()+placed >= e.cfg.MaxPositions {
			continue
		}

		bid := smartBid(jm.YesBid, maxPay)
		if bid <= 0 || bid > maxPay {
			continue
		}

		if !in.AllowOrders || !e.AutoBid() {
			continue
		}

		if e.buy(ctx, jm, bid, res) {
			placed++
			res.Buys++
		}
	}
}

func (e *Engine) buy(ctx context.Context, jm match.JoinedMarket, bid int, res *TickResult) bool {
	req := kalshi.OrderRequest{
		Ticker:        jm.Ticker,
		ClientOrderID: e.newOrderID(),
		Side:          "yes",
		Action:        "buy",
		Count:         e.cfg.TradeSize,
		Type:          "limit",
		YesPrice:      bid,
	}

	resp, err := e.exchange.CreateOrder(ctx, req)
	if err != nil {
		e.submissionError("buy", jm.Ticker, err, res)
		return false
	}

	entry := portfolio.TradeHistoryEntry{
		Ticker:         jm.Ticker,
		EventLabel:     jm.EventLabel,
		Source:         "auto",
		FairValueCents: jm.FairValueCents,
		BidPriceCents:  bid,
		OrderPlacedAt:  e.now(),
		OddsTime:       jm.OddsTime,
	}

	e.tracker.RecordOrderPlaced(kalshi.Order{
		OrderID:  resp.OrderID,
		Ticker:   jm.Ticker,
		Side:     "yes",
		Action:   "buy",
		Count:    e.cfg.TradeSize,
		YesPrice: bid,
		Status:   "resting",
	}, entry)

	if err := e.ledger.SaveEntry(ctx, entry); err != nil {
		slog.Error("ledger_save_failed", "ticker", jm.Ticker, "error", err)
	}

	msg := fmt.Sprintf("BUY %dx %s @ %d¢ (fair %d¢)", e.cfg.TradeSize, jm.Ticker, bid, jm.FairValueCents)
	slog.Info("order_placed",
		"action", "buy",
		"ticker", jm.Ticker,
		"price", bid,
		"count", e.cfg.TradeSize,
		"fair_value", jm.FairValueCents,
		"volatility", jm.Volatility,
		"order_id", resp.OrderID)
	e.events.Record("info", msg)
	e.notifier.Notify(ctx, jm.Ticker, msg)
	return true
}

func (e *Engine) sell(ctx context.Context, pos kalshi.Position, price int, reason string, res *TickResult) bool {
	req := kalshi.OrderRequest{
		Ticker:        pos.Ticker,
		ClientOrderID: e.newOrderID(),
		Side:          "yes",
		Action:        "sell",
		Count:         pos.Position,
		Type:          "limit",
		YesPrice:      price,
	}

	resp, err := e.exchange.CreateOrder(ctx, req)
	if err != nil {
		e.submissionError(reason, pos.Ticker, err, res)
		return false
	}

	e.tracker.RecordOrder(kalshi.Order{
		OrderID:  resp.OrderID,
		Ticker:   pos.Ticker,
		Side:     "yes",
		Action:   "sell",
		Count:    pos.Position,
		YesPrice: price,
		Status:   "resting",
	})

	msg := fmt.Sprintf("SELL %dx %s @ %d¢ (%s, avg %d¢)", pos.Position, pos.Ticker, price, reason, pos.AvgPrice)
	slog.Info("order_placed",
		"action", "sell",
		"reason", reason,
		"ticker", pos.Ticker,
		"price", price,
		"count", pos.Position,
		"avg_price", pos.AvgPrice,
		"order_id", resp.OrderID)
	severity := "info"
	if reason == "bailout" {
		severity = "warn"
	}
	e.events.Record(severity, msg)
	e.notifier.Notify(ctx, pos.Ticker, msg)
	return true
}

func (e *Engine) cancel(ctx context.Context, order kalshi.Order, res *TickResult) {
	if err := e.exchange.CancelOrder(ctx, order.OrderID); err != nil {
		e.submissionError("cancel", order.Ticker, err, res)
		return
	}

	e.tracker.ForgetOrder(order.Ticker)
	res.Cancels++

	slog.Info("order_canceled", "ticker", order.Ticker, "order_id", order.OrderID, "stale_price", order.YesPrice)
	e.events.Record("info", fmt.Sprintf("CANCEL %s stale bid @ %d¢", order.Ticker, order.YesPrice))
}

func (e *Engine) submissionError(action, ticker string, err error, res *TickResult) {
	res.Errors++
	if errors.Is(err, kalshi.ErrOrderRejected) {
		slog.Warn("order_rejected", "action", action, "ticker", ticker, "error", err)
		e.events.Record("warn", fmt.Sprintf("%s %s rejected: %v", action, ticker, err))
		return
	}
	slog.Error("order_failed", "action", action, "ticker", ticker, "error", err)
	e.events.Record("error", fmt.Sprintf("%s %s failed: %v", action, ticker, err))
}
