// Package ui provides the operator terminal interface.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/match"
	"github.com/kalshiarb/engine/internal/session"
	"github.com/kalshiarb/engine/internal/strategy"
)

// DataSource is the read surface the UI refreshes from. All methods
// return copies; the UI never holds engine locks across a draw.
type DataSource interface {
	Joined() []match.JoinedMarket
	Positions() []kalshi.Position
	MarketBook() map[string]kalshi.Market
	Settled() []kalshi.Position
	Events() []session.LogEntry
	Stats() session.StatsSnapshot
}

// Controls is the small mutation surface the keyboard exposes.
type Controls struct {
	Engine    *strategy.Engine
	Scheduler *session.Scheduler
	Normal    time.Duration
	Turbo     time.Duration
}

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	scanner   *ScannerView
	positions *PositionsView
	eventLog  *EventLogView
	footer    *FooterView

	source      DataSource
	controls    Controls
	refreshRate time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI over a data source and control surface.
func NewApp(source DataSource, controls Controls, refreshRate time.Duration) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:         tview.NewApplication(),
		scanner:     NewScannerView(),
		positions:   NewPositionsView(),
		eventLog:    NewEventLogView(),
		footer:      NewFooterView(),
		source:      source,
		controls:    controls,
		refreshRate: refreshRate,
		ctx:         ctx,
		cancel:      cancel,
	}

	a.setupLayout()
	a.setupKeyboard()
	return a
}

// setupLayout builds the 3-row layout: scanner on top, positions and the
// event log side by side, stats footer at the bottom.
func (a *App) setupLayout() {
	middleRow := tview.NewFlex().
		AddItem(a.positions.Widget(), 0, 1, false).
		AddItem(a.eventLog.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.scanner.Widget(), 0, 3, false).
		AddItem(middleRow, 0, 2, false).
		AddItem(a.footer.Widget(), 3, 0, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard wires the toggles: b auto-bid, c auto-close, t turbo,
// q/Ctrl-C quit.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'b', 'B':
				a.controls.Engine.SetAutoBid(!a.controls.Engine.AutoBid())
				a.refresh()
				return nil
			case 'c', 'C':
				a.controls.Engine.SetAutoClose(!a.controls.Engine.AutoClose())
				a.refresh()
				return nil
			case 't', 'T':
				a.toggleTurbo()
				a.refresh()
				return nil
			}
		}
		return event
	})
}

func (a *App) toggleTurbo() {
	if a.controls.Scheduler.Interval() == a.controls.Turbo {
		a.controls.Scheduler.SetInterval(a.controls.Normal)
	} else {
		a.controls.Scheduler.SetInterval(a.controls.Turbo)
	}
}

// Run starts the TUI (blocking).
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// updateLoop refreshes all views on the configured cadence.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.draw)
		}
	}
}

func (a *App) refresh() {
	a.app.QueueUpdateDraw(a.draw)
}

func (a *App) draw() {
	a.scanner.Update(a.source.Joined())
	a.positions.Update(a.source.Positions(), a.source.MarketBook())
	a.eventLog.Update(a.source.Events())

	var realized int64
	for _, p := range a.source.Settled() {
		realized += int64(p.RealizedPnl)
	}
	a.footer.Update(a.source.Stats(), realized, footerToggles{
		AutoBid:   a.controls.Engine.AutoBid(),
		AutoClose: a.controls.Engine.AutoClose(),
		Turbo:     a.controls.Scheduler.Interval() == a.controls.Turbo,
	})
}
