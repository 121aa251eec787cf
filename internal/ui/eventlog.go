package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/kalshiarb/engine/internal/session"
)

// EventLogView displays the session's trade event log, newest at the
// bottom.
type EventLogView struct {
	view *tview.TextView
}

// NewEventLogView creates the log pane.
func NewEventLogView() *EventLogView {
	view := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)

	view.SetTitle(" Events ").SetBorder(true)

	return &EventLogView{view: view}
}

// Widget returns the tview primitive.
func (v *EventLogView) Widget() tview.Primitive {
	return v.view
}

// Update rewrites the pane from the log snapshot.
func (v *EventLogView) Update(entries []session.LogEntry) {
	var b strings.Builder
	for _, e := range entries {
		color := "white"
		switch e.Severity {
		case "warn":
			color = "yellow"
		case "error":
			color = "red"
		}
		fmt.Fprintf(&b, "[gray]%s[-] [%s]%s[-]\n", e.Time.Format("15:04:05"), color, tview.Escape(e.Message))
	}
	v.view.SetText(b.String())
	v.view.ScrollToEnd()
}
