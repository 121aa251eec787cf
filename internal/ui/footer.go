package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/kalshiarb/engine/internal/session"
)

// footerToggles carries the live toggle states for display.
type footerToggles struct {
	AutoBid   bool
	AutoClose bool
	Turbo     bool
}

// FooterView is the one-line session stats bar.
type FooterView struct {
	view *tview.TextView
}

// NewFooterView creates the footer.
func NewFooterView() *FooterView {
	view := tview.NewTextView().SetDynamicColors(true)
	view.SetBorder(true)
	return &FooterView{view: view}
}

// Widget returns the tview primitive.
func (v *FooterView) Widget() tview.Primitive {
	return v.view
}

// Update rewrites the stats line. realizedCents is the settled-history
// P&L total.
func (v *FooterView) Update(s session.StatsSnapshot, realizedCents int64, t footerToggles) {
	uptime := time.Since(s.StartTime).Round(time.Second)

	v.view.SetText(fmt.Sprintf(
		" $%.2f | realized $%.2f | up %s | ticks %d | buys %d sells %d bailouts %d | errs %d | quota %d | %s %s %s  [gray](b/c/t toggle, q quit)[-]",
		float64(s.BalanceCents)/100,
		float64(realizedCents)/100,
		uptime,
		s.Ticks,
		s.Buys, s.Sells, s.Bailouts,
		s.Errors,
		s.QuotaRemain,
		toggleLabel("BID", t.AutoBid),
		toggleLabel("CLOSE", t.AutoClose),
		toggleLabel("TURBO", t.Turbo),
	))
}

func toggleLabel(name string, on bool) string {
	if on {
		return "[green]" + name + "[-]"
	}
	return "[gray]" + name + "[-]"
}

// setHeaders writes a header row in the shared table style.
func setHeaders(table *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false).
			SetExpansion(1)
		table.SetCell(0, col, cell)
	}
}

// formatTimeAgo renders a short relative age for table cells.
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
