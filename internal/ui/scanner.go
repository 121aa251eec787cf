package ui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/kalshiarb/engine/internal/match"
)

var scannerHeaders = []string{"Ticker", "Event", "Fair", "Bid", "Ask", "Edge", "Vol", "Odds Age"}

// ScannerView displays the joined markets with their fair values.
type ScannerView struct {
	table *tview.Table
}

// NewScannerView creates the scanner table.
func NewScannerView() *ScannerView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Scanner ").SetBorder(true)
	setHeaders(table, scannerHeaders)

	return &ScannerView{table: table}
}

// Widget returns the tview primitive.
func (v *ScannerView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the table from the latest join result.
func (v *ScannerView) Update(joined []match.JoinedMarket) {
	v.table.Clear()
	setHeaders(v.table, scannerHeaders)

	for i, jm := range joined {
		row := i + 1

		label := jm.EventLabel
		if len(label) > 36 {
			label = label[:33] + "..."
		}

		cells := []string{
			jm.Ticker,
			label,
			fmt.Sprintf("%d¢", jm.FairValueCents),
			fmt.Sprintf("%d¢", jm.YesBid),
			fmt.Sprintf("%d¢", jm.YesAsk),
			fmt.Sprintf("%+d¢", jm.FairValueCents-jm.YesAsk),
			fmt.Sprintf("%.1f", jm.Volatility),
			formatTimeAgo(jm.OddsTime),
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft).
				SetExpansion(1)
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Scanner (%d matched) ", len(joined)))
}
