package ui

import (
	"fmt"
	"sort"

	"github.com/rivo/tview"

	"github.com/kalshiarb/engine/internal/kalshi"
)

var positionHeaders = []string{"Ticker", "Count", "Avg", "Bid", "P&L"}

// PositionsView displays held positions with unrealized P&L marked to the
// current bid.
type PositionsView struct {
	table *tview.Table
}

// NewPositionsView creates the positions table.
func NewPositionsView() *PositionsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Positions ").SetBorder(true)
	setHeaders(table, positionHeaders)

	return &PositionsView{table: table}
}

// Widget returns the tview primitive.
func (v *PositionsView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the table. book supplies the current bid per ticker;
// a ticker missing from the book shows no mark.
func (v *PositionsView) Update(positions []kalshi.Position, book map[string]kalshi.Market) {
	v.table.Clear()
	setHeaders(v.table, positionHeaders)

	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })

	for i, p := range positions {
		row := i + 1

		bid, pnl := "-", "-"
		if m, ok := book[p.Ticker]; ok {
			bid = fmt.Sprintf("%d¢", m.YesBid)
			pnl = fmt.Sprintf("%+d¢", (m.YesBid-p.AvgPrice)*p.Position)
		}

		cells := []string{
			p.Ticker,
			fmt.Sprintf("%d", p.Position),
			fmt.Sprintf("%d¢", p.AvgPrice),
			bid,
			pnl,
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft).
				SetExpansion(1)
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Positions (%d) ", len(positions)))
}
