package kalshi

import "time"

// Market is one tradable binary contract from the markets endpoint.
// Prices are integer cents (0-100). The latest snapshot fully replaces
// the previous one for a ticker; fields are never diffed individually.
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	NoBid        int    `json:"no_bid"`
	NoAsk        int    `json:"no_ask"`
	Volume       int64  `json:"volume"`
	OpenInterest int64  `json:"open_interest"`
	Status       string `json:"status"`
}

// Order is a resting or historical order from the portfolio endpoints.
type Order struct {
	OrderID        string    `json:"order_id"`
	ClientOrderID  string    `json:"client_order_id"`
	Ticker         string    `json:"ticker"`
	Side           string    `json:"side"`   // "yes" | "no"
	Action         string    `json:"action"` // "buy" | "sell"
	Count          int       `json:"count"`
	FillCount      int       `json:"fill_count"`
	RemainingCount int       `json:"remaining_count"`
	YesPrice       int       `json:"yes_price"`
	NoPrice        int       `json:"no_price"`
	Status         string    `json:"status"` // "resting" | "filled" | "canceled"
	CreatedTime    time.Time `json:"created_time"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// Position is one row from the market positions endpoint. The exchange is
// authoritative: Position (contract count) and the cost fields are taken
// as-is, never derived locally.
type Position struct {
	Ticker           string `json:"ticker"`
	Position         int    `json:"position"`
	AvgPrice         int    `json:"avg_price"`
	TotalCost        int    `json:"total_cost"`
	FeesPaid         int    `json:"fees_paid"`
	RealizedPnl      int    `json:"realized_pnl"`
	SettlementStatus string `json:"settlement_status"` // "unsettled" | "settled"
}

// OrderRequest is the body for POST /portfolio/orders.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Type          string `json:"type"` // "limit"
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
}

// OrderResponse is the exchange's acknowledgement of a placed order.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Response envelopes.
type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
	Cursor string  `json:"cursor"`
}

type positionsResponse struct {
	MarketPositions []Position `json:"market_positions"`
	Cursor          string     `json:"cursor"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"` // cents
}
