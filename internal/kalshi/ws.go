package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Reconnection and heartbeat tuning.
const (
	initialBackoff   = 1 * time.Second
	maxBackoff       = 60 * time.Second
	backoffFactor    = 2.0
	jitterPercent    = 0.2
	heartbeatTimeout = 60 * time.Second
	pongTimeout      = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// QuoteUpdate is a live top-of-book change for one ticker.
type QuoteUpdate struct {
	Ticker string
	YesBid int
	YesAsk int
	Volume int64
}

// tickerMessage is the wire shape of a ticker channel message.
type tickerMessage struct {
	Type string `json:"type"`
	Msg  struct {
		MarketTicker string `json:"market_ticker"`
		YesBid       int    `json:"yes_bid"`
		YesAsk       int    `json:"yes_ask"`
		Volume       int64  `json:"volume"`
	} `json:"msg"`
}

// TickerFeed maintains an authenticated WebSocket subscription to the
// ticker channel and pushes quote updates between REST polls. The feed is
// display freshness only; strategy decisions always run off a per-tick
// snapshot.
type TickerFeed struct {
	url       string
	accessKey string
	signer    *Signer
	updates   chan QuoteUpdate

	conn      *websocket.Conn
	connMu    sync.Mutex
	backoff   time.Duration
	lastMsg   time.Time
	lastMsgMu sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup

	tickers   []string
	tickersMu sync.RWMutex

	nextCmdID int // guarded by connMu
}

// NewTickerFeed creates a feed. Updates are delivered on Updates().
func NewTickerFeed(url, accessKey string, signer *Signer) *TickerFeed {
	return &TickerFeed{
		url:       url,
		accessKey: accessKey,
		signer:    signer,
		updates:   make(chan QuoteUpdate, 256),
		backoff:   initialBackoff,
		stopChan:  make(chan struct{}),
	}
}

// Updates returns the quote update channel.
func (f *TickerFeed) Updates() <-chan QuoteUpdate {
	return f.updates
}

// SetTickers sets the market tickers to subscribe to. When the set changes
// and a connection is live, a fresh subscribe is sent immediately; otherwise
// the new set takes effect on the next (re)connect.
func (f *TickerFeed) SetTickers(tickers []string) {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	f.tickersMu.Lock()
	if slices.Equal(sorted, f.tickers) {
		f.tickersMu.Unlock()
		return
	}
	f.tickers = sorted
	f.tickersMu.Unlock()

	if err := f.subscribe(); err != nil {
		// No live connection, or the write failed; connect() resubscribes
		// with the stored set on the next dial.
		slog.Debug("ws_resubscribe_deferred", "error", err)
	}
}

// Start begins the feed with automatic reconnection.
func (f *TickerFeed) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.runLoop(ctx)

	f.wg.Add(1)
	go f.heartbeatMonitor(ctx)
}

// Stop gracefully shuts down the feed.
func (f *TickerFeed) Stop() {
	close(f.stopChan)
	f.closeConnection()
	f.wg.Wait()
}

func (f *TickerFeed) runLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ws_loop_stopping", "reason", "context cancelled")
			return
		case <-f.stopChan:
			slog.Info("ws_loop_stopping", "reason", "stop signal")
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			slog.Error("ws_connect_failed", "error", err, "backoff", f.backoff)
			f.waitBackoff(ctx)
			continue
		}

		if err := f.readLoop(ctx); err != nil {
			slog.Warn("ws_read_error", "error", err)
		}

		f.closeConnection()

		select {
		case <-ctx.Done():
			return
		case <-f.stopChan:
			return
		default:
			f.waitBackoff(ctx)
		}
	}
}

// connect dials with fresh auth headers and subscribes to the ticker channel.
func (f *TickerFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// The WS handshake is authenticated the same way as REST, signing the
	// upgrade path.
	ts := time.Now().UnixMilli()
	signature, err := f.signer.Sign(http.MethodGet, "/trade-api/ws/v2", ts)
	if err != nil {
		return fmt.Errorf("sign handshake: %w", err)
	}

	headers := http.Header{}
	headers.Set("KALSHI-ACCESS-KEY", f.accessKey)
	headers.Set("KALSHI-ACCESS-SIGNATURE", signature)
	headers.Set("KALSHI-ACCESS-TIMESTAMP", strconv.FormatInt(ts, 10))

	conn, resp, err := dialer.DialContext(ctx, f.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	// Reset backoff on successful connection
	f.backoff = initialBackoff

	slog.Info("ws_connected", "endpoint", f.url)

	if err := f.subscribe(); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	f.updateLastMsg()
	return nil
}

func (f *TickerFeed) subscribe() error {
	f.tickersMu.RLock()
	tickers := f.tickers
	f.tickersMu.RUnlock()

	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	f.nextCmdID++
	msg := map[string]any{
		"id":  f.nextCmdID,
		"cmd": "subscribe",
		"params": map[string]any{
			"channels":       []string{"ticker"},
			"market_tickers": tickers,
		},
	}

	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := f.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	slog.Info("ws_subscribed", "channel", "ticker", "ticker_count", len(tickers))
	return nil
}

func (f *TickerFeed) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.stopChan:
			return nil
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		conn.SetReadDeadline(time.Now().Add(heartbeatTimeout + pongTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		f.updateLastMsg()
		f.handleMessage(message)
	}
}

func (f *TickerFeed) handleMessage(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("ws_parse_error", "error", err)
		return
	}

	if msg.Type != "ticker" || msg.Msg.MarketTicker == "" {
		slog.Debug("ws_message", "type", msg.Type)
		return
	}

	update := QuoteUpdate{
		Ticker: msg.Msg.MarketTicker,
		YesBid: msg.Msg.YesBid,
		YesAsk: msg.Msg.YesAsk,
		Volume: msg.Msg.Volume,
	}

	select {
	case f.updates <- update:
	default:
		slog.Warn("quote_channel_full", "dropped_ticker", update.Ticker)
	}
}

func (f *TickerFeed) heartbeatMonitor(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopChan:
			return
		case <-ticker.C:
			f.checkHeartbeat()
		}
	}
}

func (f *TickerFeed) checkHeartbeat() {
	f.lastMsgMu.RLock()
	lastMsg := f.lastMsg
	f.lastMsgMu.RUnlock()

	if lastMsg.IsZero() {
		return
	}

	elapsed := time.Since(lastMsg)
	if elapsed > heartbeatTimeout {
		slog.Warn("ws_heartbeat_timeout", "elapsed", elapsed)

		// The write must happen under connMu; gorilla/websocket forbids
		// concurrent writers and subscribe() can fire at any time.
		f.connMu.Lock()
		var pingErr error
		if f.conn != nil {
			f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			pingErr = f.conn.WriteMessage(websocket.PingMessage, nil)
		}
		f.connMu.Unlock()

		if pingErr != nil {
			slog.Warn("ws_ping_failed", "error", pingErr)
			f.closeConnection()
		}
	}
}

func (f *TickerFeed) updateLastMsg() {
	f.lastMsgMu.Lock()
	f.lastMsg = time.Now()
	f.lastMsgMu.Unlock()
}

func (f *TickerFeed) closeConnection() {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
		slog.Info("ws_disconnected")
	}
}

func (f *TickerFeed) waitBackoff(ctx context.Context) {
	jitter := time.Duration(float64(f.backoff) * jitterPercent * (rand.Float64()*2 - 1))
	wait := f.backoff + jitter

	slog.Debug("ws_waiting_backoff", "duration", wait)

	select {
	case <-ctx.Done():
	case <-f.stopChan:
	case <-time.After(wait):
	}

	f.backoff = time.Duration(float64(f.backoff) * backoffFactor)
	if f.backoff > maxBackoff {
		f.backoff = maxBackoff
	}
}
