// Package store persists the trade ledger so bail-out age checks survive
// restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalshiarb/engine/internal/portfolio"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_history (
	ticker           TEXT PRIMARY KEY,
	event_label      TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT 'auto',
	fair_value_cents INTEGER NOT NULL,
	bid_price_cents  INTEGER NOT NULL,
	order_placed_at  TIMESTAMP NOT NULL,
	odds_time        TIMESTAMP NOT NULL
);
`

// Store is a SQLite-backed trade ledger. A single writer is assumed; the
// engine serializes writes through the tick loop.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadLedger reads all persisted trade entries, keyed by ticker.
func (s *Store) LoadLedger(ctx context.Context) (map[string]portfolio.TradeHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, event_label, source, fair_value_cents, bid_price_cents, order_placed_at, odds_time
		FROM trade_history`)
	if err != nil {
		return nil, fmt.Errorf("query trade history: %w", err)
	}
	defer rows.Close()

	ledger := make(map[string]portfolio.TradeHistoryEntry)
	for rows.Next() {
		var e portfolio.TradeHistoryEntry
		var placedAt, oddsTime string
		if err := rows.Scan(&e.Ticker, &e.EventLabel, &e.Source, &e.FairValueCents, &e.BidPriceCents, &placedAt, &oddsTime); err != nil {
			return nil, fmt.Errorf("scan trade history row: %w", err)
		}
		if e.OrderPlacedAt, err = parseTimestamp(placedAt); err != nil {
			return nil, fmt.Errorf("parse order_placed_at for %s: %w", e.Ticker, err)
		}
		if e.OddsTime, err = parseTimestamp(oddsTime); err != nil {
			return nil, fmt.Errorf("parse odds_time for %s: %w", e.Ticker, err)
		}
		ledger[e.Ticker] = e
	}
	return ledger, rows.Err()
}

// SaveEntry upserts one trade entry.
func (s *Store) SaveEntry(ctx context.Context, e portfolio.TradeHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_history (ticker, event_label, source, fair_value_cents, bid_price_cents, order_placed_at, odds_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			event_label = excluded.event_label,
			source = excluded.source,
			fair_value_cents = excluded.fair_value_cents,
			bid_price_cents = excluded.bid_price_cents,
			order_placed_at = excluded.order_placed_at,
			odds_time = excluded.odds_time`,
		e.Ticker, e.EventLabel, e.Source, e.FairValueCents, e.BidPriceCents,
		e.OrderPlacedAt.UTC().Format(time.RFC3339Nano), e.OddsTime.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save trade entry for %s: %w", e.Ticker, err)
	}
	return nil
}

// DeleteEntry removes the entry for a ticker whose position has closed.
func (s *Store) DeleteEntry(ctx context.Context, ticker string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trade_history WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("delete trade entry for %s: %w", ticker, err)
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
