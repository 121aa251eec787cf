// Package odds fetches sportsbook moneylines and turns them into de-vigged
// fair values with a rolling volatility estimate.
package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const requestTimeout = 10 * time.Second

// Quota is the provider's request accounting, reported on every response.
type Quota struct {
	Used      int
	Remaining int
}

// Client fetches h2h odds from The Odds API v4.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	quotaMu sync.RWMutex
	quota   Quota
}

// NewClient creates a Client. baseURL should be the API root without the
// /v4 prefix.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Quota returns the most recently reported request quota.
func (c *Client) Quota() Quota {
	c.quotaMu.RLock()
	defer c.quotaMu.RUnlock()
	return c.quota
}

// Sports lists the provider's active sport keys.
func (c *Client) Sports(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/v4/sports", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch sports: %w", err)
	}

	var sports []apiSport
	if err := json.Unmarshal(body, &sports); err != nil {
		return nil, fmt.Errorf("decode sports: %w", err)
	}

	keys := make([]string, 0, len(sports))
	for _, s := range sports {
		if s.Active {
			keys = append(keys, s.Key)
		}
	}
	return keys, nil
}

// Events fetches h2h moneylines for one sport. Each returned event carries
// at most one quote per bookmaker, the most recently updated one. Quotes
// with malformed prices are dropped; the event itself survives as long as
// at least one bookmaker remains.
func (c *Client) Events(ctx context.Context, sportKey string) ([]Event, error) {
	q := url.Values{}
	q.Set("regions", "us")
	q.Set("markets", "h2h")
	q.Set("oddsFormat", "american")

	body, err := c.get(ctx, "/v4/sports/"+sportKey+"/odds", q)
	if err != nil {
		return nil, fmt.Errorf("fetch odds for %s: %w", sportKey, err)
	}

	var raw []apiEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode odds for %s: %w", sportKey, err)
	}

	events := make([]Event, 0, len(raw))
	for _, e := range raw {
		ev := Event{
			ID:           e.ID,
			SportKey:     e.SportKey,
			CommenceTime: e.CommenceTime,
			HomeTeam:     e.HomeTeam,
			AwayTeam:     e.AwayTeam,
		}

		latest := make(map[string]Quote)
		for _, bm := range e.Bookmakers {
			quote, ok := extractQuote(bm, e.HomeTeam, e.AwayTeam)
			if !ok {
				continue
			}
			if prev, seen := latest[bm.Key]; !seen || quote.LastUpdate.After(prev.LastUpdate) {
				latest[bm.Key] = quote
			}
		}
		for _, quote := range latest {
			ev.Quotes = append(ev.Quotes, quote)
		}

		events = append(events, ev)
	}

	return events, nil
}

// extractQuote pulls the h2h prices for both teams out of one bookmaker
// block. Returns false if either side is missing or the prices are not
// valid American odds.
func extractQuote(bm apiBookmaker, homeTeam, awayTeam string) (Quote, bool) {
	for _, m := range bm.Markets {
		if m.Key != "h2h" {
			continue
		}

		quote := Quote{Bookmaker: bm.Key, LastUpdate: bm.LastUpdate}
		var haveHome, haveAway bool
		for _, o := range m.Outcomes {
			switch o.Name {
			case homeTeam:
				quote.HomePrice = o.Price
				haveHome = true
			case awayTeam:
				quote.AwayPrice = o.Price
				haveAway = true
			}
		}

		if !haveHome || !haveAway {
			return Quote{}, false
		}
		if !validAmerican(quote.HomePrice) || !validAmerican(quote.AwayPrice) {
			slog.Debug("malformed_quote_dropped",
				"bookmaker", bm.Key,
				"home_price", quote.HomePrice,
				"away_price", quote.AwayPrice)
			return Quote{}, false
		}
		return quote, true
	}
	return Quote{}, false
}

// validAmerican rejects NaN, infinities, and magnitudes under 100, which
// American odds cannot take.
func validAmerican(price float64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	return price >= 100 || price <= -100
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.recordQuota(resp.Header)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func (c *Client) recordQuota(h http.Header) {
	used, err1 := strconv.Atoi(h.Get("x-requests-used"))
	remaining, err2 := strconv.Atoi(h.Get("x-requests-remaining"))
	if err1 != nil && err2 != nil {
		return
	}

	c.quotaMu.Lock()
	if err1 == nil {
		c.quota.Used = used
	}
	if err2 == nil {
		c.quota.Remaining = remaining
	}
	c.quotaMu.Unlock()
}
