// Package kalshi provides a signed REST client and market-data feed for the
// Kalshi trade API.
package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAPIBase is the production trade API endpoint.
	DefaultAPIBase = "https://api.elections.kalshi.com/trade-api/v2"

	requestTimeout = 10 * time.Second
)

var (
	// ErrAuth indicates the exchange rejected the key, signature, or
	// timestamp. Fatal to the current tick's trading actions, not to the
	// process.
	ErrAuth = errors.New("kalshi: authentication rejected")

	// ErrOrderRejected indicates the exchange declined an order. No local
	// assumption is made about order state; the next portfolio poll
	// re-syncs.
	ErrOrderRejected = errors.New("kalshi: order rejected")
)

// APIError carries the status and body of a non-2xx exchange response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kalshi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client is a signed HTTP client for the Kalshi trade API.
type Client struct {
	baseURL   string
	basePath  string // path prefix included in the signed message
	accessKey string
	signer    *Signer
	http      *http.Client
	now       func() time.Time
}

// NewClient creates a Client. baseURL must include the /trade-api/v2 prefix.
func NewClient(baseURL, accessKey string, signer *Signer) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	basePath := ""
	if u, err := url.Parse(baseURL); err == nil {
		basePath = u.Path
	}

	return &Client{
		baseURL:   baseURL,
		basePath:  basePath,
		accessKey: accessKey,
		signer:    signer,
		http:      &http.Client{Timeout: requestTimeout},
		now:       time.Now,
	}
}

// Markets fetches open markets, optionally filtered by series ticker.
func (c *Client) Markets(ctx context.Context, seriesTicker string) ([]Market, error) {
	q := url.Values{}
	q.Set("status", "open")
	q.Set("limit", "1000")
	if seriesTicker != "" {
		q.Set("series_ticker", seriesTicker)
	}

	var resp marketsResponse
	if err := c.do(ctx, http.MethodGet, "/markets", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	return resp.Markets, nil
}

// Balance fetches the available balance in cents.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &resp); err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	return resp.Balance, nil
}

// Orders fetches orders, optionally filtered by status ("resting", ...).
func (c *Client) Orders(ctx context.Context, status string) ([]Order, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}

	var resp ordersResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/orders", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	return resp.Orders, nil
}

// Positions fetches market positions, optionally filtered by settlement
// status ("settled" for the realized history view).
func (c *Client) Positions(ctx context.Context, settlementStatus string) ([]Position, error) {
	var q url.Values
	if settlementStatus != "" {
		q = url.Values{"settlement_status": {settlementStatus}}
	}

	var resp positionsResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/positions", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return resp.MarketPositions, nil
}

// CreateOrder submits a limit order. A 4xx decline maps to ErrOrderRejected.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	var resp OrderResponse
	err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, req, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != http.StatusUnauthorized && apiErr.StatusCode != http.StatusForbidden {
			return OrderResponse{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		return OrderResponse{}, fmt.Errorf("create order: %w", err)
	}
	return resp, nil
}

// CancelOrder cancels a resting order. A 404 means the order is already
// gone, which is treated as success.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			slog.Debug("cancel_already_gone", "order_id", orderID)
			return nil
		}
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

// do performs a signed request. path is relative to the API base and
// headers are generated fresh per request; a stale timestamp beyond the
// exchange tolerance window comes back as ErrAuth.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	ts := c.now().UnixMilli()
	signature, err := c.signer.Sign(method, c.basePath+path, ts)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.accessKey)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", signature)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", strconv.FormatInt(ts, 10))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
