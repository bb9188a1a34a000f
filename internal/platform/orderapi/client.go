// Package orderapi is the REST client for the remote Order API, the
// authoritative source of order state the engine diffs against.
package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// Client is the REST client for the Order API.
type Client struct {
	baseURL      string
	apiKey       string
	historyLimit int
	httpClient   *http.Client
}

// NewClient creates a new Order API client.
//
// baseURL is the API root, e.g. "https://api.example.com/api". historyLimit
// bounds the recent-history window fetched alongside the active set.
func NewClient(baseURL, apiKey string, historyLimit int, timeout time.Duration) *Client {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		historyLimit: historyLimit,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// GetActiveOrders returns the current active working set.
func (c *Client) GetActiveOrders(ctx context.Context) ([]domain.OrderSnapshot, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/orders/active", nil)
	if err != nil {
		return nil, fmt.Errorf("orderapi: get active orders: %w", err)
	}
	return decodeOrders(body)
}

// GetRecentOrders returns the bounded recent-history window, so that
// cancellations and deliveries that just left the active set are still
// observable.
func (c *Client) GetRecentOrders(ctx context.Context) ([]domain.OrderSnapshot, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.historyLimit))

	body, err := c.doRequest(ctx, http.MethodGet, "/orders/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("orderapi: get recent orders: %w", err)
	}
	return decodeOrders(body)
}

// FetchWorkingSet issues the active and recent-history calls as one atomic
// unit: if either fails, the whole fetch fails and the caller aborts the
// cycle with no mutation. A partial view would let stale history entries
// masquerade as never seen.
func (c *Client) FetchWorkingSet(ctx context.Context) ([]domain.OrderSnapshot, error) {
	active, err := c.GetActiveOrders(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := c.GetRecentOrders(ctx)
	if err != nil {
		return nil, err
	}

	// Merge, active set winning on overlap.
	seen := make(map[string]bool, len(active))
	out := make([]domain.OrderSnapshot, 0, len(active)+len(recent))
	for _, s := range active {
		if s.OrderID == "" || seen[s.OrderID] {
			continue
		}
		seen[s.OrderID] = true
		out = append(out, s)
	}
	for _, s := range recent {
		if s.OrderID == "" || seen[s.OrderID] {
			continue
		}
		seen[s.OrderID] = true
		out = append(out, s)
	}
	return out, nil
}

// Heartbeat posts a fire-and-forget liveness ping for the courier session.
func (c *Client) Heartbeat(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/couriers/heartbeat", nil); err != nil {
		return fmt.Errorf("orderapi: heartbeat: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(data, 256))
	}
	return data, nil
}

func decodeOrders(body []byte) ([]domain.OrderSnapshot, error) {
	var resp struct {
		Orders []wireOrder `json:"orders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("orderapi: decode orders: %w", err)
	}
	out := make([]domain.OrderSnapshot, 0, len(resp.Orders))
	for _, w := range resp.Orders {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
