// Package alpaca implements the domain.Broker capability against the Alpaca
// REST API (v2). Trading endpoints live on the base URL, market data on the
// separate data URL.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Client is the REST client for the Alpaca brokerage API.
type Client struct {
	baseURL    string
	dataURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// Config holds the client parameters.
type Config struct {
	BaseURL   string // e.g. "https://paper-api.alpaca.markets"
	DataURL   string // e.g. "https://data.alpaca.markets"
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// NewClient creates a new Alpaca REST client. The timeout bounds every single
// request; zero falls back to 10 seconds.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:   strings.TrimRight(cfg.DataURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetClock returns the market clock.
func (c *Client) GetClock(ctx context.Context) (domain.Clock, error) {
	var resp clockResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/clock", nil, &resp); err != nil {
		return domain.Clock{}, fmt.Errorf("alpaca: get clock: %w", err)
	}
	return domain.Clock{
		IsOpen:    resp.IsOpen,
		Timestamp: resp.Timestamp,
		NextOpen:  resp.NextOpen,
		NextClose: resp.NextClose,
	}, nil
}

// GetAccount returns equity and buying power for the trading account.
func (c *Client) GetAccount(ctx context.Context) (domain.Account, error) {
	var resp accountResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, &resp); err != nil {
		return domain.Account{}, fmt.Errorf("alpaca: get account: %w", err)
	}
	equity, err := strconv.ParseFloat(resp.Equity, 64)
	if err != nil {
		return domain.Account{}, fmt.Errorf("alpaca: parse equity %q: %w", resp.Equity, err)
	}
	buyingPower, err := strconv.ParseFloat(resp.BuyingPower, 64)
	if err != nil {
		return domain.Account{}, fmt.Errorf("alpaca: parse buying power %q: %w", resp.BuyingPower, err)
	}
	return domain.Account{Equity: equity, BuyingPower: buyingPower}, nil
}

// ListPositions returns all open positions.
func (c *Client) ListPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	var resp []positionResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("alpaca: list positions: %w", err)
	}
	positions := make([]domain.BrokerPosition, 0, len(resp))
	for _, p := range resp {
		qty, err := strconv.ParseInt(p.Qty, 10, 64)
		if err != nil {
			// Fractional positions round toward zero.
			f, ferr := strconv.ParseFloat(p.Qty, 64)
			if ferr != nil {
				return nil, fmt.Errorf("alpaca: parse position qty %q: %w", p.Qty, err)
			}
			qty = int64(f)
		}
		positions = append(positions, domain.BrokerPosition{Symbol: p.Symbol, Qty: qty})
	}
	return positions, nil
}

// GetLatestTrade returns the most recent trade print for symbol.
func (c *Client) GetLatestTrade(ctx context.Context, symbol string) (domain.LatestTrade, error) {
	u := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", c.dataURL, url.PathEscape(symbol))
	var resp latestTradeResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return domain.LatestTrade{}, fmt.Errorf("alpaca: latest trade %s: %w", symbol, err)
	}
	if resp.Trade.Price <= 0 {
		return domain.LatestTrade{}, fmt.Errorf("alpaca: latest trade %s: %w", symbol, domain.ErrUnavailable)
	}
	return domain.LatestTrade{
		Price:     resp.Trade.Price,
		Timestamp: resp.Trade.Timestamp,
	}, nil
}

// GetBars returns up to limit bars for symbol at the given timeframe
// (e.g. "1Day"), most recent last.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	params := url.Values{}
	params.Set("timeframe", timeframe)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataURL, url.PathEscape(symbol), params.Encode())

	var resp barsResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("alpaca: get bars %s: %w", symbol, err)
	}
	bars := make([]domain.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		bars = append(bars, domain.Bar{Timestamp: b.Timestamp, Close: b.Close})
	}
	return bars, nil
}

// SubmitOrder places an order and returns the broker-assigned order id.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	if req.Qty <= 0 {
		return "", fmt.Errorf("alpaca: submit order %s: %w", req.Symbol, domain.ErrInvalidOrder)
	}
	body := orderRequest{
		Symbol:      req.Symbol,
		Qty:         strconv.FormatInt(req.Qty, 10),
		Side:        string(req.Side),
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
	}
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v2/orders", body, &resp); err != nil {
		return "", fmt.Errorf("alpaca: submit order %s: %w", req.Symbol, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("alpaca: submit order %s: empty order id", req.Symbol)
	}
	return resp.ID, nil
}

// GetOrder fetches the current state of a previously submitted order.
func (c *Client) GetOrder(ctx context.Context, id string) (domain.BrokerOrder, error) {
	u := fmt.Sprintf("%s/v2/orders/%s", c.baseURL, url.PathEscape(id))
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return domain.BrokerOrder{}, fmt.Errorf("alpaca: get order %s: %w", id, err)
	}

	order := domain.BrokerOrder{
		ID:     resp.ID,
		Status: resp.Status,
	}
	if resp.FilledAvgPrice != nil {
		if price, err := strconv.ParseFloat(*resp.FilledAvgPrice, 64); err == nil {
			order.FilledAvgPrice = price
		}
	}
	if resp.FilledAt != nil {
		order.FilledAt = *resp.FilledAt
	}
	return order, nil
}

// AccountType labels the account from the base URL, matching how the
// dashboard distinguishes paper from live trading.
func (c *Client) AccountType() string {
	if strings.Contains(c.baseURL, "paper") {
		return "Paper"
	}
	return "Live"
}

// doJSON performs an authenticated request and decodes the JSON response into
// out. A non-2xx status is returned as an error with a truncated body excerpt.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(excerpt))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Broker = (*Client)(nil)
