// Package yahooq implements the historical-close fallback against the Yahoo
// Finance chart API. It is consulted when the market is closed or when a live
// quote cannot be fetched.
package yahooq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Client fetches daily closes from the chart endpoint.
type Client struct {
	baseURL    string
	rangeDays  int
	httpClient *http.Client
}

// NewClient creates a fallback quote client. rangeDays controls how far back
// the chart request looks for the latest close; zero falls back to 5 days.
func NewClient(baseURL string, rangeDays int, timeout time.Duration) *Client {
	if rangeDays <= 0 {
		rangeDays = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		rangeDays: rangeDays,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chartResponse is the subset of the chart payload we read: the daily close
// series. Closed-market days appear as nulls.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// RecentClose returns the most recent non-null daily close for symbol,
// rounded to cents. It returns domain.ErrUnavailable when the series is empty.
func (c *Client) RecentClose(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%dd&interval=1d",
		c.baseURL, url.PathEscape(symbol), c.rangeDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("yahooq: create request: %w", err)
	}
	req.Header.Set("User-Agent", "tickerbot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("yahooq: recent close %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("yahooq: recent close %s: status %d: %s", symbol, resp.StatusCode, string(excerpt))
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return 0, fmt.Errorf("yahooq: decode chart %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return 0, fmt.Errorf("yahooq: chart %s: %s", symbol, chart.Chart.Error.Description)
	}

	for _, result := range chart.Chart.Result {
		for _, q := range result.Indicators.Quote {
			// Walk backwards to the latest non-null close.
			for i := len(q.Close) - 1; i >= 0; i-- {
				if q.Close[i] != nil && *q.Close[i] > 0 {
					return math.Round(*q.Close[i]*100) / 100, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("yahooq: recent close %s: %w", symbol, domain.ErrUnavailable)
}

// Compile-time interface check.
var _ domain.CloseProvider = (*Client)(nil)
