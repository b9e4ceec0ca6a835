package alpaca

import "time"

// clockResponse is the /v2/clock payload.
type clockResponse struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// accountResponse is the /v2/account payload. Monetary fields arrive as
// strings.
type accountResponse struct {
	Equity      string `json:"equity"`
	BuyingPower string `json:"buying_power"`
	Status      string `json:"status"`
}

// positionResponse is one element of the /v2/positions payload.
type positionResponse struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
}

// latestTradeResponse is the /v2/stocks/{symbol}/trades/latest payload.
type latestTradeResponse struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price     float64   `json:"p"`
		Timestamp time.Time `json:"t"`
	} `json:"trade"`
}

// barsResponse is the /v2/stocks/{symbol}/bars payload.
type barsResponse struct {
	Symbol string `json:"symbol"`
	Bars   []struct {
		Timestamp time.Time `json:"t"`
		Close     float64   `json:"c"`
	} `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

// orderResponse is the order payload returned by POST /v2/orders and
// GET /v2/orders/{id}.
type orderResponse struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Qty            string     `json:"qty"`
	Side           string     `json:"side"`
	Status         string     `json:"status"`
	FilledAvgPrice *string    `json:"filled_avg_price"`
	FilledAt       *time.Time `json:"filled_at"`
	SubmittedAt    time.Time  `json:"submitted_at"`
}

// orderRequest is the POST /v2/orders body.
type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}
