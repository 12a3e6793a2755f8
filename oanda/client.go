// Package oanda downloads historical candles from the OANDA v20 REST API
// and turns them into bar tables.
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/barsim/market"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"

	// MaxCount is the most candles one request may return.
	MaxCount = 5000
)

// Granularity represents the time frame for candles
type Granularity string

const (
	M1  Granularity = "M1"  // 1 minute
	M5  Granularity = "M5"  // 5 minutes
	M15 Granularity = "M15" // 15 minutes
	M30 Granularity = "M30" // 30 minutes
	H1  Granularity = "H1"  // 1 hour
	H4  Granularity = "H4"  // 4 hours
	D   Granularity = "D"   // 1 day
	W   Granularity = "W"   // 1 week
)

var granularities = map[string]Granularity{
	"M1": M1, "M5": M5, "M15": M15, "M30": M30, "H1": H1, "H4": H4, "D": D, "W": W,
}

// ParseGranularity accepts the OANDA names, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g, ok := granularities[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("oanda: unsupported granularity %q", s)
	}
	return g, nil
}

// PriceComponent represents the price component for candles
type PriceComponent string

const (
	MidPrice PriceComponent = "M" // Midpoint candles
	BidPrice PriceComponent = "B" // Bid candles
	AskPrice PriceComponent = "A" // Ask candles
)

// Client represents an OANDA API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new OANDA API client
func NewClient(token string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}
	return NewClientWithURL(token, baseURL)
}

// NewClientWithURL points the client at baseURL, e.g. a test server.
func NewClientWithURL(token, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string         // Required: e.g. "EUR_USD"
	Price       PriceComponent // default: MidPrice
	Granularity Granularity    // default: H1
	Count       int            // at most MaxCount
	From        time.Time      // zero means the latest candles
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
	Bid      *candleData `json:"bid,omitempty"`
	Ask      *candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches one page of completed candles as bars.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.Bar, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("oanda: instrument is required")
	}
	if req.Price == "" {
		req.Price = MidPrice
	}
	if req.Granularity == "" {
		req.Granularity = H1
	}
	if req.Count > MaxCount {
		return nil, fmt.Errorf("oanda: count cannot exceed %d", MaxCount)
	}

	params := url.Values{}
	params.Set("price", string(req.Price))
	params.Set("granularity", string(req.Granularity))
	if req.Count > 0 {
		params.Set("count", strconv.Itoa(req.Count))
	}
	if !req.From.IsZero() {
		params.Set("from", req.From.UTC().Format(time.RFC3339Nano))
	}

	apiURL := fmt.Sprintf("%s/v3/instruments/%s/candles?%s", c.baseURL, url.PathEscape(req.Instrument), params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("oanda: API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	bars := make([]market.Bar, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		// The last candle of the latest page is usually still forming.
		if !ac.Complete {
			continue
		}
		b, err := toBar(ac, req.Price)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func toBar(ac apiCandle, price PriceComponent) (market.Bar, error) {
	t, err := time.Parse(time.RFC3339Nano, ac.Time)
	if err != nil {
		return market.Bar{}, fmt.Errorf("oanda: parse time %q: %w", ac.Time, err)
	}

	var d *candleData
	switch price {
	case BidPrice:
		d = ac.Bid
	case AskPrice:
		d = ac.Ask
	default:
		d = ac.Mid
	}
	if d == nil {
		return market.Bar{}, fmt.Errorf("oanda: candle %s has no %q prices", ac.Time, price)
	}

	var ohlc [4]float64
	for i, s := range []string{d.O, d.H, d.L, d.C} {
		if ohlc[i], err = strconv.ParseFloat(s, 64); err != nil {
			return market.Bar{}, fmt.Errorf("oanda: candle %s: bad price %q", ac.Time, s)
		}
	}
	return market.Bar{
		Time:   t.UTC(),
		Open:   ohlc[0],
		High:   ohlc[1],
		Low:    ohlc[2],
		Close:  ohlc[3],
		Volume: float64(ac.Volume),
	}, nil
}

// FetchRequest asks for every completed candle in [From, To).
type FetchRequest struct {
	Instrument  string
	Price       PriceComponent
	Granularity Granularity
	From        time.Time
	To          time.Time

	// OnPage, when set, is called with the number of bars kept from each page.
	OnPage func(kept int)
}

// FetchBars pages through the candles in the range and returns them as a
// validated bar table named after the instrument.
func (c *Client) FetchBars(ctx context.Context, req FetchRequest) (*market.BarTable, error) {
	if !req.From.Before(req.To) {
		return nil, fmt.Errorf("oanda: from must be before to")
	}

	var bars []market.Bar
	cur := req.From
	for cur.Before(req.To) {
		page, err := c.GetCandles(ctx, CandlesRequest{
			Instrument:  req.Instrument,
			Price:       req.Price,
			Granularity: req.Granularity,
			Count:       MaxCount,
			From:        cur,
		})
		if err != nil {
			return nil, err
		}

		last := time.Time{}
		kept := 0
		for _, b := range page {
			if b.Time.Before(cur) || !b.Time.Before(req.To) {
				continue
			}
			bars = append(bars, b)
			last = b.Time
			kept++
		}
		if req.OnPage != nil {
			req.OnPage(kept)
		}
		if last.IsZero() {
			break
		}
		// 1ns past the last candle to avoid repeats.
		cur = last.Add(time.Nanosecond)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("oanda: no completed %s candles for %s in range", req.Granularity, req.Instrument)
	}
	t, err := market.NewBarTable(bars, nil)
	if err != nil {
		return nil, err
	}
	t.Symbol = req.Instrument
	return t, nil
}
