package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mid(o, h, l, c string) *candleData { return &candleData{O: o, H: h, L: l, C: c} }

func serve(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return NewClientWithURL("test-token", server.URL)
}

func TestNewClient(t *testing.T) {
	t.Run("practice mode", func(t *testing.T) {
		client := NewClient("test-token", true)
		assert.Equal(t, PracticeURL, client.baseURL)
		assert.Equal(t, "test-token", client.token)
		assert.NotNil(t, client.httpClient)
	})

	t.Run("live mode", func(t *testing.T) {
		client := NewClient("test-token", false)
		assert.Equal(t, LiveURL, client.baseURL)
	})
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity(" h1 ")
	require.NoError(t, err)
	assert.Equal(t, H1, g)

	_, err = ParseGranularity("S5")
	assert.Error(t, err)
}

func TestGetCandles_Success(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/instruments/EUR_USD/candles", r.URL.Path)
		assert.Equal(t, "M", r.URL.Query().Get("price"))
		assert.Equal(t, "M5", r.URL.Query().Get("granularity"))
		assert.Equal(t, "100", r.URL.Query().Get("count"))

		json.NewEncoder(w).Encode(candlesResponse{
			Instrument:  "EUR_USD",
			Granularity: "M5",
			Candles: []apiCandle{
				{Complete: true, Volume: 100, Time: "2024-01-01T10:00:00.000000000Z", Mid: mid("1.0850", "1.0860", "1.0840", "1.0855")},
				{Complete: true, Volume: 150, Time: "2024-01-01T10:05:00.000000000Z", Mid: mid("1.0855", "1.0870", "1.0850", "1.0865")},
				{Complete: false, Volume: 10, Time: "2024-01-01T10:10:00.000000000Z", Mid: mid("1.0865", "1.0866", "1.0864", "1.0865")},
			},
		})
	})

	bars, err := client.GetCandles(context.Background(), CandlesRequest{
		Instrument:  "EUR_USD",
		Granularity: M5,
		Count:       100,
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 1.0850, bars[0].Open)
	assert.Equal(t, 1.0860, bars[0].High)
	assert.Equal(t, 1.0840, bars[0].Low)
	assert.Equal(t, 1.0855, bars[0].Close)
	assert.Equal(t, 100.0, bars[0].Volume)
	assert.Equal(t, 1.0865, bars[1].Close)
}

func TestGetCandles_BidPrices(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "B", r.URL.Query().Get("price"))
		json.NewEncoder(w).Encode(candlesResponse{Candles: []apiCandle{
			{Complete: true, Time: "2024-01-01T10:00:00Z", Bid: mid("1.1", "1.2", "1.0", "1.15")},
		}})
	})

	bars, err := client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD", Price: BidPrice})
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.15, bars[0].Close)

	_, err = client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD", Price: AskPrice})
	assert.ErrorContains(t, err, "no \"A\" prices")
}

func TestGetCandles_Errors(t *testing.T) {
	t.Run("missing instrument", func(t *testing.T) {
		_, err := NewClient("x", true).GetCandles(context.Background(), CandlesRequest{})
		assert.ErrorContains(t, err, "instrument is required")
	})

	t.Run("count too large", func(t *testing.T) {
		_, err := NewClient("x", true).GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD", Count: MaxCount + 1})
		assert.ErrorContains(t, err, "cannot exceed")
	})

	t.Run("api error", func(t *testing.T) {
		client := serve(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"errorMessage":"Insufficient authorization"}`)
		})
		_, err := client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD"})
		assert.ErrorContains(t, err, "status 401")
		assert.ErrorContains(t, err, "Insufficient authorization")
	})

	t.Run("bad price", func(t *testing.T) {
		client := serve(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(candlesResponse{Candles: []apiCandle{
				{Complete: true, Time: "2024-01-01T10:00:00Z", Mid: mid("x", "1", "1", "1")},
			}})
		})
		_, err := client.GetCandles(context.Background(), CandlesRequest{Instrument: "EUR_USD"})
		assert.ErrorContains(t, err, "bad price")
	})
}

// hourly serves complete H1 candles from start, at most pageSize per
// request, beginning at the requested from time.
func hourly(t *testing.T, start time.Time, n, pageSize int, calls *int) *Client {
	return serve(t, func(w http.ResponseWriter, r *http.Request) {
		*calls++
		from, err := time.Parse(time.RFC3339Nano, r.URL.Query().Get("from"))
		require.NoError(t, err)

		var out []apiCandle
		for i := range n {
			ts := start.Add(time.Duration(i) * time.Hour)
			if ts.Before(from) || len(out) == pageSize {
				continue
			}
			p := fmt.Sprintf("%.1f", 100+float64(i))
			out = append(out, apiCandle{Complete: true, Volume: i, Time: ts.Format(time.RFC3339), Mid: mid(p, p, p, p)})
		}
		json.NewEncoder(w).Encode(candlesResponse{Candles: out})
	})
}

func TestFetchBarsPages(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int
	client := hourly(t, start, 30, 8, &calls)

	var pages []int
	tbl, err := client.FetchBars(context.Background(), FetchRequest{
		Instrument:  "EUR_USD",
		Granularity: H1,
		From:        start.Add(2 * time.Hour),
		To:          start.Add(20 * time.Hour),
		OnPage:      func(kept int) { pages = append(pages, kept) },
	})
	require.NoError(t, err)

	assert.Equal(t, "EUR_USD", tbl.Symbol)
	assert.Equal(t, 18, tbl.Len())
	assert.Equal(t, start.Add(2*time.Hour), tbl.Start())
	assert.Equal(t, start.Add(19*time.Hour), tbl.End())
	assert.Equal(t, 102.0, tbl.Bar(0).Close)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{8, 8, 2, 0}, pages)
}

func TestFetchBarsErrors(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int
	client := hourly(t, start, 5, 10, &calls)

	_, err := client.FetchBars(context.Background(), FetchRequest{Instrument: "EUR_USD", From: start, To: start})
	assert.ErrorContains(t, err, "from must be before to")

	_, err = client.FetchBars(context.Background(), FetchRequest{
		Instrument: "EUR_USD",
		From:       start.Add(24 * time.Hour),
		To:         start.Add(48 * time.Hour),
	})
	assert.ErrorContains(t, err, "no completed")
}
