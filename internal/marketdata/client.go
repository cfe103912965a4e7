package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUpstreamUnavailable is returned when every configured endpoint failed.
var ErrUpstreamUnavailable = errors.New("all market data endpoints failed")

// UpstreamError aggregates the per-endpoint failures behind
// ErrUpstreamUnavailable so callers can log the full fallback chain.
type UpstreamError struct {
	Failures []EndpointFailure
}

// EndpointFailure records one endpoint's failure during the fallback loop.
type EndpointFailure struct {
	Endpoint string
	Err      error
}

func (e *UpstreamError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Endpoint, f.Err)
	}
	return fmt.Sprintf("all market data endpoints failed: %s", strings.Join(parts, "; "))
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// Client fetches OHLC candles from an upstream exchange API. Endpoints are
// tried in order on each request; the first successful response wins.
type Client struct {
	endpoints  []string
	httpClient *http.Client
}

// NewClient creates a market data client over the given fallback endpoints.
func NewClient(endpoints []string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetCandles fetches up to limit candles for the pair/timeframe, ending at
// endTime when non-zero (epoch milliseconds) or at the latest candle
// otherwise. The result is ordered by open time ascending.
func (c *Client) GetCandles(ctx context.Context, pair, timeframe string, limit int, endTime int64) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var failures []EndpointFailure
	for _, endpoint := range c.endpoints {
		candles, err := c.fetchFrom(ctx, endpoint, params)
		if err == nil {
			return candles, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		failures = append(failures, EndpointFailure{Endpoint: endpoint, Err: err})
	}

	return nil, &UpstreamError{Failures: failures}
}

// GetCandlesSince fetches candles whose open time is at or after the given
// epoch-millisecond timestamp.
func (c *Client) GetCandlesSince(ctx context.Context, pair, timeframe string, since int64, limit int) ([]Candle, error) {
	candles, err := c.GetCandles(ctx, pair, timeframe, limit, 0)
	if err != nil {
		return nil, err
	}

	// The upstream API has no "startTime only" shortcut that suits a short
	// replay window, so trim client-side.
	for i, candle := range candles {
		if candle.OpenTime >= since {
			return candles[i:], nil
		}
	}
	return nil, nil
}

func (c *Client) fetchFrom(ctx context.Context, endpoint string, params url.Values) ([]Candle, error) {
	reqURL := fmt.Sprintf("%s/api/v3/klines?%s", strings.TrimRight(endpoint, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var rawCandles [][]interface{}
	if err := json.Unmarshal(body, &rawCandles); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}

	candles := make([]Candle, 0, len(rawCandles))
	for _, raw := range rawCandles {
		if len(raw) < 6 {
			return nil, fmt.Errorf("malformed candle row: %d fields", len(raw))
		}
		openTime, ok := raw[0].(float64)
		if !ok {
			return nil, fmt.Errorf("malformed candle open time: %T", raw[0])
		}
		candles = append(candles, Candle{
			OpenTime: int64(openTime),
			Open:     parseFloat(raw[1]),
			High:     parseFloat(raw[2]),
			Low:      parseFloat(raw[3]),
			Close:    parseFloat(raw[4]),
			Volume:   parseFloat(raw[5]),
		})
	}

	return candles, nil
}

func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}
