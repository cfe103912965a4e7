package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const klinesBody = `[
	[1700000000000, "100.0", "105.0", "99.0", "104.0", "1200.5", 1700003599999, "0", 0, "0", "0", "0"],
	[1700003600000, "104.0", "108.0", "103.0", "107.0", "900.1", 1700007199999, "0", 0, "0", "0", "0"],
	[1700007200000, "107.0", "110.0", "106.0", "109.0", "1100.7", 1700010799999, "0", 0, "0", "0", "0"]
]`

func klinesServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("symbol") == "" || r.URL.Query().Get("interval") == "" {
			http.Error(w, "missing params", http.StatusBadRequest)
			return
		}
		w.Write([]byte(klinesBody))
	}))
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
}

func TestGetCandles(t *testing.T) {
	server := klinesServer(t)
	defer server.Close()

	client := NewClient([]string{server.URL}, 5*time.Second)
	candles, err := client.GetCandles(context.Background(), "BTCUSDT", "1h", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	first := candles[0]
	if first.OpenTime != 1700000000000 {
		t.Errorf("expected open time 1700000000000, got %d", first.OpenTime)
	}
	if first.Open != 100 || first.High != 105 || first.Low != 99 || first.Close != 104 {
		t.Errorf("unexpected OHLC: %+v", first)
	}
	if first.Volume != 1200.5 {
		t.Errorf("expected volume 1200.5, got %v", first.Volume)
	}
}

func TestGetCandlesFallsBackToNextEndpoint(t *testing.T) {
	bad := failingServer(t)
	defer bad.Close()
	good := klinesServer(t)
	defer good.Close()

	client := NewClient([]string{bad.URL, good.URL}, 5*time.Second)
	candles, err := client.GetCandles(context.Background(), "BTCUSDT", "1h", 3, 0)
	if err != nil {
		t.Fatalf("expected the second endpoint to serve the request: %v", err)
	}
	if len(candles) != 3 {
		t.Errorf("expected 3 candles, got %d", len(candles))
	}
}

func TestGetCandlesAggregatesFailures(t *testing.T) {
	bad1 := failingServer(t)
	defer bad1.Close()
	bad2 := failingServer(t)
	defer bad2.Close()

	client := NewClient([]string{bad1.URL, bad2.URL}, 5*time.Second)
	_, err := client.GetCandles(context.Background(), "BTCUSDT", "1h", 3, 0)
	if err == nil {
		t.Fatal("expected an error when every endpoint fails")
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %T", err)
	}
	if len(upstreamErr.Failures) != 2 {
		t.Errorf("expected 2 recorded failures, got %d", len(upstreamErr.Failures))
	}
}

func TestGetCandlesSinceTrims(t *testing.T) {
	server := klinesServer(t)
	defer server.Close()

	client := NewClient([]string{server.URL}, 5*time.Second)
	candles, err := client.GetCandlesSince(context.Background(), "BTCUSDT", "1h", 1700003600000, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles at or after the cutoff, got %d", len(candles))
	}
	if candles[0].OpenTime != 1700003600000 {
		t.Errorf("expected first candle at the cutoff, got %d", candles[0].OpenTime)
	}
}

func TestCandleContains(t *testing.T) {
	c := Candle{Low: 99, High: 105}

	for _, price := range []float64{99, 100, 105} {
		if !c.Contains(price) {
			t.Errorf("expected candle to contain %v", price)
		}
	}
	for _, price := range []float64{98.99, 105.01} {
		if c.Contains(price) {
			t.Errorf("expected candle not to contain %v", price)
		}
	}
}

func TestTimeframeDuration(t *testing.T) {
	d, err := TimeframeDuration("4h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 4*time.Hour {
		t.Errorf("expected 4h, got %v", d)
	}

	if _, err := TimeframeDuration("7m"); err == nil {
		t.Error("expected an error for an unknown timeframe")
	}
}
