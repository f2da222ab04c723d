package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchAll_FiltersUniverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"64250.10","priceChangePercent":"2.31","quoteVolume":"28500000000"},
			{"symbol":"ETHUSDT","lastPrice":"3105.50","priceChangePercent":"-1.12","quoteVolume":"12400000"},
			{"symbol":"SHIBUSDT","lastPrice":"0.00002","priceChangePercent":"5.0","quoteVolume":"900000"},
			{"symbol":"DOGEUSDT","lastPrice":"not-a-number","priceChangePercent":"1.0","quoteVolume":"100"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	got, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// SHIB is outside the universe, DOGE's price is unparseable: both dropped.
	if len(got) != 2 {
		t.Fatalf("got %d tickers, want 2: %+v", len(got), got)
	}
	btc := got[0]
	if btc.Ticker != "BTC" || btc.Name != "Bitcoin" {
		t.Fatalf("first record = %+v, want BTC/Bitcoin", btc)
	}
	if btc.Price.String() != "64250.1" {
		t.Fatalf("BTC price = %s", btc.Price)
	}
	if btc.Volume24h != "28.5B" {
		t.Fatalf("BTC volume = %q, want 28.5B", btc.Volume24h)
	}
	if got[1].Volume24h != "12.4M" {
		t.Fatalf("ETH volume = %q, want 12.4M", got[1].Volume24h)
	}
}

func TestFetchAll_BadChangeDefaultsToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"BTCUSDT","lastPrice":"100","priceChangePercent":"??","quoteVolume":"??"}]`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tickers, want 1", len(got))
	}
	if !got[0].Change24h.IsZero() {
		t.Fatalf("change = %s, want 0", got[0].Change24h)
	}
	if got[0].Volume24h != "0" {
		t.Fatalf("volume = %q, want 0", got[0].Volume24h)
	}
}

func TestFetchAll_FeedErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>rate limited</html>"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			_, err := NewClient(srv.URL, time.Second).FetchAll(context.Background())
			if !errors.Is(err, ErrFeedUnavailable) {
				t.Fatalf("err = %v, want ErrFeedUnavailable", err)
			}
		})
	}
}

func TestFetchAll_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := c.FetchAll(context.Background()); !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("err = %v, want ErrFeedUnavailable", err)
	}
}

func TestFormatVolume(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{28_500_000_000, "28.5B"},
		{1_340_000, "1.3M"},
		{45_600, "45.6K"},
		{999, "999"},
		{0, "0"},
	}
	for _, tc := range cases {
		if got := formatVolume(tc.in); got != tc.want {
			t.Errorf("formatVolume(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
