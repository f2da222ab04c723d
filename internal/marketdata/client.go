package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cryptosim/internal/model"

	"github.com/shopspring/decimal"
)

// ErrFeedUnavailable marks any failure to reach or decode the market
// snapshot feed. Consumers recover by serving the last-known snapshot.
var ErrFeedUnavailable = errors.New("feed_unavailable")

const DefaultFeedURL = "https://api.binance.com/api/v3/ticker/24hr"

// Client fetches the public 24h batch ticker feed and normalizes it to the
// tracked universe. It never blocks past its timeout and never panics on a
// malformed feed.
type Client struct {
	feedURL string
	http    *http.Client
}

func NewClient(feedURL string, timeout time.Duration) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{feedURL: feedURL, http: &http.Client{Timeout: timeout}}
}

type feedTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// FetchAll returns one normalized record per tracked asset present in the
// feed. Tickers missing from the feed are absent from the result.
func (c *Client) FetchAll(ctx context.Context) ([]model.Ticker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned %s", ErrFeedUnavailable, resp.Status)
	}

	var raw []feedTicker
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	assets := symbolToAsset()
	out := make([]model.Ticker, 0, len(Universe))
	for _, t := range raw {
		asset, ok := assets[t.Symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(t.LastPrice)
		if err != nil {
			continue
		}
		change, err := decimal.NewFromString(t.PriceChangePercent)
		if err != nil {
			change = decimal.Zero
		}
		volume, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			volume = 0
		}
		out = append(out, model.Ticker{
			Ticker:    asset.Ticker,
			Name:      asset.Name,
			Price:     price,
			Change24h: change,
			Volume24h: formatVolume(volume),
		})
	}
	return out, nil
}
