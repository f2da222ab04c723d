package marketdata

import "fmt"

// Asset is one entry of the fixed ticker universe the app tracks.
type Asset struct {
	Name   string
	Ticker string
	Symbol string
}

// Universe is the static list of tracked assets. Live figures come from the
// feed; this only fixes which symbols we care about and their display names.
var Universe = []Asset{
	{Name: "Bitcoin", Ticker: "BTC", Symbol: "BTCUSDT"},
	{Name: "Ethereum", Ticker: "ETH", Symbol: "ETHUSDT"},
	{Name: "Solana", Ticker: "SOL", Symbol: "SOLUSDT"},
	{Name: "Cardano", Ticker: "ADA", Symbol: "ADAUSDT"},
	{Name: "XRP", Ticker: "XRP", Symbol: "XRPUSDT"},
	{Name: "Dogecoin", Ticker: "DOGE", Symbol: "DOGEUSDT"},
	{Name: "Avalanche", Ticker: "AVAX", Symbol: "AVAXUSDT"},
	{Name: "Chainlink", Ticker: "LINK", Symbol: "LINKUSDT"},
	{Name: "Polygon", Ticker: "MATIC", Symbol: "MATICUSDT"},
	{Name: "Litecoin", Ticker: "LTC", Symbol: "LTCUSDT"},
}

func symbolToAsset() map[string]Asset {
	out := make(map[string]Asset, len(Universe))
	for _, a := range Universe {
		out[a.Symbol] = a
	}
	return out
}

// Tickers returns the tracked tickers in universe order.
func Tickers() []string {
	out := make([]string, 0, len(Universe))
	for _, a := range Universe {
		out = append(out, a.Ticker)
	}
	return out
}

// formatVolume renders a raw quote volume the way the UI shows it: 1.2B,
// 34.5M, 6.7K, or the plain number below a thousand.
func formatVolume(v float64) string {
	switch {
	case v > 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case v > 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v > 1_000:
		return fmt.Sprintf("%.1fK", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
