package model

import (
	"time"

	"cryptosim/internal/types"

	"github.com/shopspring/decimal"
)

// Position is a user's net open exposure to one asset. Quantity is signed:
// positive for a long, negative for a short opened by a flip. AvgPrice is the
// weighted-average cost basis of the currently open quantity.
type Position struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// Order is append-only: simulated orders fill instantly at submission price
// and are never mutated afterwards.
type Order struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Ticker    string            `json:"ticker"`
	Side      types.OrderSide   `json:"side"`
	Status    types.OrderStatus `json:"status"`
	Amount    decimal.Decimal   `json:"amount"`
	Price     decimal.Decimal   `json:"price"`
	CreatedAt time.Time         `json:"created_at"`
}

type Deposit struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	UserName  string          `json:"user_name"`
	Amount    decimal.Decimal `json:"amount"`
	Status    types.TxStatus  `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type Withdrawal struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	UserName       string          `json:"user_name"`
	Amount         decimal.Decimal `json:"amount"`
	DestinationRef string          `json:"destination_ref"`
	Status         types.TxStatus  `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Ticker is one normalized record from the market snapshot feed.
type Ticker struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	Volume24h string          `json:"volume24h"`
}
