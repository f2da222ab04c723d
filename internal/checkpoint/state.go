package checkpoint

import (
	"context"

	"cryptosim/internal/auth"
	"cryptosim/internal/model"

	"github.com/shopspring/decimal"
)

// UserState is the serializable per-user slice of engine state.
type UserState struct {
	Balance   decimal.Decimal  `json:"balance"`
	Positions []model.Position `json:"positions"`
	Orders    []model.Order    `json:"orders"`
	Watchlist []string         `json:"watchlist"`
}

// State is the full checkpoint document: everything needed to bring the
// engine back after a restart.
type State struct {
	Users               []auth.StoredUser    `json:"users"`
	Accounts            map[string]UserState `json:"accounts"`
	Deposits            []model.Deposit      `json:"deposits"`
	Withdrawals         []model.Withdrawal   `json:"withdrawals"`
	PayoutDestinationID string               `json:"payout_destination_id"`
}

// Store persists checkpoint documents. Load returns (nil, nil) when no
// checkpoint has been written yet.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
}
