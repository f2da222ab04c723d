package engine

import (
	"fmt"
	"strings"
	"time"

	"cryptosim/internal/model"
	"cryptosim/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine validates and executes simulated buy/sell requests against the
// user's balance and positions. Every order fills instantly at the submitted
// price; the order append, balance mutation and position update apply
// together or not at all, under the user's lock.
type Engine struct {
	locks    *Locks
	balances *Balances
	ledger   *PositionLedger
	orders   *OrderLog
	log      *zap.Logger
}

func New(locks *Locks, balances *Balances, ledger *PositionLedger, orders *OrderLog, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{locks: locks, balances: balances, ledger: ledger, orders: orders, log: log}
}

func (e *Engine) Balances() *Balances     { return e.balances }
func (e *Engine) Ledger() *PositionLedger { return e.ledger }
func (e *Engine) Orders() *OrderLog       { return e.orders }
func (e *Engine) Locks() *Locks           { return e.locks }

type PlaceOrderRequest struct {
	UserID string
	Ticker string
	Side   types.OrderSide
	Amount decimal.Decimal
	Price  decimal.Decimal
}

type PlaceOrderResult struct {
	Order      model.Order     `json:"order"`
	Balance    decimal.Decimal `json:"balance"`
	Position   *model.Position `json:"position"`
	RealizedPL decimal.Decimal `json:"realized_pl"`
}

func (e *Engine) PlaceOrder(req PlaceOrderRequest) (PlaceOrderResult, error) {
	if req.UserID == "" {
		return PlaceOrderResult{}, fmt.Errorf("%w: user id is required", ErrInvalidAmount)
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return PlaceOrderResult{}, fmt.Errorf("%w: ticker is required", ErrInvalidAmount)
	}
	if !req.Side.Valid() {
		return PlaceOrderResult{}, fmt.Errorf("%w: side must be Buy or Sell", ErrInvalidAmount)
	}
	if req.Amount.Sign() <= 0 {
		return PlaceOrderResult{}, fmt.Errorf("%w: amount %s must be positive", ErrInvalidAmount, req.Amount)
	}
	if req.Price.Sign() <= 0 {
		return PlaceOrderResult{}, fmt.Errorf("%w: price %s must be positive", ErrInvalidAmount, req.Price)
	}
	req.Ticker = ticker

	lock := e.locks.For(req.UserID)
	lock.Lock()
	defer lock.Unlock()
	return e.fill(req)
}

// fill runs the sufficiency checks and applies a validated order. The caller
// holds the user's lock.
func (e *Engine) fill(req PlaceOrderRequest) (PlaceOrderResult, error) {
	notional := req.Amount.Mul(req.Price)

	if req.Side == types.OrderSideBuy {
		balance := e.balances.Get(req.UserID)
		if notional.GreaterThan(balance) {
			return PlaceOrderResult{}, fmt.Errorf("%w: order cost %s exceeds balance %s", ErrInsufficientBalance, notional, balance)
		}
	} else {
		pos, ok := e.ledger.Get(req.UserID, req.Ticker)
		if !ok {
			return PlaceOrderResult{}, fmt.Errorf("%w: no open %s position to sell", ErrNoPosition, req.Ticker)
		}
		if req.Amount.GreaterThan(pos.Quantity.Abs()) {
			return PlaceOrderResult{}, fmt.Errorf("%w: amount %s exceeds held quantity %s", ErrOversizedSell, req.Amount, pos.Quantity.Abs())
		}
	}

	order := model.Order{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Ticker:    req.Ticker,
		Side:      req.Side,
		Status:    types.OrderStatusFilled,
		Amount:    req.Amount,
		Price:     req.Price,
		CreatedAt: time.Now().UTC(),
	}
	e.orders.Append(order)

	var balance decimal.Decimal
	if req.Side == types.OrderSideBuy {
		balance = e.balances.Debit(req.UserID, notional)
	} else {
		balance = e.balances.Credit(req.UserID, notional)
	}

	pos, realized := e.ledger.ApplyFill(req.UserID, req.Ticker, req.Side, req.Amount, req.Price)

	e.log.Info("order filled",
		zap.String("order_id", order.ID),
		zap.String("user_id", req.UserID),
		zap.String("ticker", req.Ticker),
		zap.String("side", string(req.Side)),
		zap.String("amount", req.Amount.String()),
		zap.String("price", req.Price.String()),
		zap.String("realized_pl", realized.String()),
	)

	return PlaceOrderResult{Order: order, Balance: balance, Position: pos, RealizedPL: realized}, nil
}

// ClosePosition flattens the open position with an opposite-side order sized
// at |quantity| and priced at the current market price. The position is read
// and the flattening order applied under the same hold of the user's lock, so
// the close size cannot race an interleaved order for the same ticker.
func (e *Engine) ClosePosition(userID, ticker string, marketPrice decimal.Decimal) (PlaceOrderResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if marketPrice.Sign() <= 0 {
		return PlaceOrderResult{}, fmt.Errorf("%w: price %s must be positive", ErrInvalidAmount, marketPrice)
	}

	lock := e.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	pos, ok := e.ledger.Get(userID, ticker)
	if !ok {
		return PlaceOrderResult{}, fmt.Errorf("%w: no open %s position to close", ErrNoPosition, ticker)
	}
	side := types.OrderSideSell
	if pos.Quantity.Sign() < 0 {
		side = types.OrderSideBuy
	}
	return e.fill(PlaceOrderRequest{
		UserID: userID,
		Ticker: ticker,
		Side:   side,
		Amount: pos.Quantity.Abs(),
		Price:  marketPrice,
	})
}

// AccountState is one user's engine state, captured under that user's lock so
// an in-flight order is either fully included or not at all.
type AccountState struct {
	Balance   decimal.Decimal
	Positions []model.Position
	Orders    []model.Order
}

// ExportAccounts snapshots every known user's balance, positions and orders,
// reading each user under their own lock. The per-user invariants (balance
// conservation, order/position pairing) therefore hold inside the exported
// state even while orders are being placed.
func (e *Engine) ExportAccounts() map[string]AccountState {
	ids := make(map[string]struct{})
	for _, id := range e.balances.UserIDs() {
		ids[id] = struct{}{}
	}
	for _, id := range e.ledger.UserIDs() {
		ids[id] = struct{}{}
	}
	for _, id := range e.orders.UserIDs() {
		ids[id] = struct{}{}
	}

	out := make(map[string]AccountState, len(ids))
	for id := range ids {
		lock := e.locks.For(id)
		lock.Lock()
		out[id] = AccountState{
			Balance:   e.balances.Get(id),
			Positions: e.ledger.List(id),
			Orders:    e.orders.Export(id),
		}
		lock.Unlock()
	}
	return out
}

// RemoveUser drops all engine state for a deleted user.
func (e *Engine) RemoveUser(userID string) {
	lock := e.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()
	e.balances.Delete(userID)
	e.ledger.DeleteUser(userID)
	e.orders.DeleteUser(userID)
}
