package engine

import (
	"sort"
	"sync"

	"cryptosim/internal/model"
	"cryptosim/internal/types"

	"github.com/shopspring/decimal"
)

// PositionEpsilon is the single closed-position threshold: any fill that
// leaves |quantity| below it removes the position record entirely.
var PositionEpsilon = decimal.New(1, -6)

// PositionLedger maps (userID, ticker) to the open position. Quantities are
// kept signed so the weighted-average, reduction and flip rules are uniform
// across longs and shorts.
type PositionLedger struct {
	mu     sync.RWMutex
	byUser map[string]map[string]model.Position
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{byUser: make(map[string]map[string]model.Position)}
}

// ApplyFill folds one fill into the user's position for the ticker and
// returns the resulting position (nil when the fill closed it) plus the
// realized P/L locked in by any reduction, signed by the original direction.
func (l *PositionLedger) ApplyFill(userID, ticker string, side types.OrderSide, amount, price decimal.Decimal) (*model.Position, decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	signed := amount
	if side == types.OrderSideSell {
		signed = amount.Neg()
	}

	positions, ok := l.byUser[userID]
	if !ok {
		positions = make(map[string]model.Position)
		l.byUser[userID] = positions
	}

	pos, exists := positions[ticker]
	if !exists {
		pos = model.Position{Ticker: ticker, Quantity: signed, AvgPrice: price}
		positions[ticker] = pos
		return &pos, decimal.Zero
	}

	if pos.Quantity.Sign() == signed.Sign() {
		// Adding to the existing direction: weighted-average cost.
		absOld := pos.Quantity.Abs()
		pos.AvgPrice = pos.AvgPrice.Mul(absOld).Add(price.Mul(amount)).Div(absOld.Add(amount))
		pos.Quantity = pos.Quantity.Add(signed)
		positions[ticker] = pos
		return &pos, decimal.Zero
	}

	// Opposite direction: realize P/L on the closed portion.
	closed := decimal.Min(amount, pos.Quantity.Abs())
	realized := closed.Mul(price.Sub(pos.AvgPrice))
	if pos.Quantity.Sign() < 0 {
		realized = realized.Neg()
	}

	newQty := pos.Quantity.Add(signed)
	if newQty.Abs().LessThan(PositionEpsilon) {
		delete(positions, ticker)
		return nil, realized
	}
	if newQty.Sign() != pos.Quantity.Sign() {
		// Flip: the excess beyond full closure opens fresh at the fill price.
		pos.Quantity = newQty
		pos.AvgPrice = price
	} else {
		// Partial reduction leaves the cost basis of what remains untouched.
		pos.Quantity = newQty
	}
	positions[ticker] = pos
	return &pos, realized
}

// Get returns the open position for the ticker, or false when there is none.
func (l *PositionLedger) Get(userID, ticker string) (model.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.byUser[userID][ticker]
	return pos, ok
}

// List returns the user's open positions sorted by ticker.
func (l *PositionLedger) List(userID string) []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Position, 0, len(l.byUser[userID]))
	for _, pos := range l.byUser[userID] {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (l *PositionLedger) UserIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.byUser))
	for id := range l.byUser {
		out = append(out, id)
	}
	return out
}

func (l *PositionLedger) DeleteUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byUser, userID)
}

func (l *PositionLedger) ExportAll() map[string][]model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string][]model.Position, len(l.byUser))
	for id, positions := range l.byUser {
		list := make([]model.Position, 0, len(positions))
		for _, pos := range positions {
			list = append(list, pos)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Ticker < list[j].Ticker })
		out[id] = list
	}
	return out
}

func (l *PositionLedger) Restore(all map[string][]model.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byUser = make(map[string]map[string]model.Position, len(all))
	for id, list := range all {
		positions := make(map[string]model.Position, len(list))
		for _, pos := range list {
			positions[pos.Ticker] = pos
		}
		l.byUser[id] = positions
	}
}
