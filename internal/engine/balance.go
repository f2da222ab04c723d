package engine

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Balances is the account balance store: one spendable balance per user.
// It is a dumb ledger primitive. Debit does not enforce non-negativity;
// callers validate sufficiency before mutating, under the user's lock.
type Balances struct {
	mu     sync.RWMutex
	byUser map[string]decimal.Decimal
}

func NewBalances() *Balances {
	return &Balances{byUser: make(map[string]decimal.Decimal)}
}

func (b *Balances) Get(userID string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byUser[userID]
}

func (b *Balances) Credit(userID string, amount decimal.Decimal) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.byUser[userID].Add(amount)
	b.byUser[userID] = next
	return next
}

func (b *Balances) Debit(userID string, amount decimal.Decimal) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.byUser[userID].Sub(amount)
	b.byUser[userID] = next
	return next
}

// Set replaces the balance outright. Admin override only.
func (b *Balances) Set(userID string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byUser[userID] = amount
}

func (b *Balances) UserIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.byUser))
	for id := range b.byUser {
		out = append(out, id)
	}
	return out
}

func (b *Balances) Delete(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byUser, userID)
}

func (b *Balances) ExportAll() map[string]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(b.byUser))
	for id, v := range b.byUser {
		out[id] = v
	}
	return out
}

func (b *Balances) Restore(all map[string]decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byUser = make(map[string]decimal.Decimal, len(all))
	for id, v := range all {
		b.byUser[id] = v
	}
}
