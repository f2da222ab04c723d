package engine

import (
	"sync"

	"cryptosim/internal/model"
)

// OrderLog is the append-only per-user order history. Records are never
// mutated or deleted once appended.
type OrderLog struct {
	mu     sync.RWMutex
	byUser map[string][]model.Order
}

func NewOrderLog() *OrderLog {
	return &OrderLog{byUser: make(map[string][]model.Order)}
}

func (o *OrderLog) Append(order model.Order) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byUser[order.UserID] = append(o.byUser[order.UserID], order)
}

// List returns the user's orders newest first.
func (o *OrderLog) List(userID string) []model.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	all := o.byUser[userID]
	out := make([]model.Order, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out
}

// Export returns the user's orders in append order, the shape Restore takes.
func (o *OrderLog) Export(userID string) []model.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	all := o.byUser[userID]
	out := make([]model.Order, len(all))
	copy(out, all)
	return out
}

func (o *OrderLog) UserIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.byUser))
	for id := range o.byUser {
		out = append(out, id)
	}
	return out
}

func (o *OrderLog) DeleteUser(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.byUser, userID)
}

func (o *OrderLog) ExportAll() map[string][]model.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string][]model.Order, len(o.byUser))
	for id, orders := range o.byUser {
		list := make([]model.Order, len(orders))
		copy(list, orders)
		out[id] = list
	}
	return out
}

func (o *OrderLog) Restore(all map[string][]model.Order) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byUser = make(map[string][]model.Order, len(all))
	for id, orders := range all {
		list := make([]model.Order, len(orders))
		copy(list, orders)
		o.byUser[id] = list
	}
}
