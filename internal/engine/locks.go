package engine

import "sync"

// Locks hands out one mutex per user so every financial mutation for a user
// runs to completion before the next one starts. The engine, the transaction
// approval workflow and admin balance overrides all serialize on the same
// lock to avoid lost updates on the balance field.
type Locks struct {
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{users: make(map[string]*sync.Mutex)}
}

func (l *Locks) For(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}
