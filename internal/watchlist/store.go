package watchlist

import (
	"strings"
	"sync"

	"cryptosim/internal/marketdata"
)

// Store keeps each user's tracked tickers. Operations are idempotent set
// updates with no failure modes; a user who has never touched their
// watchlist starts with the full tracked universe, like the original app.
type Store struct {
	mu     sync.RWMutex
	byUser map[string][]string
}

func NewStore() *Store {
	return &Store{byUser: make(map[string][]string)}
}

func (s *Store) List(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.byUser[userID]
	if !ok {
		list = marketdata.Tickers()
		s.byUser[userID] = list
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func (s *Store) Add(userID, ticker string) []string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.byUser[userID]
	if !ok {
		list = marketdata.Tickers()
	}
	for _, t := range list {
		if t == ticker {
			s.byUser[userID] = list
			return append([]string(nil), list...)
		}
	}
	list = append(list, ticker)
	s.byUser[userID] = list
	return append([]string(nil), list...)
}

func (s *Store) Remove(userID, ticker string) []string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.byUser[userID]
	if !ok {
		list = marketdata.Tickers()
	}
	next := make([]string, 0, len(list))
	for _, t := range list {
		if t != ticker {
			next = append(next, t)
		}
	}
	s.byUser[userID] = next
	return append([]string(nil), next...)
}

func (s *Store) DeleteUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
}

func (s *Store) ExportAll() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.byUser))
	for id, list := range s.byUser {
		out[id] = append([]string(nil), list...)
	}
	return out
}

func (s *Store) Restore(all map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser = make(map[string][]string, len(all))
	for id, list := range all {
		s.byUser[id] = append([]string(nil), list...)
	}
}
