package marketdata

import (
	"sync"
	"time"

	"cryptosim/internal/model"
)

// Store holds the last successfully fetched snapshot per ticker. Reads never
// fail; staleness is reported through UpdatedAt / Fresh so callers decide
// whether last-known data is acceptable.
type Store struct {
	mu        sync.RWMutex
	byTicker  map[string]model.Ticker
	updatedAt time.Time
}

func NewStore() *Store {
	return &Store{byTicker: make(map[string]model.Ticker)}
}

// SetAll replaces the stored records for the tickers present in the batch.
// Tickers missing from the batch keep their last-known values.
func (s *Store) SetAll(batch []model.Ticker, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range batch {
		s.byTicker[t.Ticker] = t
	}
	s.updatedAt = now
}

// Quote returns the last-known record for a ticker. ok is false when the
// ticker has never been seen; the zero record is returned in that case.
func (s *Store) Quote(ticker string) (model.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byTicker[ticker]
	return t, ok
}

// All returns the tracked universe in its fixed order, with zero-value
// records for tickers the feed has not supplied yet.
func (s *Store) All() []model.Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Ticker, 0, len(Universe))
	for _, a := range Universe {
		if t, ok := s.byTicker[a.Ticker]; ok {
			out = append(out, t)
			continue
		}
		out = append(out, model.Ticker{Ticker: a.Ticker, Name: a.Name})
	}
	return out
}

func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Fresh reports whether the snapshot was refreshed within maxAge. Market
// orders require a fresh snapshot; display queries tolerate stale data.
func (s *Store) Fresh(maxAge time.Duration, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updatedAt.IsZero() {
		return false
	}
	return now.Sub(s.updatedAt) <= maxAge
}
