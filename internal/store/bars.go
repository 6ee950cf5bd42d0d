package store

import (
	"context"
	"errors"
	"sync"

	"apex/internal/decision"
	"apex/internal/market"
)

// BarStore reads and writes per symbol+interval bar sequences.
type BarStore interface {
	Put(ctx context.Context, symbol, interval string, bars []market.Bar, max int) error
	Get(ctx context.Context, symbol, interval string) ([]market.Bar, error)
}

// MemoryStore keeps recent bars and their evaluated results per
// symbol+interval stream, trimmed to a bounded window.
type MemoryStore struct {
	mu      sync.RWMutex
	bars    map[string][]market.Bar
	results map[string][]decision.Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars:    make(map[string][]market.Bar),
		results: make(map[string][]decision.Result),
	}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

// Put appends bars and trims to max. A bar sharing the tail's OpenTime is an
// in-place update of that bar, not a duplicate append.
func (s *MemoryStore) Put(ctx context.Context, symbol, interval string, bars []market.Bar, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval required")
	}
	if len(bars) == 0 {
		return nil
	}
	if max <= 0 {
		max = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, interval)
	cur := s.bars[k]
	for _, bar := range bars {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == bar.OpenTime {
			cur[n-1] = bar
			continue
		}
		cur = append(cur, bar)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.bars[k] = cur
	return nil
}

// Get returns a copy of the stored bar sequence.
func (s *MemoryStore) Get(ctx context.Context, symbol, interval string) ([]market.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.bars[key(symbol, interval)]
	out := make([]market.Bar, len(cur))
	copy(out, cur)
	return out, nil
}

// PutResult appends one evaluated result, trimmed to max.
func (s *MemoryStore) PutResult(ctx context.Context, symbol, interval string, res decision.Result, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval required")
	}
	if max <= 0 {
		max = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, interval)
	cur := append(s.results[k], res)
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.results[k] = cur
	return nil
}

// Results returns the most recent limit results in time order.
func (s *MemoryStore) Results(ctx context.Context, symbol, interval string, limit int) ([]decision.Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.results[key(symbol, interval)]
	if len(cur) == 0 {
		return nil, nil
	}
	if limit > len(cur) {
		limit = len(cur)
	}
	out := make([]decision.Result, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}

// Latest returns the newest result for a stream, false when none exists.
func (s *MemoryStore) Latest(ctx context.Context, symbol, interval string) (decision.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.results[key(symbol, interval)]
	if len(cur) == 0 {
		return decision.Result{}, false
	}
	return cur[len(cur)-1], true
}

// Streams lists the symbol@interval keys with stored results.
func (s *MemoryStore) Streams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.results))
	for k := range s.results {
		keys = append(keys, k)
	}
	return keys
}
