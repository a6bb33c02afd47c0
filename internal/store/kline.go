// Package store carries the in-memory candle cache that sits between the
// exchange gateway and the indicator context, so a cycle does not refetch
// a window that is still current.
package store

import (
	"context"
	"errors"
	"sync"

	"ludus/internal/market"
)

// KlineStore caches recent candles per symbol and interval.
type KlineStore interface {
	Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error
	Get(ctx context.Context, symbol, interval string) ([]market.Candle, error)
}

// MemoryKlineStore keeps candles in process memory. Put merges by open
// time: a refreshed final candle replaces its in-flight version instead of
// duplicating it.
type MemoryKlineStore struct {
	mu   sync.RWMutex
	data map[string][]market.Candle
}

func NewMemoryKlineStore() *MemoryKlineStore {
	return &MemoryKlineStore{data: make(map[string][]market.Candle)}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

func (s *MemoryKlineStore) Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol and interval must not be empty")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 100
	}
	k := key(symbol, interval)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.data[k] = cur
	return nil
}

func (s *MemoryKlineStore) Get(ctx context.Context, symbol, interval string) ([]market.Candle, error) {
	k := key(symbol, interval)
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[k]
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out, nil
}

// Latest returns the newest cached candle, if any.
func (s *MemoryKlineStore) Latest(ctx context.Context, symbol, interval string) (market.Candle, bool) {
	k := key(symbol, interval)
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[k]
	if len(cur) == 0 {
		return market.Candle{}, false
	}
	return cur[len(cur)-1], true
}
