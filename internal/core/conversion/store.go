// Package conversion renders transaction rows in a display currency without
// ever blocking on a rate lookup. It layers a per-view conversion cache, a
// per-day rate cache and a pending-fetch tracker in front of an authoritative
// rate source, and uses a fixed fallback estimate while a lookup is in flight.
package conversion

import (
	"sync"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// store is a goroutine-safe, write-once map. Values are pinned to a
// historical date so the first confirmed value is the only one ever kept.
type store[K comparable] struct {
	mu    sync.RWMutex
	items map[K]decimal.Decimal
}

func newStore[K comparable]() *store[K] {
	return &store[K]{items: make(map[K]decimal.Decimal)}
}

func (s *store[K]) get(key K) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *store[K]) set(key K, value decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[key]; exists {
		return false
	}
	s.items[key] = value
	return true
}

func (s *store[K]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ConversionCache maps (row, display currency) to the converted amount.
type ConversionCache struct {
	s *store[domain.ConversionKey]
}

// NewConversionCache returns an empty ConversionCache.
func NewConversionCache() *ConversionCache {
	return &ConversionCache{s: newStore[domain.ConversionKey]()}
}

// Get returns the cached converted amount.
func (c *ConversionCache) Get(key domain.ConversionKey) (decimal.Decimal, bool) {
	return c.s.get(key)
}

// Set stores the converted amount unless one is already cached. It reports whether it wrote.
func (c *ConversionCache) Set(key domain.ConversionKey, amount decimal.Decimal) bool {
	return c.s.set(key, amount)
}

// Len returns the number of cached conversions.
func (c *ConversionCache) Len() int {
	return c.s.len()
}

// RateCache maps (from, to, day bucket) to a confirmed rate.
type RateCache struct {
	s *store[domain.RateKey]
}

// NewRateCache returns an empty RateCache.
func NewRateCache() *RateCache {
	return &RateCache{s: newStore[domain.RateKey]()}
}

// Get returns the cached rate.
func (c *RateCache) Get(key domain.RateKey) (decimal.Decimal, bool) {
	return c.s.get(key)
}

// Set stores a rate unless one is already cached. It reports whether it wrote.
func (c *RateCache) Set(key domain.RateKey, rate decimal.Decimal) bool {
	return c.s.set(key, rate)
}

// Len returns the number of cached rates.
func (c *RateCache) Len() int {
	return c.s.len()
}
