package conversion_test

import (
	"sync"
	"testing"

	"github.com/SscSPs/mma_ledger/internal/core/conversion"
	"github.com/SscSPs/mma_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionCache_FirstWriteWins(t *testing.T) {
	cache := conversion.NewConversionCache()
	key := domain.ConversionKey{RowID: "t1", Target: "VND"}

	_, ok := cache.Get(key)
	assert.False(t, ok)

	assert.True(t, cache.Set(key, decimal.NewFromInt(245000)))
	assert.False(t, cache.Set(key, decimal.NewFromInt(1)))

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(245000).Equal(got))
	assert.Equal(t, 1, cache.Len())
}

func TestConversionCache_KeysAreIndependent(t *testing.T) {
	cache := conversion.NewConversionCache()
	cache.Set(domain.ConversionKey{RowID: "t1", Target: "VND"}, decimal.NewFromInt(1))
	cache.Set(domain.ConversionKey{RowID: "t1", Target: "EUR"}, decimal.NewFromInt(2))
	cache.Set(domain.ConversionKey{RowID: "t2", Target: "VND"}, decimal.NewFromInt(3))

	assert.Equal(t, 3, cache.Len())
	got, _ := cache.Get(domain.ConversionKey{RowID: "t1", Target: "EUR"})
	assert.True(t, decimal.NewFromInt(2).Equal(got))
}

func TestRateCache_ConcurrentWritersKeepOneValue(t *testing.T) {
	cache := conversion.NewRateCache()
	key := domain.RateKey{From: "USD", To: "VND", Bucket: "2024-01-01"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wrote := 0
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			if cache.Set(key, decimal.NewFromInt(v)) {
				mu.Lock()
				wrote++
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, wrote)
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get(key)
	assert.True(t, ok)
}

func TestRateCache_BucketsAreDistinct(t *testing.T) {
	cache := conversion.NewRateCache()
	cache.Set(domain.RateKey{From: "USD", To: "VND", Bucket: "2024-01-01"}, decimal.NewFromInt(24500))

	_, ok := cache.Get(domain.RateKey{From: "USD", To: "VND", Bucket: "2024-01-02"})
	assert.False(t, ok)
	_, ok = cache.Get(domain.RateKey{From: "VND", To: "USD", Bucket: "2024-01-01"})
	assert.False(t, ok)
}
