package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campuschat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheServiceLookup(t *testing.T) {
	store := newFakeCacheStore()
	cache := NewCacheService(store, time.Hour, testLogger())
	ctx := context.Background()

	t.Run("miss on empty cache", func(t *testing.T) {
		_, ok := cache.Lookup(ctx, "missing")
		assert.False(t, ok)
	})

	t.Run("hit after store", func(t *testing.T) {
		cache.Store(ctx, &models.CachedResponse{Fingerprint: "fp1", Language: "ru", Answer: "ответ"})

		cached, ok := cache.Lookup(ctx, "fp1")
		require.True(t, ok)
		assert.Equal(t, "ответ", cached.Answer)
	})

	t.Run("expired entry is dropped", func(t *testing.T) {
		store.entries["old"] = &models.CachedResponse{
			Fingerprint: "old",
			Language:    "ru",
			ExpiresAt:   time.Now().Add(-time.Minute),
		}

		_, ok := cache.Lookup(ctx, "old")
		assert.False(t, ok)
		_, err := store.Get(ctx, "old")
		assert.Error(t, err)
	})
}

func TestCacheServiceGetOrGenerate(t *testing.T) {
	t.Run("generates once and caches", func(t *testing.T) {
		store := newFakeCacheStore()
		cache := NewCacheService(store, time.Hour, testLogger())
		ctx := context.Background()

		calls := 0
		generate := func() (*models.CachedResponse, error) {
			calls++
			return &models.CachedResponse{Fingerprint: "fp", Language: "en", Answer: "generated"}, nil
		}

		first, cached, err := cache.GetOrGenerate(ctx, "fp", generate)
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "generated", first.Answer)

		second, cached, err := cache.GetOrGenerate(ctx, "fp", generate)
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, "generated", second.Answer)
		assert.Equal(t, 1, calls)
	})

	t.Run("concurrent misses collapse into one generation", func(t *testing.T) {
		store := newFakeCacheStore()
		cache := NewCacheService(store, time.Hour, testLogger())
		ctx := context.Background()

		var calls int64
		generate := func() (*models.CachedResponse, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(20 * time.Millisecond)
			return &models.CachedResponse{Fingerprint: "hot", Language: "en", Answer: "one"}, nil
		}

		const workers = 16
		var wg sync.WaitGroup
		answers := make([]string, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, _, err := cache.GetOrGenerate(ctx, "hot", generate)
				if assert.NoError(t, err) {
					answers[i] = result.Answer
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
		for _, answer := range answers {
			assert.Equal(t, "one", answer)
		}
	})

	t.Run("generation error is not cached", func(t *testing.T) {
		store := newFakeCacheStore()
		cache := NewCacheService(store, time.Hour, testLogger())
		ctx := context.Background()

		_, _, err := cache.GetOrGenerate(ctx, "bad", func() (*models.CachedResponse, error) {
			return nil, assert.AnError
		})
		assert.Error(t, err)
		assert.Equal(t, 0, store.puts)
	})
}

func TestCacheServiceInvalidateLanguage(t *testing.T) {
	store := newFakeCacheStore()
	cache := NewCacheService(store, time.Hour, testLogger())
	ctx := context.Background()

	cache.Store(ctx, &models.CachedResponse{Fingerprint: "ru1", Language: "ru"})
	cache.Store(ctx, &models.CachedResponse{Fingerprint: "ru2", Language: "ru"})
	cache.Store(ctx, &models.CachedResponse{Fingerprint: "en1", Language: "en"})

	require.NoError(t, cache.InvalidateLanguage(ctx, "ru"))

	_, ok := cache.Lookup(ctx, "ru1")
	assert.False(t, ok)
	_, ok = cache.Lookup(ctx, "ru2")
	assert.False(t, ok)
	_, ok = cache.Lookup(ctx, "en1")
	assert.True(t, ok)
}
