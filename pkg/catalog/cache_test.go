package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapabilities() []EffectiveCapability {
	return []EffectiveCapability{
		{Capability: "query_dataset", Enabled: true, Source: SourceCatalogDefault},
		{Capability: "forecast", Enabled: false, Source: SourcePlanRestriction},
	}
}

func TestMemoryCache_PutGet(t *testing.T) {
	cache, err := NewMemoryCache(10, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()

	_, ok := cache.Get(ctx, tenantID)
	assert.False(t, ok)

	cache.Put(ctx, tenantID, testCapabilities())

	got, ok := cache.Get(ctx, tenantID)
	require.True(t, ok)
	assert.Equal(t, testCapabilities(), got)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	cache, err := NewMemoryCache(10, 20*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	cache.Put(ctx, tenantID, testCapabilities())

	_, ok := cache.Get(ctx, tenantID)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = cache.Get(ctx, tenantID)
	assert.False(t, ok, "expired entry must miss")
}

func TestMemoryCache_Invalidate(t *testing.T) {
	cache, err := NewMemoryCache(10, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()
	cache.Put(ctx, first, testCapabilities())
	cache.Put(ctx, second, testCapabilities())

	cache.Invalidate(ctx, first)

	_, ok := cache.Get(ctx, first)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, second)
	assert.True(t, ok, "invalidation must not touch other tenants")
}

func TestMemoryCache_LRUBound(t *testing.T) {
	cache, err := NewMemoryCache(2, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	cache.Put(ctx, first, testCapabilities())
	cache.Put(ctx, second, testCapabilities())
	cache.Put(ctx, third, testCapabilities())

	_, ok := cache.Get(ctx, first)
	assert.False(t, ok, "oldest entry should be evicted at capacity")
	_, ok = cache.Get(ctx, third)
	assert.True(t, ok)
}

func TestMemoryCache_Sweep(t *testing.T) {
	cache, err := NewMemoryCache(10, 20*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	cache.Put(ctx, uuid.New(), testCapabilities())
	cache.Put(ctx, uuid.New(), testCapabilities())

	assert.Equal(t, 0, cache.Sweep(ctx))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, cache.Sweep(ctx))
	assert.Equal(t, 0, cache.Sweep(ctx))
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	cache, err := NewMemoryCache(10, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	cache.Put(ctx, tenantID, testCapabilities())

	got, ok := cache.Get(ctx, tenantID)
	require.True(t, ok)
	got[0].Enabled = false

	again, ok := cache.Get(ctx, tenantID)
	require.True(t, ok)
	assert.True(t, again[0].Enabled, "callers must not mutate the cached set")
}

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCacheWithClient(client, ttl), mr
}

func TestRedisCache_PutGet(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Minute)

	ctx := context.Background()
	tenantID := uuid.New()

	_, ok := cache.Get(ctx, tenantID)
	assert.False(t, ok)

	cache.Put(ctx, tenantID, testCapabilities())

	got, ok := cache.Get(ctx, tenantID)
	require.True(t, ok)
	assert.Equal(t, testCapabilities(), got)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)

	ctx := context.Background()
	tenantID := uuid.New()
	cache.Put(ctx, tenantID, testCapabilities())

	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, tenantID)
	assert.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Minute)

	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()
	cache.Put(ctx, first, testCapabilities())
	cache.Put(ctx, second, testCapabilities())

	cache.Invalidate(ctx, first)

	_, ok := cache.Get(ctx, first)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, second)
	assert.True(t, ok)
}

func TestRedisCache_InvalidateAll(t *testing.T) {
	cache, _ := newTestRedisCache(t, time.Minute)

	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()
	cache.Put(ctx, first, testCapabilities())
	cache.Put(ctx, second, testCapabilities())

	cache.InvalidateAll(ctx)

	_, ok := cache.Get(ctx, first)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, second)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)

	ctx := context.Background()
	tenantID := uuid.New()
	require.NoError(t, mr.Set(redisKey(tenantID), "{not json"))

	_, ok := cache.Get(ctx, tenantID)
	assert.False(t, ok)
	// The corrupt entry is dropped so the next Put starts clean.
	assert.False(t, mr.Exists(redisKey(tenantID)))
}

func TestRedisCache_DownRedisIsAMiss(t *testing.T) {
	cache, mr := newTestRedisCache(t, time.Minute)

	ctx := context.Background()
	tenantID := uuid.New()
	cache.Put(ctx, tenantID, testCapabilities())

	mr.Close()

	_, ok := cache.Get(ctx, tenantID)
	assert.False(t, ok, "redis outage must read as a miss, not an error")
}
