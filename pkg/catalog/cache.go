package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// TenantCache memoizes a tenant's effective capability set for a bounded
// window. Implementations must be safe under arbitrary concurrent reads and
// writes; get/put/invalidate must be atomic per tenant key.
//
// Global-disable changes never invalidate this cache: the disabled set is
// immutable for the process lifetime and is applied by the resolver before
// anything reaches the cache.
type TenantCache interface {
	// Get returns the cached set, or ok=false on miss or expiry.
	Get(ctx context.Context, tenantID uuid.UUID) ([]EffectiveCapability, bool)
	Put(ctx context.Context, tenantID uuid.UUID, capabilities []EffectiveCapability)
	Invalidate(ctx context.Context, tenantID uuid.UUID)
	// InvalidateAll clears the cache. Used at process start only.
	InvalidateAll(ctx context.Context)
	// Sweep evicts expired entries and returns how many were removed. This
	// is a memory optimization only; Get checks TTL itself.
	Sweep(ctx context.Context) int
}

// DefaultCacheSize bounds the number of tenants held in the in-memory cache.
const DefaultCacheSize = 1000

type memoryEntry struct {
	capabilities []EffectiveCapability
	computedAt   time.Time
}

// MemoryCache is an in-process LRU tenant cache. The underlying LRU is
// internally locked, which gives the per-key atomicity the selection service
// needs without cross-tenant contention beyond the map itself.
type MemoryCache struct {
	entries *lru.Cache[uuid.UUID, memoryEntry]
	ttl     time.Duration
}

// NewMemoryCache creates an in-memory tenant cache. size <= 0 falls back to
// DefaultCacheSize.
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[uuid.UUID, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant cache: %w", err)
	}
	return &MemoryCache{entries: entries, ttl: ttl}, nil
}

// Get returns the cached capability set if present and fresh.
func (c *MemoryCache) Get(_ context.Context, tenantID uuid.UUID) ([]EffectiveCapability, bool) {
	entry, ok := c.entries.Get(tenantID)
	if !ok {
		return nil, false
	}
	if time.Since(entry.computedAt) >= c.ttl {
		c.entries.Remove(tenantID)
		return nil, false
	}
	out := make([]EffectiveCapability, len(entry.capabilities))
	copy(out, entry.capabilities)
	return out, true
}

// Put stores a freshly computed capability set for a tenant.
func (c *MemoryCache) Put(_ context.Context, tenantID uuid.UUID, capabilities []EffectiveCapability) {
	stored := make([]EffectiveCapability, len(capabilities))
	copy(stored, capabilities)
	c.entries.Add(tenantID, memoryEntry{capabilities: stored, computedAt: time.Now()})
}

// Invalidate evicts a tenant's entry.
func (c *MemoryCache) Invalidate(_ context.Context, tenantID uuid.UUID) {
	c.entries.Remove(tenantID)
}

// InvalidateAll clears every entry.
func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.entries.Purge()
}

// Sweep evicts entries past their TTL.
func (c *MemoryCache) Sweep(_ context.Context) int {
	evicted := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if time.Since(entry.computedAt) >= c.ttl {
			c.entries.Remove(key)
			evicted++
		}
	}
	return evicted
}

// redisKeyPrefix namespaces toolgate cache keys in a shared Redis.
const redisKeyPrefix = "toolgate:effective:"

// RedisCache is a Redis-backed tenant cache for multi-replica deployments,
// where an override mutation on one replica must invalidate the entry every
// replica reads. Redis expiry enforces the TTL; cache errors are reported as
// misses so a Redis outage degrades to resolver calls, never to failures.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed tenant cache and verifies
// connectivity.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheWithClient wraps an existing client; used by tests.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(tenantID uuid.UUID) string {
	return redisKeyPrefix + tenantID.String()
}

// Get returns the cached capability set if present.
func (c *RedisCache) Get(ctx context.Context, tenantID uuid.UUID) ([]EffectiveCapability, bool) {
	data, err := c.client.Get(ctx, redisKey(tenantID)).Result()
	if err != nil {
		return nil, false
	}

	var capabilities []EffectiveCapability
	if err := json.Unmarshal([]byte(data), &capabilities); err != nil {
		// Corrupt entry: drop it and recompute.
		c.client.Del(ctx, redisKey(tenantID))
		return nil, false
	}
	return capabilities, true
}

// Put stores a freshly computed capability set with the cache TTL.
func (c *RedisCache) Put(ctx context.Context, tenantID uuid.UUID, capabilities []EffectiveCapability) {
	data, err := json.Marshal(capabilities)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKey(tenantID), data, c.ttl)
}

// Invalidate evicts a tenant's entry.
func (c *RedisCache) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	c.client.Del(ctx, redisKey(tenantID))
}

// InvalidateAll removes every toolgate cache key.
func (c *RedisCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// Sweep is a no-op: Redis expires entries itself.
func (c *RedisCache) Sweep(context.Context) int {
	return 0
}

// Close closes the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
