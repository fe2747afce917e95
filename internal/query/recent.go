package query

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultRecentSize bounds the in-memory recent-query cache.
const DefaultRecentSize = 10000

// RecentQueryCache remembers query hashes for repeat detection.
// AddIfAbsent must be atomic: of N concurrent callers with the same hash,
// exactly one sees added == true.
type RecentQueryCache interface {
	AddIfAbsent(ctx context.Context, hash string) (added bool, err error)
	Contains(ctx context.Context, hash string) (bool, error)
	Len(ctx context.Context) (int, error)
}

// MemoryRecentCache is a process-local LRU of query hashes.
type MemoryRecentCache struct {
	cache *lru.Cache[string, struct{}]
}

// NewMemoryRecentCache creates a cache holding up to size hashes.
// A size <= 0 uses DefaultRecentSize.
func NewMemoryRecentCache(size int) (*MemoryRecentCache, error) {
	if size <= 0 {
		size = DefaultRecentSize
	}
	c, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create recent cache: %w", err)
	}
	return &MemoryRecentCache{cache: c}, nil
}

// AddIfAbsent implements RecentQueryCache.
func (m *MemoryRecentCache) AddIfAbsent(_ context.Context, hash string) (bool, error) {
	ok, _ := m.cache.ContainsOrAdd(hash, struct{}{})
	return !ok, nil
}

// Contains implements RecentQueryCache.
func (m *MemoryRecentCache) Contains(_ context.Context, hash string) (bool, error) {
	return m.cache.Contains(hash), nil
}

// Len implements RecentQueryCache.
func (m *MemoryRecentCache) Len(context.Context) (int, error) {
	return m.cache.Len(), nil
}

// RedisRecentCache shares repeat detection between processes. Each hash
// is a key with a TTL, so the set ages out on its own.
type RedisRecentCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRecentCache wraps client. A ttl <= 0 defaults to 24h.
func NewRedisRecentCache(client *redis.Client, ttl time.Duration) *RedisRecentCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRecentCache{client: client, prefix: "reelvibe:recent:", ttl: ttl}
}

// AddIfAbsent implements RecentQueryCache with SETNX.
func (r *RedisRecentCache) AddIfAbsent(ctx context.Context, hash string) (bool, error) {
	added, err := r.client.SetNX(ctx, r.prefix+hash, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return added, nil
}

// Contains implements RecentQueryCache.
func (r *RedisRecentCache) Contains(ctx context.Context, hash string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+hash).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Len counts keys under the cache prefix with SCAN.
func (r *RedisRecentCache) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}
