package candidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultGenerationCacheSize bounds the in-memory generation cache.
const DefaultGenerationCacheSize = 10000

// GenerationCache stores validated generator output keyed by query hash.
// Values are JSON arrays of Film. PutIfAbsent never overwrites, so
// concurrent writers for one key keep the first result.
type GenerationCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	PutIfAbsent(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryGenerationCache is a process-local LRU.
type MemoryGenerationCache struct {
	cache *lru.Cache[string, []byte]
}

// NewMemoryGenerationCache creates a cache of up to size entries.
func NewMemoryGenerationCache(size int) (*MemoryGenerationCache, error) {
	if size <= 0 {
		size = DefaultGenerationCacheSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create generation cache: %w", err)
	}
	return &MemoryGenerationCache{cache: c}, nil
}

// Get implements GenerationCache.
func (m *MemoryGenerationCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.cache.Get(key)
	return v, ok, nil
}

// PutIfAbsent implements GenerationCache.
func (m *MemoryGenerationCache) PutIfAbsent(_ context.Context, key string, value []byte) error {
	m.cache.ContainsOrAdd(key, value)
	return nil
}

// Delete implements GenerationCache.
func (m *MemoryGenerationCache) Delete(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryGenerationCache) Len() int { return m.cache.Len() }

// FileGenerationCache persists entries in one JSON object file, shared
// between processes through a lock file. An unreadable file is treated
// as empty and replaced on the next write.
type FileGenerationCache struct {
	path string
	lock *flock.Flock
	// opMu serializes use of lock; a Flock is already held once any
	// goroutine in this process holds it.
	opMu sync.Mutex

	mu      sync.RWMutex
	entries map[string]json.RawMessage
	modTime time.Time
}

// NewFileGenerationCache opens the cache at path, creating its directory.
func NewFileGenerationCache(path string) (*FileGenerationCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &FileGenerationCache{
		path:    path,
		lock:    flock.New(path + ".lock"),
		entries: make(map[string]json.RawMessage),
	}
	if err := c.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock generation cache: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()
	c.reload()
	return c, nil
}

// reload reads the file when it changed since the last read. Callers hold
// the file lock.
func (c *FileGenerationCache) reload() {
	info, err := os.Stat(c.path)
	if err != nil {
		return
	}
	c.mu.RLock()
	fresh := !info.ModTime().After(c.modTime)
	c.mu.RUnlock()
	if fresh {
		return
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &entries); err != nil {
		entries = make(map[string]json.RawMessage)
	}

	c.mu.Lock()
	c.entries = entries
	c.modTime = info.ModTime()
	c.mu.Unlock()
}

// Get implements GenerationCache. A local miss rereads the file in case
// another process wrote the key.
func (c *FileGenerationCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.lookup(key); ok {
		return v, true, nil
	}
	c.opMu.Lock()
	if err := c.lock.RLock(); err != nil {
		c.opMu.Unlock()
		return nil, false, fmt.Errorf("lock generation cache: %w", err)
	}
	c.reload()
	_ = c.lock.Unlock()
	c.opMu.Unlock()

	v, ok := c.lookup(key)
	return v, ok, nil
}

func (c *FileGenerationCache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// PutIfAbsent implements GenerationCache. Values that are not JSON are
// rejected so one bad write cannot corrupt the file.
func (c *FileGenerationCache) PutIfAbsent(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("generation cache value for %s is not JSON", key)
	}
	return c.update(func(entries map[string]json.RawMessage) bool {
		if _, ok := entries[key]; ok {
			return false
		}
		entries[key] = append(json.RawMessage(nil), value...)
		return true
	})
}

// Delete implements GenerationCache.
func (c *FileGenerationCache) Delete(_ context.Context, key string) error {
	return c.update(func(entries map[string]json.RawMessage) bool {
		if _, ok := entries[key]; !ok {
			return false
		}
		delete(entries, key)
		return true
	})
}

// update applies fn to the freshest entries under the exclusive file lock
// and writes the result through a temp file and rename.
func (c *FileGenerationCache) update(fn func(map[string]json.RawMessage) bool) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock generation cache: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	c.reload()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !fn(c.entries) {
		return nil
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encode generation cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write generation cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace generation cache: %w", err)
	}
	if info, err := os.Stat(c.path); err == nil {
		c.modTime = info.ModTime()
	}
	return nil
}

// Len returns the number of entries currently loaded.
func (c *FileGenerationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisGenerationCache shares generation results between processes.
type RedisGenerationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGenerationCache wraps client. A ttl <= 0 defaults to 24h.
func NewRedisGenerationCache(client *redis.Client, ttl time.Duration) *RedisGenerationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGenerationCache{client: client, prefix: "reelvibe:generation:", ttl: ttl}
}

// Get implements GenerationCache.
func (r *RedisGenerationCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// PutIfAbsent implements GenerationCache with SETNX.
func (r *RedisGenerationCache) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	if err := r.client.SetNX(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// Delete implements GenerationCache.
func (r *RedisGenerationCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
