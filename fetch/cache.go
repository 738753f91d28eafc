package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores fetched bodies by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error) // val, found, err
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryCache is an in-process Cache bounded by entry count. It is safe for
// concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string
	max     int
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means never
}

// NewMemoryCache returns a cache holding at most max entries, evicting the
// oldest first. max <= 0 means unbounded.
func NewMemoryCache(max int) *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, max: max, now: time.Now}
}

// Get returns the live entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A ttl <= 0 never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = e
	for c.max > 0 && len(c.entries) > c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	// Drop keys that expired out of the map.
	if len(c.order) > 2*len(c.entries)+16 {
		live := c.order[:0]
		for _, k := range c.order {
			if _, ok := c.entries[k]; ok {
				live = append(live, k)
			}
		}
		c.order = live
	}
	return nil
}

// RedisConf locates a Redis server.
type RedisConf struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	PW   string `json:"pw"`
	DB   int    `json:"db"`
}

// RedisCache is a Cache shared between processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the server in conf. Keys are stored under
// prefix.
func NewRedisCache(conf RedisConf, prefix string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
			Password: conf.PW,
			DB:       conf.DB,
		}),
		prefix: prefix,
	}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the value under key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Close closes the connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

// CachingFetcher serves fetches from a Cache, filling it from Fetcher on a
// miss. Cache failures are logged and fall through to Fetcher.
type CachingFetcher struct {
	Fetcher Fetcher
	Cache   Cache
	TTL     time.Duration
	Log     *zap.Logger
}

// Fetch returns the cached body of url or fetches it.
func (f *CachingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	key := CacheKey(url)
	data, ok, err := f.Cache.Get(ctx, key)
	switch {
	case err != nil:
		log.Warn("cache read failed", zap.String("url", url), zap.Error(err))
	case ok:
		log.Debug("cache hit", zap.String("url", url), zap.Int("bytes", len(data)))
		return data, nil
	}
	data, err = f.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := f.Cache.Set(ctx, key, data, f.TTL); err != nil {
		log.Warn("cache write failed", zap.String("url", url), zap.Error(err))
	}
	return data, nil
}

// CacheKey is the cache key of url.
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "fetch:" + hex.EncodeToString(sum[:])
}
