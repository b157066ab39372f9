package cache

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

var (
	once          sync.Once
	inmemoryCache Cache
)

type Cache interface {
	Set(key string, value interface{}, duration time.Duration)
	// Add stores the value only if the key is absent or expired and reports
	// whether it did, atomically.
	Add(key string, value interface{}, duration time.Duration) bool
	Get(key string) (interface{}, bool)
	Delete(key string)
	Flush()
}

type goCache struct {
	internal *cache.Cache
}

// NewCache returns the process wide Cache, created on first use
func NewCache(defaultExpiration, cleanupInterval time.Duration) Cache {
	once.Do(func() {
		inmemoryCache = &goCache{
			internal: cache.New(defaultExpiration, cleanupInterval),
		}
	})
	return inmemoryCache
}

// NewLocalCache returns an independent Cache, mostly useful in tests
func NewLocalCache(defaultExpiration, cleanupInterval time.Duration) Cache {
	return &goCache{internal: cache.New(defaultExpiration, cleanupInterval)}
}

func (c *goCache) Set(key string, value interface{}, duration time.Duration) {
	c.internal.Set(key, value, duration)
}

func (c *goCache) Add(key string, value interface{}, duration time.Duration) bool {
	return c.internal.Add(key, value, duration) == nil
}

func (c *goCache) Get(key string) (interface{}, bool) {
	return c.internal.Get(key)
}

func (c *goCache) Delete(key string) {
	c.internal.Delete(key)
}

func (c *goCache) Flush() {
	c.internal.Flush()
}

// Get reads a typed value from the given cache.
func Get[T any](c Cache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	val, found := c.Get(key)
	if !found {
		return zero, false
	}
	typedVal, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typedVal, true
}

// GetOrLoad returns the cached value or stores the loader's result for ttl.
func GetOrLoad[T any](c Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if val, ok := Get[T](c, key); ok {
		return val, nil
	}
	val, err := load()
	if err != nil {
		return val, err
	}
	c.Set(key, val, ttl)
	return val, nil
}
