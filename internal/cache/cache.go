// Package cache is the in-memory TTL store in front of the source clients.
package cache

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a live result stays fresh.
const DefaultTTL = 5 * time.Minute

// Entry is a stored payload and its expiry.
type Entry struct {
	Key       string
	Value     any
	ExpiresAt time.Time
}

// Cache maps canonical keys to payloads. Expired entries are dropped when looked up.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	order      []string // insertion order for eviction
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	group      singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxEntries bounds the table; the oldest entry is evicted first. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// New creates a cache. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the stored value if it has not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.ExpiresAt) {
		c.remove(key)
		return nil, false
	}
	return e.Value, true
}

// Set stores value under key for one TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.remove(key)
	}
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[key] = &Entry{Key: key, Value: value, ExpiresAt: c.now().Add(c.ttl)}
	c.order = append(c.order, key)
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

// Clear drops every entry and returns how many were held.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.order = nil
	return n
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// caller holds mu
func (c *Cache) remove(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Fetcher produces a value for a missing key. keep reports whether the value may
// be stored.
type Fetcher[T any] func() (value T, keep bool, err error)

// GetOrFetch returns the cached value for key or runs fetch. Concurrent misses on
// the same key share one fetch. hit reports a cache hit.
func GetOrFetch[T any](c *Cache, key string, fetch Fetcher[T]) (value T, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true, nil
		}
		c.Delete(key)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
		value, keep, err := fetch()
		if err != nil {
			return value, err
		}
		if keep {
			c.Set(key, value)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Key builds a canonical key: parameter order does not matter and empty values are dropped.
func Key(op string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v = strings.TrimSpace(v); v != "" {
			values.Set(k, v)
		}
	}
	if len(values) == 0 {
		return op
	}
	return op + "?" + values.Encode()
}
