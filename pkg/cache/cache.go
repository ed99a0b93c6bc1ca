package cache

import (
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item[V any] struct {
	Value      V
	Expiration int64
}

// Expired checks if the cache item has expired at the given unix-nano time
func (item Item[V]) Expired(now int64) bool {
	if item.Expiration == 0 {
		return false
	}
	return now > item.Expiration
}

// Options configures a Cache
type Options struct {
	DefaultExpiration time.Duration
	// CleanupInterval of zero disables the background sweeper
	CleanupInterval time.Duration
	// MaxItems of zero means unbounded
	MaxItems int
}

// Cache is a thread-safe in-memory cache with expiration.
// The eviction callback runs for every removal: Delete, Flush,
// expiry sweeps and capacity evictions.
type Cache[V any] struct {
	items     map[string]Item[V]
	mu        sync.Mutex
	opts      Options
	onEvicted func(string, V)
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// New creates a cache and starts the cleanup sweeper if configured
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		items: make(map[string]Item[V]),
		opts:  opts,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.startCleanupTimer()
	}

	return c
}

// Set adds an item to the cache with the default expiration
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithExpiration(key, value, c.opts.DefaultExpiration)
}

// SetWithExpiration adds an item to the cache with a specific expiration time
func (c *Cache[V]) SetWithExpiration(key string, value V, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = c.now().Add(d).UnixNano()
	}

	var evicted []evictedItem[V]

	c.mu.Lock()
	if _, exists := c.items[key]; !exists && c.opts.MaxItems > 0 && len(c.items) >= c.opts.MaxItems {
		if k, item, ok := c.oldestLocked(); ok {
			delete(c.items, k)
			evicted = append(evicted, evictedItem[V]{k, item.Value})
		}
	}
	c.items[key] = Item[V]{Value: value, Expiration: exp}
	c.mu.Unlock()

	c.notify(evicted)
}

// Get retrieves an unexpired item from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || item.Expired(c.now().UnixNano()) {
		var zero V
		return zero, false
	}

	return item.Value, true
}

// Delete removes an item from the cache and reports whether it was present
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	item, found := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if found {
		c.notify([]evictedItem[V]{{key, item.Value}})
	}
	return found
}

// Flush removes all items from the cache
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	evicted := make([]evictedItem[V], 0, len(c.items))
	for k, v := range c.items {
		evicted = append(evicted, evictedItem[V]{k, v.Value})
	}
	c.items = make(map[string]Item[V])
	c.mu.Unlock()

	c.notify(evicted)
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache[V]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// SetOnEvicted sets the callback to be called when an item is removed
func (c *Cache[V]) SetOnEvicted(f func(string, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvicted = f
}

// Close stops the background sweeper
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

type evictedItem[V any] struct {
	key   string
	value V
}

// notify runs the eviction callback outside the lock so callbacks may
// call back into the cache
func (c *Cache[V]) notify(items []evictedItem[V]) {
	c.mu.Lock()
	fn := c.onEvicted
	c.mu.Unlock()

	if fn == nil {
		return
	}
	for _, it := range items {
		fn(it.key, it.value)
	}
}

func (c *Cache[V]) startCleanupTimer() {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

// DeleteExpired deletes all expired items from the cache
func (c *Cache[V]) DeleteExpired() {
	now := c.now().UnixNano()

	c.mu.Lock()
	var evicted []evictedItem[V]
	for k, v := range c.items {
		if v.Expired(now) {
			evicted = append(evicted, evictedItem[V]{k, v.Value})
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// oldestLocked finds the item closest to expiry; items without
// expiration are evicted last
func (c *Cache[V]) oldestLocked() (string, Item[V], bool) {
	var (
		oldestKey  string
		oldestItem Item[V]
		found      bool
	)

	for k, v := range c.items {
		if !found {
			oldestKey, oldestItem, found = k, v, true
			continue
		}
		if oldestItem.Expiration == 0 || (v.Expiration != 0 && v.Expiration < oldestItem.Expiration) {
			oldestKey, oldestItem = k, v
		}
	}

	return oldestKey, oldestItem, found
}
