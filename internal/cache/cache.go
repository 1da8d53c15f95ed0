package cache

// In-memory cache for function definitions, with per-item expiration and a
// bounded size. Loosely modeled after github.com/patrickmn/go-cache.

import (
	"sync"
	"time"
)

const NoExpiration time.Duration = -1

type item struct {
	object     interface{}
	expiration int64 // UnixNano, 0 = never
	age        int64 // UnixNano of last access, for LRU replacement
}

func (i *item) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

type Cache struct {
	mu                sync.RWMutex
	items             map[string]*item
	defaultExpiration time.Duration
	maxItems          int
	stop              chan bool
}

// New creates a cache admitting up to size items. Expired items are removed
// every cleanupInterval; if cleanupInterval <= 0 they are only dropped lazily
// on Get.
func New(defaultExpiration, cleanupInterval time.Duration, size int) *Cache {
	c := &Cache{
		items:             make(map[string]*item),
		defaultExpiration: defaultExpiration,
		maxItems:          size,
		stop:              make(chan bool),
	}
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Set adds an item, replacing any existing one. A zero duration applies the
// cache default; NoExpiration makes the item permanent. When the cache is
// full, the least recently used item is replaced.
func (c *Cache) Set(k string, x interface{}, d time.Duration) {
	if d == 0 {
		d = c.defaultExpiration
	}
	var e int64
	if d > 0 {
		e = time.Now().Add(d).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.items[k]; !found && len(c.items) >= c.maxItems {
		delete(c.items, c.findLRU())
	}
	c.items[k] = &item{object: x, expiration: e, age: time.Now().UnixNano()}
}

// findLRU returns the key of the least recently used (or an already expired)
// item. Caller must hold the lock.
func (c *Cache) findLRU() string {
	now := time.Now().UnixNano()
	victim := ""
	oldest := int64(-1)
	for k, v := range c.items {
		if v.expired(now) {
			return k
		}
		if oldest < 0 || v.age < oldest {
			victim = k
			oldest = v.age
		}
	}
	return victim
}

// Get returns the item for k, refreshing its age.
func (c *Cache) Get(k string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, found := c.items[k]
	if !found || it.expired(time.Now().UnixNano()) {
		return nil, false
	}
	it.age = time.Now().UnixNano()
	return it.object, true
}

// Delete removes the item for k, if any.
func (c *Cache) Delete(k string) {
	c.mu.Lock()
	delete(c.items, k)
	c.mu.Unlock()
}

func (c *Cache) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.Lock()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			ticker.Stop()
			return
		}
	}
}

// Stop terminates the cleanup goroutine, if running.
func (c *Cache) Stop() {
	close(c.stop)
}
