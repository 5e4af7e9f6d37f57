package geocode

import (
	"context"
	"fmt"
	"sync"

	"github.com/avenlake/hazardwatch/internal/models"
)

// Cached wraps a Geocoder with an in-memory LRU cache. Tracked-person
// addresses change rarely, so the same handful of lookups repeat every
// verification cycle.
type Cached struct {
	inner Geocoder
	cache *lruCache
}

func NewCached(inner Geocoder, maxEntries int) *Cached {
	return &Cached{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *Cached) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	key := "fwd:" + address
	if v, ok := c.cache.get(key); ok {
		return v.coords, nil
	}
	coords, err := c.inner.Geocode(ctx, address)
	if err != nil {
		// Only successes are cached so a transient miss can be retried.
		return coords, err
	}
	c.cache.put(key, cacheValue{coords: coords})
	return coords, nil
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	if v, ok := c.cache.get(key); ok {
		return v.address, nil
	}
	address, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	c.cache.put(key, cacheValue{address: address})
	return address, nil
}

type cacheValue struct {
	coords  models.Coordinates
	address string
}

// lruCache is a small thread-safe LRU keyed by query string.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value cacheValue
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (cacheValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return cacheValue{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value cacheValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
