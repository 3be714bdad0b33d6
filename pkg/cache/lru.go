package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// lruCache evicts the least recently used entry beyond maxSize. With a positive
// ttl, entries also expire; expired entries are dropped lazily on access.
type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	in      instruments
	evictFn EvictCallback[V]
	now     func() time.Time
}

// NewLRU creates a size-bounded cache. A positive ttl adds expiry.
func NewLRU[V any](maxSize int, ttl time.Duration, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, invalidConfig("NewLRU", "max_size must be positive")
	}

	opts := applyOptions(options...)
	in, err := newInstruments(opts, "NewLRU")
	if err != nil {
		return nil, err
	}
	return &lruCache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		in:      in,
		evictFn: opts.evictCallback,
		now:     opts.now,
	}, nil
}

func (c *lruCache[V]) expired(e *lruEntry[V]) bool {
	return c.ttl > 0 && !c.now().Before(e.expiresAt)
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		c.in.miss()
		var zero V
		return zero, false
	}

	entry := element.Value.(*lruEntry[V])
	if c.expired(entry) {
		c.removeElement(element)
		size := len(c.items)
		c.mu.Unlock()
		c.in.evicted(size)
		c.notify(entry)
		c.in.miss()
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	value := entry.value
	c.mu.Unlock()

	c.in.hit()
	return value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	if element, exists := c.items[key]; exists {
		entry := element.Value.(*lruEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(element)
		size := len(c.items)
		c.mu.Unlock()
		c.in.set(size)
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value, expiresAt: expiresAt})

	var victims []*lruEntry[V]
	for len(c.items) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		victims = append(victims, c.removeElement(oldest))
	}
	size := len(c.items)
	c.mu.Unlock()

	c.in.set(size)
	for _, v := range victims {
		c.in.evicted(size)
		c.notify(v)
	}
	return true, nil
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}
	entry := c.removeElement(element)
	size := len(c.items)
	c.mu.Unlock()

	c.in.deleted(size)
	c.notify(entry)
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	old := c.order
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.mu.Unlock()

	for e := old.Front(); e != nil; e = e.Next() {
		c.notify(e.Value.(*lruEntry[V]))
	}
	c.in.resized(0)
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for e := c.order.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*lruEntry[V])
		if !c.expired(entry) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}

func (c *lruCache[V]) Stats() *Statistics {
	return c.in.stats
}

func (c *lruCache[V]) Close() error {
	return nil
}

// removeElement must be called with c.mu held.
func (c *lruCache[V]) removeElement(element *list.Element) *lruEntry[V] {
	entry := c.order.Remove(element).(*lruEntry[V])
	delete(c.items, entry.key)
	return entry
}

func (c *lruCache[V]) notify(entry *lruEntry[V]) {
	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
}
