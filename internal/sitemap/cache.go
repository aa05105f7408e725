package sitemap

import (
	"container/list"
	"sync"
	"time"

	"github.com/ternarybob/blogpipeline/internal/models"
)

// cacheEntry is one LRU slot: the crawl result plus the time it expires.
type cacheEntry struct {
	key       string
	pages     *models.SitemapPageList
	expiresAt time.Time
}

// LRUCache is a fixed-capacity, TTL-bounded cache of sitemap crawl
// results keyed by "companyURL:maxURLs". Entries are evicted
// least-recently-used when capacity is exceeded, and reordered to
// most-recently-used on every hit (spec.md §4.2 cache, REDESIGN FLAGS:
// LRU eviction rather than the Python original's insertion-order
// eviction).
//
// No general-purpose LRU library appears anywhere in the example
// corpus (groupcache is a distributed cache system, not a drop-in LRU
// map), so this is built directly on container/list + map, the same
// way the standard library's own documentation recommends implementing
// an LRU.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
}

// NewLRUCache creates a cache holding at most capacity entries, each
// valid for ttl after insertion. ttl of 0 disables expiry.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached pages for key if present and not expired,
// moving the entry to the most-recently-used position.
func (c *LRUCache) Get(key string) (*models.SitemapPageList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.ll.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return entry.pages, true
}

// Set inserts or updates the cached pages for key, evicting the
// least-recently-used entry if the cache is over capacity.
func (c *LRUCache) Set(key string, pages *models.SitemapPageList) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if elem, ok := c.items[key]; ok {
		elem.Value.(*cacheEntry).pages = pages
		elem.Value.(*cacheEntry).expiresAt = expiresAt
		c.ll.MoveToFront(elem)
		return
	}

	elem := c.ll.PushFront(&cacheEntry{key: key, pages: pages, expiresAt: expiresAt})
	c.items[key] = elem

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len reports the number of entries currently cached.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
