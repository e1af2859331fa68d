// Package listingcache memoizes bulk-listing responses for the duration of a
// fetch run, so sources sharing an endpoint list it once.
package listingcache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
)

// Cache maps listing endpoint URLs to their entries.
type Cache interface {
	Get(url string) ([]domain.ListingEntry, bool)
	Put(url string, entries []domain.ListingEntry)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// listingCache is an LRU-backed Cache tracking hits, misses and evictions.
type listingCache struct {
	lru       *lru.Cache[string, []domain.ListingEntry]
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache always misses.
type disabledCache struct{}

// New creates a Cache holding up to size endpoints. If size <= 0 a disabled
// cache is returned.
func New(size int) (Cache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}

	var c listingCache
	cache, err := lru.NewWithEvict(size, func(_ string, _ []domain.ListingEntry) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return &c, nil
}

// Get returns a copy of the cached entries for url.
func (c *listingCache) Get(url string) ([]domain.ListingEntry, bool) {
	if v, ok := c.lru.Get(url); ok {
		atomic.AddUint64(&c.hits, 1)
		return append([]domain.ListingEntry(nil), v...), true
	}
	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

func (c *listingCache) Put(url string, entries []domain.ListingEntry) {
	c.lru.Add(url, append([]domain.ListingEntry(nil), entries...))
}

func (c *listingCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *listingCache) Purge() { c.lru.Purge() }

func (c *listingCache) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.evictions)
}

func (d *disabledCache) Get(string) ([]domain.ListingEntry, bool) { return nil, false }

func (d *disabledCache) Put(string, []domain.ListingEntry) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Purge() {}

func (d *disabledCache) Stats() (uint64, uint64, uint64) { return 0, 0, 0 }

var _ Cache = (*listingCache)(nil)
var _ Cache = (*disabledCache)(nil)
